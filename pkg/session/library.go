// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/sovereign/pkg/client"
	"github.com/AleutianAI/sovereign/pkg/logging"
	"github.com/AleutianAI/sovereign/pkg/metrics"
	"github.com/AleutianAI/sovereign/pkg/statuslog"
)

// Status log lines and upload messages of library operations.
const (
	ListingFailedLine  = "无法读取文档列表，请确认后端运行正常。"
	IndexDoneLine      = "📚 索引更新完成"
	IndexFailedLine    = "⚠️ 索引失败"
	indexErrorPrefix   = "索引失败: "
	UploadingMessage   = "正在上传并重建索引..."
	UploadDoneMessage  = "上传成功，索引已更新 ✅"
	uploadFailedPrefix = "上传失败: "

	// DefaultUploadConcurrency bounds UploadMany.
	DefaultUploadConcurrency = 4
)

// ErrBusy is returned when an operation of the same kind is running.
var ErrBusy = errors.New("operation already running")

// LibraryTransport is the document side of the backend.
type LibraryTransport interface {
	ListDocuments(ctx context.Context) ([]string, error)
	Reindex(ctx context.Context, path string) (*client.IndexResponse, error)
	Upload(ctx context.Context, filename string, content io.Reader, reindex bool) (*client.UploadResponse, error)
}

// LibraryConfig configures a Library.
type LibraryConfig struct {
	// Transport is required.
	Transport LibraryTransport

	// Log receives listing and indexing outcomes. Share the controller's
	// log so the user sees one running transcript.
	Log *statuslog.Log

	// UploadConcurrency bounds UploadMany. Default: DefaultUploadConcurrency.
	UploadConcurrency int

	Metrics metrics.Recorder
	Logger  *logging.Logger
}

// Library lists, indexes and uploads backend documents.
type Library struct {
	transport   LibraryTransport
	log         *statuslog.Log
	concurrency int
	metrics     metrics.Recorder
	logger      *logging.Logger

	indexing  atomic.Bool
	uploading atomic.Bool

	mu        sync.RWMutex
	documents []string
}

// NewLibrary creates a Library.
func NewLibrary(cfg LibraryConfig) (*Library, error) {
	if cfg.Transport == nil {
		return nil, errors.New("session: library transport is required")
	}
	l := &Library{
		transport:   cfg.Transport,
		log:         cfg.Log,
		concurrency: cfg.UploadConcurrency,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		documents:   []string{},
	}
	if l.log == nil {
		l.log = statuslog.New(statuslog.DefaultCapacity)
	}
	if l.concurrency <= 0 {
		l.concurrency = DefaultUploadConcurrency
	}
	if l.metrics == nil {
		l.metrics = metrics.NoOp{}
	}
	if l.logger == nil {
		l.logger = logging.Discard()
	}
	return l, nil
}

// Documents returns the names from the last successful Refresh.
func (l *Library) Documents() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.documents...)
}

// Indexing reports whether a Reindex is running.
func (l *Library) Indexing() bool { return l.indexing.Load() }

// Uploading reports whether an upload is running.
func (l *Library) Uploading() bool { return l.uploading.Load() }

// Refresh reloads the document listing. On failure the previous listing is
// kept and ListingFailedLine is pushed to the status log.
func (l *Library) Refresh(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "library.Refresh")
	defer span.End()

	names, err := l.transport.ListDocuments(ctx)
	if err != nil {
		l.log.Push(ListingFailedLine)
		l.metrics.LibraryOp(metrics.OpRefresh, resultOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.Warn("document listing failed", "error", err)
		return nil, err
	}

	l.mu.Lock()
	l.documents = append([]string{}, names...)
	l.mu.Unlock()

	l.metrics.LibraryOp(metrics.OpRefresh, metrics.ResultSuccess)
	span.SetAttributes(attribute.Int("documents", len(names)))
	return l.Documents(), nil
}

// Reindex rebuilds the backend index from path, or from the backend's
// default directory when path is empty. The outcome is pushed to the
// status log and the listing is refreshed afterwards either way.
func (l *Library) Reindex(ctx context.Context, path string) error {
	if !l.indexing.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer l.indexing.Store(false)

	err := l.reindex(ctx, path)
	// The listing outcome is reported through the status log.
	_, _ = l.Refresh(ctx)
	return err
}

func (l *Library) reindex(ctx context.Context, path string) error {
	ctx, span := tracer.Start(ctx, "library.Reindex",
		trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	resp, err := l.transport.Reindex(ctx, path)
	if err != nil {
		var statusErr *client.StatusError
		if errors.As(err, &statusErr) {
			l.log.Push(IndexFailedLine)
		} else {
			l.log.Push(indexErrorPrefix + err.Error())
		}
		l.metrics.LibraryOp(metrics.OpReindex, resultOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.Error("reindex failed", "path", path, "error", err)
		return err
	}

	l.log.Push(IndexDoneLine)
	l.metrics.LibraryOp(metrics.OpReindex, metrics.ResultSuccess)
	l.logger.Info("reindex finished", "path", path, "message", resp.Message)
	return nil
}

// Upload sends one document and returns the message to show the user.
// On success the listing is refreshed.
func (l *Library) Upload(ctx context.Context, filename string, content io.Reader, reindex bool) (string, error) {
	if !l.uploading.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	defer l.uploading.Store(false)

	if err := l.upload(ctx, filename, content, reindex); err != nil {
		return uploadFailureMessage(err), err
	}
	_, _ = l.Refresh(ctx)
	return UploadDoneMessage, nil
}

// UploadFile opens path and uploads it under its base name.
func (l *Library) UploadFile(ctx context.Context, path string, reindex bool) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return uploadFailedPrefix + err.Error(), fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return l.Upload(ctx, filepath.Base(path), f, reindex)
}

func (l *Library) upload(ctx context.Context, filename string, content io.Reader, reindex bool) error {
	ctx, span := tracer.Start(ctx, "library.Upload",
		trace.WithAttributes(
			attribute.String("filename", filename),
			attribute.Bool("reindex", reindex),
		))
	defer span.End()

	if _, err := l.transport.Upload(ctx, filename, content, reindex); err != nil {
		l.metrics.LibraryOp(metrics.OpUpload, resultOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.Error("upload failed", "filename", filename, "error", err)
		return err
	}
	l.metrics.LibraryOp(metrics.OpUpload, metrics.ResultSuccess)
	l.logger.Info("upload finished", "filename", filename, "reindex", reindex)
	return nil
}

// UploadFailure is one file UploadMany could not send.
type UploadFailure struct {
	Path string
	Err  error
}

// UploadReport summarizes UploadMany.
type UploadReport struct {
	Uploaded []string
	Failed   []UploadFailure

	// Reindexed is true when the closing Reindex succeeded.
	Reindexed bool
}

// Total is the number of files attempted.
func (r UploadReport) Total() int { return len(r.Uploaded) + len(r.Failed) }

// UploadMany sends paths concurrently without per-file reindexing, then
// runs one Reindex when at least one upload succeeded. A failed file does
// not stop the others. The returned error is only for busy or cancelled
// runs; per-file failures are in the report.
func (l *Library) UploadMany(ctx context.Context, paths []string) (UploadReport, error) {
	if !l.uploading.CompareAndSwap(false, true) {
		return UploadReport{}, ErrBusy
	}

	var (
		mu     sync.Mutex
		report UploadReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for _, path := range paths {
		g.Go(func() error {
			err := l.uploadPath(gctx, path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, UploadFailure{Path: path, Err: err})
			} else {
				report.Uploaded = append(report.Uploaded, path)
			}
			return nil
		})
	}
	_ = g.Wait()
	l.uploading.Store(false)

	sort.Strings(report.Uploaded)
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Path < report.Failed[j].Path })

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if len(report.Uploaded) == 0 {
		return report, nil
	}
	if err := l.Reindex(ctx, ""); err == nil {
		report.Reindexed = true
	}
	return report, nil
}

func (l *Library) uploadPath(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return l.upload(ctx, filepath.Base(path), f, false)
}

func uploadFailureMessage(err error) string {
	var statusErr *client.StatusError
	if errors.As(err, &statusErr) {
		return uploadFailedPrefix + statusErr.Detail()
	}
	return uploadFailedPrefix + err.Error()
}

func resultOf(err error) string {
	var statusErr *client.StatusError
	if errors.As(err, &statusErr) {
		return metrics.ResultFailure
	}
	return metrics.ResultUnreachable
}
