// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/sovereign/pkg/client"
	"github.com/AleutianAI/sovereign/pkg/client/clienttest"
	"github.com/AleutianAI/sovereign/pkg/statuslog"
)

func newTestLibrary(t *testing.T, b *clienttest.Backend, rec *countingRecorder) (*Library, *statuslog.Log) {
	t.Helper()
	c, err := client.New(client.Config{BaseURL: b.URL(), Timeout: 5 * time.Second})
	require.NoError(t, err)
	log := statuslog.New(20)
	cfg := LibraryConfig{Transport: c, Log: log}
	if rec != nil {
		cfg.Metrics = rec
	}
	lib, err := NewLibrary(cfg)
	require.NoError(t, err)
	return lib, log
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewLibrary_RequiresTransport(t *testing.T) {
	_, err := NewLibrary(LibraryConfig{})
	assert.Error(t, err)
}

func TestLibrary_Refresh(t *testing.T) {
	b := clienttest.New(t)
	b.SetDocuments("a.pdf", "b.pdf")
	lib, log := newTestLibrary(t, b, nil)

	docs, err := lib.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, docs)
	assert.Equal(t, docs, lib.Documents())
	assert.Empty(t, log.Lines())
}

func TestLibrary_RefreshFailureKeepsListing(t *testing.T) {
	b := clienttest.New(t)
	b.SetDocuments("a.pdf")
	rec := newCountingRecorder()
	lib, log := newTestLibrary(t, b, rec)
	_, err := lib.Refresh(context.Background())
	require.NoError(t, err)

	b.Fail(client.PathDocuments, http.StatusInternalServerError, "boom")
	_, err = lib.Refresh(context.Background())

	assert.ErrorIs(t, err, client.ErrTransportUnavailable)
	assert.Equal(t, []string{"a.pdf"}, lib.Documents())
	assert.Equal(t, []string{ListingFailedLine}, log.Lines())
	assert.Equal(t, 1, rec.library["refresh/failure"])
}

func TestLibrary_Reindex(t *testing.T) {
	b := clienttest.New(t)
	b.SetDocuments("a.pdf")
	rec := newCountingRecorder()
	lib, log := newTestLibrary(t, b, rec)

	require.NoError(t, lib.Reindex(context.Background(), ""))

	assert.Equal(t, []string{IndexDoneLine}, log.Lines())
	assert.Equal(t, []client.IndexRequest{{}}, b.IndexRequests())
	assert.Equal(t, []string{"a.pdf"}, lib.Documents(), "listing refreshed after reindex")
	assert.Equal(t, 1, rec.library["reindex/success"])
	assert.False(t, lib.Indexing())
}

func TestLibrary_ReindexEmptySuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case client.PathIndex:
			w.WriteHeader(http.StatusOK)
		case client.PathDocuments:
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `["a.pdf"]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c, err := client.New(client.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	log := statuslog.New(20)
	lib, err := NewLibrary(LibraryConfig{Transport: c, Log: log})
	require.NoError(t, err)

	require.NoError(t, lib.Reindex(context.Background(), ""))

	assert.Equal(t, []string{IndexDoneLine}, log.Lines())
	assert.Equal(t, []string{"a.pdf"}, lib.Documents())
}

func TestLibrary_ReindexWithPath(t *testing.T) {
	b := clienttest.New(t)
	lib, _ := newTestLibrary(t, b, nil)

	require.NoError(t, lib.Reindex(context.Background(), "./papers"))

	assert.Equal(t, []client.IndexRequest{{Path: "./papers"}}, b.IndexRequests())
}

func TestLibrary_ReindexNonSuccess(t *testing.T) {
	b := clienttest.New(t)
	b.SetDocuments("a.pdf")
	b.Fail(client.PathIndex, http.StatusInternalServerError, "no documents")
	lib, log := newTestLibrary(t, b, nil)

	err := lib.Reindex(context.Background(), "")

	assert.ErrorIs(t, err, client.ErrTransportUnavailable)
	assert.Equal(t, []string{IndexFailedLine}, log.Lines())
	assert.Equal(t, []string{"a.pdf"}, lib.Documents(), "listing refreshed after failed reindex")
}

func TestLibrary_ReindexUnreachable(t *testing.T) {
	b := clienttest.New(t)
	lib, log := newTestLibrary(t, b, nil)
	b.Close()

	err := lib.Reindex(context.Background(), "")

	require.Error(t, err)
	lines := log.Lines()
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "索引失败: "), lines[0])
	assert.Equal(t, ListingFailedLine, lines[1])
}

// blockingIndexer blocks Reindex until released.
type blockingIndexer struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingIndexer) ListDocuments(ctx context.Context) ([]string, error) {
	return []string{}, nil
}

func (b *blockingIndexer) Reindex(ctx context.Context, path string) (*client.IndexResponse, error) {
	close(b.entered)
	<-b.release
	return &client.IndexResponse{Status: "success"}, nil
}

func (b *blockingIndexer) Upload(ctx context.Context, filename string, content io.Reader, reindex bool) (*client.UploadResponse, error) {
	return &client.UploadResponse{Status: "success", Filename: filename}, nil
}

func TestLibrary_ReindexRejectsReentry(t *testing.T) {
	tr := &blockingIndexer{entered: make(chan struct{}), release: make(chan struct{})}
	lib, err := NewLibrary(LibraryConfig{Transport: tr})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- lib.Reindex(context.Background(), "") }()
	<-tr.entered

	assert.True(t, lib.Indexing())
	assert.ErrorIs(t, lib.Reindex(context.Background(), ""), ErrBusy)

	close(tr.release)
	require.NoError(t, <-done)
	assert.False(t, lib.Indexing())
}

func TestLibrary_Upload(t *testing.T) {
	b := clienttest.New(t)
	lib, _ := newTestLibrary(t, b, nil)

	msg, err := lib.Upload(context.Background(), "paper.pdf", strings.NewReader("%PDF"), true)

	require.NoError(t, err)
	assert.Equal(t, UploadDoneMessage, msg)
	assert.Equal(t, []clienttest.Upload{{Filename: "paper.pdf", Content: "%PDF", Reindex: true}}, b.Uploads())
	assert.Equal(t, []string{"paper.pdf"}, lib.Documents(), "listing refreshed after upload")
	assert.False(t, lib.Uploading())
}

func TestLibrary_UploadFailureMessage(t *testing.T) {
	b := clienttest.New(t)
	b.Fail(client.PathUpload, http.StatusInternalServerError, "索引失败: disk full")
	lib, _ := newTestLibrary(t, b, nil)

	msg, err := lib.Upload(context.Background(), "paper.pdf", strings.NewReader("x"), true)

	assert.Error(t, err)
	assert.Equal(t, "上传失败: 索引失败: disk full", msg)
	assert.Empty(t, lib.Documents())
}

func TestLibrary_UploadFile(t *testing.T) {
	b := clienttest.New(t)
	lib, _ := newTestLibrary(t, b, nil)
	path := writeFile(t, t.TempDir(), "notes.pdf", "body")

	msg, err := lib.UploadFile(context.Background(), path, false)
	require.NoError(t, err)
	assert.Equal(t, UploadDoneMessage, msg)
	assert.Equal(t, "notes.pdf", b.Uploads()[0].Filename)

	msg, err = lib.UploadFile(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), false)
	assert.Error(t, err)
	assert.True(t, strings.HasPrefix(msg, "上传失败: "))
}

func TestLibrary_UploadMany(t *testing.T) {
	b := clienttest.New(t)
	rec := newCountingRecorder()
	lib, log := newTestLibrary(t, b, rec)
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "c.pdf", "c"),
		writeFile(t, dir, "a.pdf", "a"),
		filepath.Join(dir, "missing.pdf"),
		writeFile(t, dir, "b.pdf", "b"),
	}

	report, err := lib.UploadMany(context.Background(), paths)

	require.NoError(t, err)
	assert.Equal(t, []string{paths[1], paths[3], paths[0]}, report.Uploaded)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, paths[2], report.Failed[0].Path)
	assert.Equal(t, 4, report.Total())
	assert.True(t, report.Reindexed)

	uploads := b.Uploads()
	assert.Len(t, uploads, 3)
	for _, u := range uploads {
		assert.False(t, u.Reindex, "per-file reindex is skipped")
	}
	assert.Len(t, b.IndexRequests(), 1)
	assert.Equal(t, []string{IndexDoneLine}, log.Lines())
	assert.Len(t, lib.Documents(), 3)
	assert.Equal(t, 3, rec.library["upload/success"])
	assert.False(t, lib.Uploading())
}

func TestLibrary_UploadManyAllFailedSkipsReindex(t *testing.T) {
	b := clienttest.New(t)
	b.Fail(client.PathUpload, http.StatusInternalServerError, "nope")
	lib, _ := newTestLibrary(t, b, nil)
	dir := t.TempDir()

	report, err := lib.UploadMany(context.Background(), []string{writeFile(t, dir, "a.pdf", "a")})

	require.NoError(t, err)
	assert.Empty(t, report.Uploaded)
	assert.Len(t, report.Failed, 1)
	assert.False(t, report.Reindexed)
	assert.Empty(t, b.IndexRequests())
}

func TestLibrary_UploadManyCancelled(t *testing.T) {
	b := clienttest.New(t)
	lib, _ := newTestLibrary(t, b, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := lib.UploadMany(ctx, []string{writeFile(t, t.TempDir(), "a.pdf", "a")})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, b.IndexRequests())
}
