// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package watch uploads documents dropped into a folder.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/sovereign/pkg/logging"
)

// DefaultDebounce is how long a file must stay quiet before it is uploaded.
const DefaultDebounce = 500 * time.Millisecond

// Uploader sends one file to the backend.
type Uploader interface {
	UploadFile(ctx context.Context, path string, reindex bool) (string, error)
}

// Result is the outcome of one upload.
type Result struct {
	Path    string
	Message string
	Err     error
}

// Options configures a Watcher.
type Options struct {
	// Debounce window per file. Default: DefaultDebounce.
	Debounce time.Duration

	// Extensions that are uploaded, lower case with the dot.
	// Default: [".pdf"].
	Extensions []string

	// Reindex is passed to every upload.
	Reindex bool

	// OnResult is called after each upload from the Run goroutine.
	OnResult func(Result)

	Logger *logging.Logger
}

// Watcher uploads matching files that are created or written in a
// directory. Each file is uploaded once its events have been quiet for the
// debounce window; uploads run one at a time.
type Watcher struct {
	dir      string
	uploader Uploader
	opts     Options
	logger   *logging.Logger
	fs       *fsnotify.Watcher

	closeOnce sync.Once
}

// New starts watching dir. Events are buffered until Run is called.
func New(dir string, uploader Uploader, opts Options) (*Watcher, error) {
	if uploader == nil {
		return nil, errors.New("watch: uploader is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".pdf"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:      dir,
		uploader: uploader,
		opts:     opts,
		logger:   logger.With("component", "watch", "dir", dir),
		fs:       fsw,
	}, nil
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() { err = w.fs.Close() })
	return err
}

// Run processes events until ctx is done. It closes the watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()

	ready := make(chan string)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	w.logger.Info("watching for documents", "extensions", w.opts.Extensions)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.matches(event.Name) {
				continue
			}
			w.schedule(ctx, timers, event.Name, ready)

		case path := <-ready:
			delete(timers, path)
			w.upload(ctx, path)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// schedule starts or extends the debounce window for path. A timer that
// has already fired is left alone: its send on ready is in flight and the
// file is uploaded exactly once.
func (w *Watcher) schedule(ctx context.Context, timers map[string]*time.Timer, path string, ready chan<- string) {
	if t, pending := timers[path]; pending {
		if t.Stop() {
			t.Reset(w.opts.Debounce)
		}
		return
	}
	timers[path] = time.AfterFunc(w.opts.Debounce, func() {
		select {
		case ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) upload(ctx context.Context, path string) {
	msg, err := w.uploader.UploadFile(ctx, path, w.opts.Reindex)
	if err != nil {
		w.logger.Error("upload failed", "path", path, "error", err)
	} else {
		w.logger.Info("uploaded", "path", path)
	}
	if w.opts.OnResult != nil {
		w.opts.OnResult(Result{Path: path, Message: msg, Err: err})
	}
}

func (w *Watcher) matches(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, want := range w.opts.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}
