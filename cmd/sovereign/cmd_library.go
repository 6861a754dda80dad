// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/sovereign/pkg/session"
	"github.com/AleutianAI/sovereign/pkg/ux"
	"github.com/AleutianAI/sovereign/pkg/watch"
)

// libraryWithLog builds a library whose status log is printed as it grows.
func libraryWithLog() (*session.Library, error) {
	log := current.newLog()
	log.Subscribe(func(line string) { ux.Info(line) })
	return current.newLibrary(log)
}

func runDocs(cmd *cobra.Command, args []string) error {
	lib, err := libraryWithLog()
	if err != nil {
		return err
	}
	names, err := lib.Refresh(cmd.Context())
	if err != nil {
		return errReported // shown by the status log
	}
	ux.DocumentList(names)
	return nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		path = args[0]
	}

	if !assumeYes && ux.IsInteractive() {
		target := "全部文档"
		if path != "" {
			target = path
		}
		confirmed := false
		err := huh.NewConfirm().
			Title(fmt.Sprintf("重建索引: %s?", target)).
			Description("索引期间研究结果可能不完整。").
			Affirmative("重建").
			Negative("取消").
			Value(&confirmed).
			Run()
		if err != nil {
			return err
		}
		if !confirmed {
			ux.Muted("已取消")
			return nil
		}
	}

	lib, err := libraryWithLog()
	if err != nil {
		return err
	}
	ux.Muted("正在重建索引...")
	if err := lib.Reindex(cmd.Context(), path); err != nil {
		if errors.Is(err, session.ErrBusy) {
			return err
		}
		return errReported
	}
	ux.DocumentList(lib.Documents())
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	lib, err := libraryWithLog()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ux.Muted(session.UploadingMessage)
	report, err := lib.UploadMany(ctx, args)
	for _, f := range report.Failed {
		ux.Error(fmt.Sprintf("%s: %v", f.Path, f.Err))
	}
	ux.UploadSummary(len(report.Uploaded), len(report.Failed), report.Total())
	if err != nil {
		return err
	}
	if len(report.Uploaded) > 0 && !report.Reindexed {
		ux.Warning("文档已上传，但索引重建失败")
	}
	if len(report.Failed) > 0 {
		return errReported
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := current.cfg.Library.DocumentsDir
	if len(args) == 1 {
		dir = args[0]
	}

	lib, err := libraryWithLog()
	if err != nil {
		return err
	}

	exts := make([]string, 0, len(watchExtensions))
	for _, ext := range watchExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}

	w, err := watch.New(dir, lib, watch.Options{
		Debounce:   current.cfg.Library.WatchDebounce,
		Extensions: exts,
		Reindex:    !watchNoReindex,
		Logger:     current.logger,
		OnResult: func(r watch.Result) {
			if r.Err != nil {
				ux.Error(fmt.Sprintf("%s: %s", r.Path, r.Message))
				return
			}
			ux.Success(fmt.Sprintf("%s: %s", r.Path, r.Message))
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ux.Info(fmt.Sprintf("正在监视 %s (%s)，Ctrl-C 停止", dir, strings.Join(exts, ", ")))
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	resp, err := current.backend.Health(cmd.Context())
	if err != nil {
		return fmt.Errorf("%s: %w", current.backend.BaseURL(), err)
	}
	ux.Success(fmt.Sprintf("%s: %s", current.backend.BaseURL(), resp.Status))
	return nil
}
