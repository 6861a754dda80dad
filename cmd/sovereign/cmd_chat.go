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
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/sovereign/pkg/conversation"
	"github.com/AleutianAI/sovereign/pkg/logging"
	"github.com/AleutianAI/sovereign/pkg/session"
	"github.com/AleutianAI/sovereign/pkg/transcript"
	"github.com/AleutianAI/sovereign/pkg/ux"
)

const (
	chatPrompt     = "> "
	chatMaxHistory = 50
)

// runAsk runs a single turn. Ctrl-C cancels it.
func runAsk(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return errors.New("the question is empty")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs := ux.NewTerminalObserver(cmd.OutOrStdout(), ux.GetPersonality())
	defer obs.Close()
	ctrl, err := current.newController(obs, nil, current.newLog())
	if err != nil {
		return err
	}

	_, err = ctrl.Submit(ctx, query)
	if err != nil {
		// The status log has already shown the failure.
		current.logger.Debug("ask finished with error", "error", err)
		return errReported
	}
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	a := current
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	store, err := a.openStore()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	saved := &transcript.Transcript{}
	if resumeID != "" {
		if store == nil {
			return errors.New("transcripts are disabled in the config, nothing to resume")
		}
		if saved, err = store.Load(ctx, resumeID); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	obs := ux.NewTerminalObserver(out, ux.GetPersonality())
	defer obs.Close()

	log := a.newLog()
	conv := conversation.New(saved.Turns...)
	ctrl, err := a.newController(obs, conv, log)
	if err != nil {
		return err
	}
	lib, err := a.newLibrary(log)
	if err != nil {
		return err
	}

	stopSignals := cancelOnInterrupt(ctrl, cancel)
	defer stopSignals()

	ux.Title("Sovereign 研究助手")
	if len(saved.Turns) > 0 {
		ux.Muted(fmt.Sprintf("继续会话 %s (%d 条消息)", saved.ID, len(saved.Turns)))
		for _, turn := range saved.Turns {
			obs.Renderer().Render(turn)
		}
	}
	ux.Muted("输入 /help 查看命令，Ctrl-D 退出")

	s := &chatSession{
		ctrl:    ctrl,
		library: lib,
		input:   newInputReader(chatPrompt, chatMaxHistory),
		out:     out,
		logger:  a.logger,
	}
	runErr := s.run(ctx)

	if store != nil && conv.Len() > len(saved.Turns) {
		saved.Turns = conv.Turns()
		if err := store.Save(context.Background(), saved); err != nil {
			ux.Warning("会话保存失败: " + err.Error())
		} else {
			ux.Muted("会话已保存: " + saved.ID)
		}
	}
	return runErr
}

// cancelOnInterrupt cancels the running turn on SIGINT, or ends the chat
// when no turn is running.
func cancelOnInterrupt(ctrl *session.Controller, quit context.CancelFunc) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigCh:
				if sig == os.Interrupt && ctrl.InFlight() {
					ctrl.Cancel()
					continue
				}
				quit()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// =============================================================================
// chatSession
// =============================================================================

// chatSession is the read-submit loop behind `sovereign chat`.
type chatSession struct {
	ctrl    *session.Controller
	library *session.Library
	input   InputReader
	out     io.Writer
	logger  *logging.Logger
}

const chatHelp = `/docs            列出已索引的文档
/index [path]    重建索引
/upload <file>   上传文档并重建索引
/exit            退出`

// run reads lines until EOF, /exit or ctx is done. Turn failures are shown
// through the status log and do not end the loop.
func (s *chatSession) run(ctx context.Context) error {
	for ctx.Err() == nil {
		line, err := s.input.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := s.command(ctx, line); quit {
				return nil
			}
			continue
		}

		if _, err := s.ctrl.Submit(ctx, line); err != nil {
			s.logger.Debug("turn ended with error", "error", err)
		}
	}
	return nil
}

// command handles a slash command and reports whether the chat should end.
func (s *chatSession) command(ctx context.Context, line string) (quit bool) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/exit", "/quit":
		return true

	case "/help":
		fmt.Fprintln(s.out, chatHelp)

	case "/docs":
		names, err := s.library.Refresh(ctx)
		if err != nil {
			return false // the status log shows the failure
		}
		ux.DocumentList(names)

	case "/index":
		if err := s.library.Reindex(ctx, arg); errors.Is(err, session.ErrBusy) {
			ux.Warning("索引正在进行中")
		}

	case "/upload":
		if arg == "" {
			ux.Warning("用法: /upload <file>")
			return false
		}
		msg, err := s.library.UploadFile(ctx, arg, true)
		if err != nil {
			if msg == "" {
				msg = err.Error()
			}
			ux.Error(msg)
			return false
		}
		ux.Success(msg)

	default:
		ux.Warning("未知命令: " + name)
	}
	return false
}
