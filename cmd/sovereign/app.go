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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/sovereign/cmd/sovereign/config"
	"github.com/AleutianAI/sovereign/pkg/client"
	"github.com/AleutianAI/sovereign/pkg/conversation"
	"github.com/AleutianAI/sovereign/pkg/logging"
	"github.com/AleutianAI/sovereign/pkg/metrics"
	"github.com/AleutianAI/sovereign/pkg/session"
	"github.com/AleutianAI/sovereign/pkg/statuslog"
	"github.com/AleutianAI/sovereign/pkg/transcript"
	"github.com/AleutianAI/sovereign/pkg/ux"
)

const shutdownTimeout = 5 * time.Second

// errReported marks a failure the user has already been shown.
var errReported = errors.New("reported")

// app holds what every command shares. Built once in setup.
type app struct {
	cfg     *config.SovereignConfig
	logger  *logging.Logger
	backend *client.Client
	metrics metrics.Recorder

	// closers run in reverse order on exit.
	closers []func(context.Context) error
}

var current *app

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if baseURLOverride != "" {
		cfg.Backend.BaseURL = baseURLOverride
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	ux.InitPersonality(cfg.UI.Personality)
	if personalityLevel != "" {
		ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
	}

	a, err := newApp(cfg, traceFile)
	if err != nil {
		return err
	}
	current = a
	a.logger.Debug("command started", "command", cmd.CommandPath(), "base_url", cfg.Backend.BaseURL)
	return nil
}

// newApp wires logging, tracing, metrics and the backend client from cfg.
func newApp(cfg *config.SovereignConfig, tracePath string) (*app, error) {
	level := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.New(logging.Config{
		Level:  level,
		LogDir: cfg.Logging.Dir,
		JSON:   cfg.Logging.JSON,
		// The console belongs to the conversation unless debugging.
		Quiet: level != logging.LevelDebug,
	})
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NoOp{},
	}

	stopTracing, err := initTracing(tracePath)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, stopTracing)

	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.metrics = metrics.NewPrometheus(reg)
		a.closers = append(a.closers, serveMetrics(cfg.Metrics.Addr, reg, logger))
	}

	a.backend, err = client.New(client.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
		Logger:  logger,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func teardown() {
	if current != nil {
		current.close()
		current = nil
	}
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("shutdown step failed", "error", err)
		}
	}
	a.closers = nil
	_ = a.logger.Close()
}

// newController builds a controller continuing conv (nil for a fresh one).
func (a *app) newController(obs session.Observer, conv *conversation.Conversation, log *statuslog.Log) (*session.Controller, error) {
	return session.New(session.Config{
		Transport:    a.backend,
		Conversation: conv,
		Log:          log,
		Observer:     obs,
		Metrics:      a.metrics,
		Logger:       a.logger,
	})
}

func (a *app) newLibrary(log *statuslog.Log) (*session.Library, error) {
	return session.NewLibrary(session.LibraryConfig{
		Transport:         a.backend,
		Log:               log,
		UploadConcurrency: a.cfg.Library.UploadConcurrency,
		Metrics:           a.metrics,
		Logger:            a.logger,
	})
}

func (a *app) newLog() *statuslog.Log {
	return statuslog.New(a.cfg.Session.StatusLogCapacity)
}

// openStore opens the transcript store, or returns nil when transcripts
// are disabled.
func (a *app) openStore() (*transcript.Store, error) {
	if !a.cfg.Transcripts.Enabled {
		return nil, nil
	}
	return transcript.Open(transcript.Config{
		Dir:    a.cfg.Transcripts.Dir,
		Logger: a.logger,
	})
}
