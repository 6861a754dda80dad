// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"time"

	"github.com/AleutianAI/sovereign/pkg/client"
	"github.com/AleutianAI/sovereign/pkg/session"
	"github.com/AleutianAI/sovereign/pkg/statuslog"
	"github.com/AleutianAI/sovereign/pkg/watch"
)

type SovereignConfig struct {
	// Backend: where the research service listens
	Backend BackendConfig `yaml:"backend" mapstructure:"backend"`

	// Session: per-conversation limits
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// Library: document upload and folder watching
	Library LibraryConfig `yaml:"library" mapstructure:"library"`

	// Transcripts: saved conversations for `chat --resume`
	Transcripts TranscriptConfig `yaml:"transcripts" mapstructure:"transcripts"`

	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	UI      UIConfig      `yaml:"ui" mapstructure:"ui"`
}

type BackendConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"` // non-streaming calls only
}

type SessionConfig struct {
	StatusLogCapacity int `yaml:"status_log_capacity" mapstructure:"status_log_capacity" validate:"min=1"`
}

type LibraryConfig struct {
	DocumentsDir      string        `yaml:"documents_dir" mapstructure:"documents_dir" validate:"required"`
	UploadConcurrency int           `yaml:"upload_concurrency" mapstructure:"upload_concurrency" validate:"min=1,max=32"`
	WatchDebounce     time.Duration `yaml:"watch_debounce" mapstructure:"watch_debounce" validate:"gte=0"`
}

type TranscriptConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir     string `yaml:"dir" mapstructure:"dir" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Dir   string `yaml:"dir" mapstructure:"dir"` // empty = no log file
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"` // empty = disabled
}

type UIConfig struct {
	// Personality is full, standard, minimal or machine. Empty picks from
	// the terminal.
	Personality string `yaml:"personality" mapstructure:"personality" validate:"omitempty,oneof=full standard minimal machine"`
}

func DefaultConfig() SovereignConfig {
	return SovereignConfig{
		Backend: BackendConfig{
			BaseURL: client.DefaultBaseURL,
			Timeout: client.DefaultTimeout,
		},
		Session: SessionConfig{
			StatusLogCapacity: statuslog.DefaultCapacity,
		},
		Library: LibraryConfig{
			DocumentsDir:      "./documents",
			UploadConcurrency: session.DefaultUploadConcurrency,
			WatchDebounce:     watch.DefaultDebounce,
		},
		Transcripts: TranscriptConfig{
			Enabled: true,
			Dir:     "~/.sovereign/transcripts",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.sovereign/logs",
		},
	}
}
