// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath       string
	baseURLOverride  string
	personalityLevel string // full/standard/minimal/machine
	traceFile        string
	metricsAddr      string

	resumeID        string
	assumeYes       bool
	watchExtensions []string
	watchNoReindex  bool

	rootCmd = &cobra.Command{
		Use:   "sovereign",
		Short: "Ask questions of your private document library",
		Long: `Sovereign streams investigations from the local research backend,
showing each reasoning step and the evidence it found, and manages the
documents the backend searches.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup, // Defined in app.go
	}

	// --- Research ---
	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Runs one investigation and prints the answer with its sources",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk, // Defined in cmd_chat.go
	}
	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Starts an interactive research conversation",
		Args:  cobra.NoArgs,
		RunE:  runChat, // Defined in cmd_chat.go
	}

	// --- Library ---
	docsCmd = &cobra.Command{
		Use:     "docs",
		Short:   "Lists the documents the backend has indexed",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE:    runDocs, // Defined in cmd_library.go
	}
	indexCmd = &cobra.Command{
		Use:   "index [path]",
		Short: "Rebuilds the backend's document index",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runIndex, // Defined in cmd_library.go
	}
	uploadCmd = &cobra.Command{
		Use:   "upload [file...]",
		Short: "Uploads documents and rebuilds the index once",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runUpload, // Defined in cmd_library.go
	}
	watchCmd = &cobra.Command{
		Use:   "watch [dir]",
		Short: "Uploads documents as they appear in a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWatch, // Defined in cmd_library.go
	}

	// --- Transcripts ---
	sessionsCmd = &cobra.Command{
		Use:   "sessions",
		Short: "Manage saved conversations",
	}
	sessionsListCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists saved conversations, newest first",
		Args:  cobra.NoArgs,
		RunE:  runSessionsList, // Defined in cmd_sessions.go
	}
	sessionsDeleteCmd = &cobra.Command{
		Use:   "delete [id]",
		Short: "Deletes a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsDelete, // Defined in cmd_sessions.go
	}

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Checks that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE:  runHealth, // Defined in cmd_library.go
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default ~/.sovereign/sovereign.yaml)")
	flags.StringVar(&baseURLOverride, "base-url", "", "Backend URL, overrides backend.base_url")
	flags.StringVar(&personalityLevel, "personality", "",
		"Output style: full, standard, minimal, or machine (scripting)")
	flags.StringVar(&traceFile, "trace-file", "", "Write OpenTelemetry spans to this file")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on host:port, overrides metrics.addr")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&resumeID, "resume", "", "Continue a saved conversation by id")

	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringSliceVar(&watchExtensions, "ext", []string{".pdf"}, "File extensions to upload")
	watchCmd.Flags().BoolVar(&watchNoReindex, "no-reindex", false, "Upload without rebuilding the index")

	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)

	rootCmd.AddCommand(healthCmd)
}
