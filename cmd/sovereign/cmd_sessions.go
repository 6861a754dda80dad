// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/sovereign/pkg/transcript"
	"github.com/AleutianAI/sovereign/pkg/ux"
)

var errTranscriptsDisabled = errors.New("transcripts are disabled in the config")

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, err := current.openStore()
	if err != nil {
		return err
	}
	if store == nil {
		return errTranscriptsDisabled
	}
	defer store.Close()

	summaries, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	printSessions(cmd.OutOrStdout(), summaries, ux.GetPersonality().Level)
	return nil
}

func printSessions(w io.Writer, summaries []transcript.Summary, level ux.PersonalityLevel) {
	if level == ux.PersonalityMachine {
		for _, s := range summaries {
			fmt.Fprintf(w, "SESSION: %s turns=%d updated=%s title=%q\n",
				s.ID, s.Turns, s.UpdatedAt.Format(time.RFC3339), s.Title)
		}
		return
	}
	if len(summaries) == 0 {
		fmt.Fprintln(w, ux.Styles.Muted.Render("暂无保存的会话"))
		return
	}
	for _, s := range summaries {
		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			ux.Styles.Bold.Render(s.ID),
			ux.Styles.Muted.Render(s.UpdatedAt.Local().Format("2006-01-02 15:04")),
			ux.Styles.Muted.Render(fmt.Sprintf("%d 条", s.Turns)),
			s.Title,
		)
	}
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	store, err := current.openStore()
	if err != nil {
		return err
	}
	if store == nil {
		return errTranscriptsDisabled
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	ux.Success("已删除会话 " + args[0])
	return nil
}
