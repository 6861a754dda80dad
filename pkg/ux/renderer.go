// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/AleutianAI/sovereign/pkg/conversation"
	"github.com/AleutianAI/sovereign/pkg/evidence"
)

const (
	userLabel      = "你"
	assistantIcon  = "📓"
	shelfTitle     = "Sources & Citations"
	shelfEmpty     = "回答里的引用会展示在这里。"
	shelfWidth     = 72
	excerptRunes   = 160
	stepLinePrefix = "🧠 Step"
)

// =============================================================================
// Turn Renderer
// =============================================================================

// TurnRenderer renders completed conversation turns. It only reads the
// turns it is given; stored content is never rewritten.
//
// Personality Modes:
//
//   - PersonalityFull/Standard: styled content, citation chips and a boxed
//     source shelf
//   - PersonalityMinimal: plain text with chips and a numbered source list
//   - PersonalityMachine: KEY: value lines
//
// Example:
//
//	r := NewTurnRenderer(os.Stdout, GetPersonality().Level)
//	r.Render(turn)
type TurnRenderer struct {
	writer io.Writer
	level  PersonalityLevel
}

// NewTurnRenderer creates a renderer. A nil writer means os.Stdout.
func NewTurnRenderer(w io.Writer, level PersonalityLevel) *TurnRenderer {
	if w == nil {
		w = os.Stdout
	}
	return &TurnRenderer{writer: w, level: level}
}

// Render writes one turn. Assistant turns are followed by their source
// shelf when they carry sources.
func (r *TurnRenderer) Render(turn conversation.Turn) {
	if r.level == PersonalityMachine {
		r.renderMachine(turn)
		return
	}

	if turn.Role == conversation.RoleUser {
		label := userLabel
		if r.level != PersonalityMinimal {
			label = Styles.UserLabel.Render(userLabel)
		}
		fmt.Fprintf(r.writer, "%s %s\n", label, turn.Content)
		return
	}

	fmt.Fprintf(r.writer, "%s %s\n", assistantIcon, r.RenderContent(turn.Content))
	if len(turn.Sources) > 0 {
		fmt.Fprintln(r.writer, r.RenderSources(turn.Sources))
	}
}

func (r *TurnRenderer) renderMachine(turn conversation.Turn) {
	if turn.Role == conversation.RoleUser {
		fmt.Fprintf(r.writer, "QUERY: %s\n", turn.Content)
		return
	}
	fmt.Fprintf(r.writer, "ANSWER: %s\n", turn.Content)
	for _, c := range Citations(turn.Content) {
		if c.HasPage() {
			fmt.Fprintf(r.writer, "CITATION: %s page=%s\n", c.File, c.Page)
		} else {
			fmt.Fprintf(r.writer, "CITATION: %s\n", c.File)
		}
	}
	for _, src := range turn.Sources {
		fmt.Fprintf(r.writer, "SOURCE: %s page=%s\n", src.SourceID, src.Page)
	}
}

// RenderContent resolves citation blocks, bold spans and line breaks of
// answer text into display form.
func (r *TurnRenderer) RenderContent(content string) string {
	styled := r.level != PersonalityMinimal && r.level != PersonalityMachine

	var b strings.Builder
	for _, seg := range ParseCitations(content) {
		switch seg.Kind {
		case SegmentText:
			b.WriteString(seg.Text)
		case SegmentEmphasis:
			if styled {
				b.WriteString(Styles.Emphasis.Render(seg.Text))
			} else {
				b.WriteString(seg.Text)
			}
		case SegmentBreak:
			b.WriteString("\n")
		case SegmentCitation:
			chip := ChipLabel(seg.Citation)
			if styled {
				chip = Styles.Chip.Render(chip)
			}
			b.WriteString(chip)
		}
	}
	return b.String()
}

// ChipLabel is the inline label of a citation: "🔖 file · Page p".
func ChipLabel(c Citation) string {
	if c.HasPage() {
		return fmt.Sprintf("%s %s · Page %s", IconChip, c.File, c.Page)
	}
	return fmt.Sprintf("%s %s", IconChip, c.File)
}

// RenderSources renders a source shelf: one entry per record with its
// page locator and a clipped excerpt.
func (r *TurnRenderer) RenderSources(sources []evidence.Record) string {
	if r.level == PersonalityMachine {
		lines := make([]string, 0, len(sources))
		for _, src := range sources {
			lines = append(lines, fmt.Sprintf("SOURCE: %s page=%s", src.SourceID, src.Page))
		}
		return strings.Join(lines, "\n")
	}

	if len(sources) == 0 {
		return Styles.Muted.Render(shelfEmpty)
	}

	if r.level == PersonalityMinimal {
		var b strings.Builder
		b.WriteString(shelfTitle + ":")
		for i, src := range sources {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, src.SourceID)
			if src.Page != "" {
				fmt.Fprintf(&b, " P.%s", src.Page)
			}
		}
		return b.String()
	}

	var b strings.Builder
	b.WriteString(Styles.Subtitle.Render(shelfTitle))
	for _, src := range sources {
		b.WriteString("\n")
		b.WriteString(Styles.SourceName.Render(src.SourceID))
		if src.Page != "" {
			b.WriteString(" " + Styles.SourcePage.Render("P."+string(src.Page)))
		}
		if src.Text != "" {
			b.WriteString("\n  " + Styles.Excerpt.Render(clipExcerpt(src.Text)))
		}
	}
	return Styles.ShelfBox.Width(shelfWidth).Render(b.String())
}

// clipExcerpt flattens an excerpt to one line of at most excerptRunes.
func clipExcerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= excerptRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:excerptRunes-3]) + "..."
}

// =============================================================================
// Terminal Observer
// =============================================================================

// TerminalObserver prints a research turn as it streams: each status-log
// line when it is pushed, the source shelf on each evidence snapshot, and
// the finished turn.
//
// A spinner runs from turn start until the first line arrives.
//
// Thread Safety:
//
//	All methods are protected by a mutex.
type TerminalObserver struct {
	mu          sync.Mutex
	writer      io.Writer
	personality Personality
	renderer    *TurnRenderer
	spinner     *Spinner
}

// NewTerminalObserver creates an observer writing to w (os.Stdout if nil).
func NewTerminalObserver(w io.Writer, p Personality) *TerminalObserver {
	if w == nil {
		w = os.Stdout
	}
	return &TerminalObserver{
		writer:      w,
		personality: p,
		renderer:    NewTurnRenderer(w, p.Level),
	}
}

// Renderer returns the renderer used for finished turns.
func (o *TerminalObserver) Renderer() *TurnRenderer {
	return o.renderer
}

// OnTurnStart starts the waiting spinner.
func (o *TerminalObserver) OnTurnStart(query string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopSpinner()
	if o.personality.Level == PersonalityMachine {
		return
	}
	o.spinner = NewSpinnerTo(o.writer, "研究中...").WithType(SpinnerPages)
	o.spinner.Start()
}

// OnLogLine prints one status-log line.
func (o *TerminalObserver) OnLogLine(line string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopSpinner()
	if o.personality.Level == PersonalityMachine {
		fmt.Fprintf(o.writer, "LOG: %s\n", line)
		return
	}
	if !o.personality.ShowSteps {
		return
	}
	if o.personality.Level == PersonalityMinimal {
		fmt.Fprintf(o.writer, "  %s\n", line)
		return
	}
	style := Styles.StatusLine
	if strings.HasPrefix(line, stepLinePrefix) {
		style = Styles.StepLine
	}
	fmt.Fprintf(o.writer, "%s %s\n", Styles.Muted.Render("│"), style.Render(line))
}

// OnEvidence prints the accumulated evidence snapshot.
func (o *TerminalObserver) OnEvidence(records []evidence.Record) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.personality.Level == PersonalityMachine {
		fmt.Fprintf(o.writer, "EVIDENCE: %d\n", len(records))
		return
	}
	if !o.personality.ShowEvidence {
		return
	}
	o.stopSpinner()
	fmt.Fprintln(o.writer, o.renderer.RenderSources(records))
}

// OnTurnComplete renders the finished assistant turn.
func (o *TerminalObserver) OnTurnComplete(turn conversation.Turn) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopSpinner()
	if o.personality.Level != PersonalityMachine {
		fmt.Fprintln(o.writer)
	}
	o.renderer.Render(turn)
}

// Close stops any running spinner.
func (o *TerminalObserver) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopSpinner()
}

func (o *TerminalObserver) stopSpinner() {
	if o.spinner != nil {
		o.spinner.Stop()
		o.spinner = nil
	}
}
