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
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Sovereign palette: ink blues with a warm accent for citations.
var (
	ColorInk       = lipgloss.Color("#1E3A5F") // Primary brand color
	ColorInkBright = lipgloss.Color("#3C7DD9") // Highlights, titles
	ColorPaper     = lipgloss.Color("#E8E2D0") // Excerpts
	ColorAmber     = lipgloss.Color("#E0A526") // Citation chips
	ColorSlate     = lipgloss.Color("#5C6B7A") // Muted text, borders

	ColorSuccess = lipgloss.Color("#3FB68B")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style

	// Research output
	StatusLine lipgloss.Style
	StepLine   lipgloss.Style
	Emphasis   lipgloss.Style
	Chip       lipgloss.Style
	SourceName lipgloss.Style
	SourcePage lipgloss.Style
	Excerpt    lipgloss.Style
	UserLabel  lipgloss.Style

	Box      lipgloss.Style
	ShelfBox lipgloss.Style
	ErrorBox lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorInkBright),
	Subtitle: lipgloss.NewStyle().Foreground(ColorInkBright),
	Bold:     lipgloss.NewStyle().Bold(true),
	Muted:    lipgloss.NewStyle().Foreground(ColorSlate),
	Success:  lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:  lipgloss.NewStyle().Foreground(ColorWarning),
	Error:    lipgloss.NewStyle().Foreground(ColorError),

	StatusLine: lipgloss.NewStyle().Foreground(ColorSlate),
	StepLine:   lipgloss.NewStyle().Foreground(ColorInkBright),
	Emphasis:   lipgloss.NewStyle().Bold(true),
	Chip:       lipgloss.NewStyle().Foreground(ColorAmber),
	SourceName: lipgloss.NewStyle().Bold(true).Foreground(ColorInkBright),
	SourcePage: lipgloss.NewStyle().Foreground(ColorSlate),
	Excerpt:    lipgloss.NewStyle().Foreground(ColorPaper),
	UserLabel:  lipgloss.NewStyle().Bold(true).Foreground(ColorInk).Background(ColorPaper).Padding(0, 1),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorInk).
		Padding(0, 1),
	ShelfBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorSlate).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon provides status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconBullet  Icon = "•"
	IconBook    Icon = "📚"
	IconChip    Icon = "🔖"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

var (
	outMu  sync.Mutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects the print helpers and returns a function restoring
// the previous writers.
func SetOutput(out, errOut io.Writer) (restore func()) {
	outMu.Lock()
	defer outMu.Unlock()
	prevOut, prevErr := stdout, stderr
	stdout, stderr = out, errOut
	return func() {
		outMu.Lock()
		defer outMu.Unlock()
		stdout, stderr = prevOut, prevErr
	}
}

func writers() (io.Writer, io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	return stdout, stderr
}

// Print helpers that respect personality level

// Title prints a styled title
func Title(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	out, _ := writers()
	fmt.Fprintln(out, Styles.Title.Render(text))
}

// Success prints a success message with checkmark
func Success(text string) {
	out, _ := writers()
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(out, "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(out, "%s %s\n", IconSuccess, text)
	default:
		fmt.Fprintf(out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message
func Warning(text string) {
	out, errOut := writers()
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(errOut, "WARN: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(out, "%s %s\n", IconWarning, text)
	default:
		fmt.Fprintf(out, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error message
func Error(text string) {
	out, errOut := writers()
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(errOut, "ERROR: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(out, "%s %s\n", IconError, text)
	default:
		fmt.Fprintf(out, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational message
func Info(text string) {
	out, _ := writers()
	if GetPersonality().Level == PersonalityMachine {
		fmt.Fprintln(out, text)
		return
	}
	fmt.Fprintf(out, "%s %s\n", Styles.Muted.Render("│"), text)
}

// Muted prints muted/secondary text
func Muted(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	out, _ := writers()
	fmt.Fprintln(out, Styles.Muted.Render(text))
}

// Box prints text in a rounded box
func Box(title, content string) {
	out, _ := writers()
	if GetPersonality().Level == PersonalityMachine {
		fmt.Fprintf(out, "%s: %s\n", title, content)
		return
	}
	fmt.Fprintln(out, Styles.Box.Width(60).Render(Styles.Title.Render(title)+"\n"+content))
}

// DocumentList prints the indexed document names.
func DocumentList(names []string) {
	out, _ := writers()
	level := GetPersonality().Level
	if level == PersonalityMachine {
		for _, name := range names {
			fmt.Fprintf(out, "DOCUMENT: %s\n", name)
		}
		return
	}
	if len(names) == 0 {
		fmt.Fprintln(out, Styles.Muted.Render("暂无文档"))
		return
	}
	for _, name := range names {
		if level == PersonalityMinimal {
			fmt.Fprintf(out, "%s %s\n", IconBullet, name)
			continue
		}
		fmt.Fprintf(out, "%s %s\n", Styles.Muted.Render(string(IconBullet)), name)
	}
}

// UploadSummary prints a summary line for a batch upload.
func UploadSummary(uploaded, failed, total int) {
	out, _ := writers()
	if GetPersonality().Level == PersonalityMachine {
		fmt.Fprintf(out, "SUMMARY: uploaded=%d failed=%d total=%d\n", uploaded, failed, total)
		return
	}
	fmt.Fprintf(out, "\n%s %s  %s %s  %s %s\n",
		Styles.Success.Render(fmt.Sprintf("%d", uploaded)), Styles.Muted.Render("uploaded"),
		Styles.Error.Render(fmt.Sprintf("%d", failed)), Styles.Muted.Render("failed"),
		Styles.Bold.Render(fmt.Sprintf("%d", total)), Styles.Muted.Render("total"),
	)
}
