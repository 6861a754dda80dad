// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// =============================================================================
// InputReader
// =============================================================================

// InputReader reads one query line at a time.
//
// ReadLine returns the trimmed line, or io.EOF when input ends. An empty
// line means the user cleared the prompt and should be asked again.
type InputReader interface {
	ReadLine() (string, error)
}

// lineReader reads from a plain stream. Used for pipes and tests.
type lineReader struct {
	scanner *bufio.Scanner
}

func newLineReader(r io.Reader) *lineReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	return &lineReader{scanner: scanner}
}

func (r *lineReader) ReadLine() (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(r.scanner.Text()), nil
}

// promptReader edits the line in place with history on the up and down
// arrows.
type promptReader struct {
	prompt     string
	history    []string
	maxHistory int
}

// newInputReader returns a promptReader on a terminal, a lineReader on
// stdin otherwise.
func newInputReader(prompt string, maxHistory int) InputReader {
	fd := os.Stdin.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return newLineReader(os.Stdin)
	}
	return &promptReader{
		prompt:     prompt,
		history:    make([]string, 0, maxHistory),
		maxHistory: maxHistory,
	}
}

func (r *promptReader) ReadLine() (string, error) {
	p := tea.NewProgram(newInputModel(r.prompt, r.history), tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		return "", err
	}
	m, ok := final.(inputModel)
	if !ok {
		return "", fmt.Errorf("unexpected model type from bubbletea: %T", final)
	}
	if m.eof {
		return "", io.EOF
	}
	line := strings.TrimSpace(m.textInput.Value())
	if line != "" {
		r.remember(line)
	}
	return line, nil
}

func (r *promptReader) remember(line string) {
	if n := len(r.history); n > 0 && r.history[n-1] == line {
		return
	}
	r.history = append(r.history, line)
	if len(r.history) > r.maxHistory {
		r.history = r.history[1:]
	}
}

// =============================================================================
// bubbletea model
// =============================================================================

type inputModel struct {
	textInput    textinput.Model
	history      []string
	historyIndex int    // -1 while editing a fresh line
	draft        string // the fresh line, kept while browsing history
	done         bool
	eof          bool
}

func newInputModel(prompt string, history []string) inputModel {
	ti := textinput.New()
	ti.Prompt = prompt
	ti.Placeholder = "输入研究问题..."
	ti.CharLimit = 4096
	ti.Width = 80
	ti.Focus()
	return inputModel{
		textInput:    ti,
		history:      history,
		historyIndex: -1,
	}
}

func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}

	switch key.Type {
	case tea.KeyEnter:
		m.done = true
		return m, tea.Quit

	case tea.KeyCtrlC:
		// Clears the line; the caller prompts again.
		m.textInput.SetValue("")
		m.done = true
		return m, tea.Quit

	case tea.KeyCtrlD:
		m.eof = true
		m.done = true
		m.textInput.SetValue("")
		return m, tea.Quit

	case tea.KeyUp:
		if len(m.history) == 0 {
			return m, nil
		}
		if m.historyIndex == -1 {
			m.draft = m.textInput.Value()
			m.historyIndex = len(m.history) - 1
		} else if m.historyIndex > 0 {
			m.historyIndex--
		}
		m.textInput.SetValue(m.history[m.historyIndex])
		m.textInput.CursorEnd()
		return m, nil

	case tea.KeyDown:
		if m.historyIndex == -1 {
			return m, nil
		}
		if m.historyIndex < len(m.history)-1 {
			m.historyIndex++
			m.textInput.SetValue(m.history[m.historyIndex])
		} else {
			m.historyIndex = -1
			m.textInput.SetValue(m.draft)
		}
		m.textInput.CursorEnd()
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.done {
		return ""
	}
	return m.textInput.View()
}
