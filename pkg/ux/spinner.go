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
	"sync"
	"time"
)

// SpinnerType defines the animation style
type SpinnerType int

const (
	SpinnerDots SpinnerType = iota
	SpinnerPages
	SpinnerCompass
)

const spinnerInterval = 80 * time.Millisecond

var spinnerFrames = map[SpinnerType][]string{
	SpinnerDots:    {"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	SpinnerPages:   {"📄", "📃", "📑", "📃"},
	SpinnerCompass: {"◐", "◓", "◑", "◒"},
}

// Spinner is an animated waiting indicator drawn on a single line.
// A spinner can be started once; create a new one for the next wait.
type Spinner struct {
	writer     io.Writer
	message    string
	spinType   SpinnerType
	stop       chan struct{}
	done       chan struct{}
	mu         sync.Mutex
	isRunning  bool
	stopped    bool
	frameIndex int
}

// NewSpinner creates a spinner that draws on the current stdout writer.
func NewSpinner(message string) *Spinner {
	out, _ := writers()
	return NewSpinnerTo(out, message)
}

// NewSpinnerTo creates a spinner that draws on w.
func NewSpinnerTo(w io.Writer, message string) *Spinner {
	return &Spinner{
		writer:   w,
		message:  message,
		spinType: SpinnerDots,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// WithType sets the spinner animation type
func (s *Spinner) WithType(t SpinnerType) *Spinner {
	s.spinType = t
	return s
}

// Start begins the animation. In machine mode the message is printed once.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.isRunning || s.stopped {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	if GetPersonality().Level == PersonalityMachine {
		fmt.Fprintf(s.writer, "PROGRESS: %s\n", s.currentMessage())
		close(s.done)
		return
	}

	go s.run()
}

func (s *Spinner) run() {
	defer close(s.done)
	frames := spinnerFrames[s.spinType]
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			fmt.Fprint(s.writer, "\r\033[K")
			return
		case <-ticker.C:
			frame := Styles.Subtitle.Render(frames[s.frameIndex])
			fmt.Fprintf(s.writer, "\r%s %s", frame, s.currentMessage())
			s.frameIndex = (s.frameIndex + 1) % len(frames)
		}
	}
}

// Stop halts the animation and clears the line. Safe to call repeatedly.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.stopped = true
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.stopped = true
	s.mu.Unlock()

	close(s.stop)
	<-s.done
}

// IsRunning reports whether the animation is active.
func (s *Spinner) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// UpdateMessage changes the spinner message while running
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

func (s *Spinner) currentMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// WithSpinner runs fn behind a spinner and reports success or failure.
func WithSpinner(message string, fn func() error) error {
	spin := NewSpinner(message)
	spin.Start()

	err := fn()
	spin.Stop()

	if err != nil {
		Error(fmt.Sprintf("%s: %v", message, err))
		return err
	}
	Success(message)
	return nil
}
