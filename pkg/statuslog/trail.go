// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package statuslog

import "fmt"

// stepFormat prefixes a thought summary with its step number.
const stepFormat = "🧠 Step %d: %s"

// Trail writes one turn's progress into a shared Log.
//
// A Trail owns the per-turn state: the next thought step number (starting
// at 1) and the summary of the last thought it pushed, used to suppress
// consecutive duplicate thought summaries. A status line clears it. Create a new Trail per turn.
//
// # Thread Safety
//
// Not safe for concurrent use. A turn is dispatched by a single goroutine.
type Trail struct {
	log        *Log
	step       int
	last       string
	suppressed int
}

// NewTrail starts a trail for a new turn.
func NewTrail(log *Log) *Trail {
	return &Trail{log: log, step: 1}
}

// Status normalizes and pushes a status line. Status lines are never
// suppressed and never suppress a following thought, but they do end a run
// of duplicate thoughts. Empty lines are ignored.
func (t *Trail) Status(content string) {
	line := Normalize(content)
	if line == "" {
		return
	}
	t.last = ""
	t.log.Push(line)
}

// Thought reduces reasoning text to a summary and pushes it as the next
// step. It returns false when nothing was pushed, either because the text
// held only search directives or because the summary repeats the previous
// line. The step counter only advances on a push.
func (t *Trail) Thought(content string) bool {
	summary := Normalize(Summarize(content))
	if summary == "" {
		return false
	}
	if summary == t.last {
		t.suppressed++
		return false
	}
	t.last = summary
	t.log.Push(Normalize(fmt.Sprintf(stepFormat, t.step, summary)))
	t.step++
	return true
}

// Step returns the number the next pushed thought will carry.
func (t *Trail) Step() int {
	return t.step
}

// Suppressed returns how many thought summaries were dropped as duplicates.
func (t *Trail) Suppressed() int {
	return t.suppressed
}
