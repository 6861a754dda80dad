// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package statuslog

import "sync"

// DefaultCapacity is the number of lines kept when no capacity is given.
const DefaultCapacity = 40

// Listener is notified after every line appended to a Log.
type Listener func(line string)

// Log is an ordered, bounded transcript of status lines.
//
// When a push would exceed the capacity, the oldest lines are evicted.
// The log spans the whole conversation; it is not cleared between turns.
//
// # Thread Safety
//
// Log is safe for concurrent use. Listeners are invoked outside the lock,
// in push order for a single writer.
type Log struct {
	mu        sync.Mutex
	lines     []string
	capacity  int
	listeners []Listener
}

// New creates a log holding at most capacity lines. A capacity below one
// selects DefaultCapacity.
func New(capacity int) *Log {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Log{
		lines:    make([]string, 0, capacity),
		capacity: capacity,
	}
}

// Subscribe registers a listener for future pushes.
func (l *Log) Subscribe(fn Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Push appends a line as-is and evicts the oldest lines beyond capacity.
func (l *Log) Push(line string) {
	l.mu.Lock()
	l.lines = append(l.lines, line)
	if over := len(l.lines) - l.capacity; over > 0 {
		l.lines = append(l.lines[:0:0], l.lines[over:]...)
	}
	listeners := append([]Listener(nil), l.listeners...)
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(line)
	}
}

// Lines returns a copy of the current lines, oldest first.
func (l *Log) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// Len returns the number of lines held.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

// Capacity returns the maximum number of lines held.
func (l *Log) Capacity() int {
	return l.capacity
}

// Last returns the newest line, or "" when empty.
func (l *Log) Last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.lines) == 0 {
		return ""
	}
	return l.lines[len(l.lines)-1]
}
