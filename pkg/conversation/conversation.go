// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package conversation models the ordered sequence of turns exchanged
// between the user and the research backend.
package conversation

import (
	"sync"

	"github.com/AleutianAI/sovereign/pkg/evidence"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the conversation. Turns are immutable once
// appended; Sources is only set on assistant turns.
type Turn struct {
	Role    Role              `json:"role"`
	Content string            `json:"content"`
	Sources []evidence.Record `json:"sources,omitempty"`
}

// UserTurn builds the turn for a user submission.
func UserTurn(query string) Turn {
	return Turn{Role: RoleUser, Content: query}
}

// AssistantTurn builds a completed assistant turn.
func AssistantTurn(content string, sources []evidence.Record) Turn {
	return Turn{Role: RoleAssistant, Content: content, Sources: sources}
}

// History filters turns down to the context sent with a new query: every
// user turn, and assistant turns with non-empty content.
func History(turns []Turn) []Turn {
	history := make([]Turn, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case RoleUser:
			history = append(history, t)
		case RoleAssistant:
			if t.Content != "" {
				history = append(history, t)
			}
		}
	}
	return history
}

// Conversation is an append-only, ordered list of turns.
//
// # Thread Safety
//
// Safe for concurrent use. Readers receive copies.
type Conversation struct {
	mu    sync.RWMutex
	turns []Turn
}

// New creates a conversation, optionally seeded with earlier turns.
func New(turns ...Turn) *Conversation {
	return &Conversation{turns: append([]Turn(nil), turns...)}
}

// Append adds a turn at the end.
func (c *Conversation) Append(t Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t.Sources = append([]evidence.Record(nil), t.Sources...)
	c.turns = append(c.turns, t)
}

// Turns returns a copy of all turns, oldest first.
func (c *Conversation) Turns() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Turn(nil), c.turns...)
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// Last returns the newest turn.
func (c *Conversation) Last() (Turn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.turns) == 0 {
		return Turn{}, false
	}
	return c.turns[len(c.turns)-1], true
}
