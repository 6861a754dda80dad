// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conversation

import (
	"testing"

	"github.com/AleutianAI/sovereign/pkg/evidence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_KeepsUsersAndNonEmptyAssistants(t *testing.T) {
	turns := []Turn{
		UserTurn("q1"),
		AssistantTurn("a1", nil),
		UserTurn("q2"),
		AssistantTurn("", []evidence.Record{{SourceID: "x"}}),
		{Role: "system", Content: "ignored"},
		UserTurn(""),
	}

	got := History(turns)

	assert.Equal(t, []Turn{
		UserTurn("q1"),
		AssistantTurn("a1", nil),
		UserTurn("q2"),
		UserTurn(""),
	}, got)
}

func TestConversation_AppendAndCopy(t *testing.T) {
	c := New(UserTurn("seed"))
	c.Append(AssistantTurn("answer", []evidence.Record{{SourceID: "a.pdf"}}))

	require.Equal(t, 2, c.Len())
	turns := c.Turns()
	turns[0].Content = "mutated"
	assert.Equal(t, "seed", c.Turns()[0].Content)

	last, ok := c.Last()
	require.True(t, ok)
	assert.Equal(t, RoleAssistant, last.Role)
	assert.Equal(t, "a.pdf", last.Sources[0].SourceID)
}

func TestConversation_AppendCopiesSources(t *testing.T) {
	c := New()
	sources := []evidence.Record{{SourceID: "a.pdf"}}
	c.Append(AssistantTurn("x", sources))
	sources[0].SourceID = "changed"

	last, _ := c.Last()
	assert.Equal(t, "a.pdf", last.Sources[0].SourceID)
}

func TestConversation_LastEmpty(t *testing.T) {
	_, ok := New().Last()
	assert.False(t, ok)
}
