// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package evidence

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []Record {
	return []Record{
		{SourceID: "a.pdf", Page: "1", Text: "transformers scale with data and compute"},
		{SourceID: "b.pdf", Page: "2", Text: "t2"},
		{SourceID: "a.pdf", Page: "3", Text: "another passage"},
	}
}

func TestMerge_EmptyIncomingIsIdentity(t *testing.T) {
	x := sample()
	assert.Equal(t, x, Merge(x, nil))
	assert.Equal(t, x, Merge(x, []Record{}))
}

func TestMerge_SelfMergeDoesNotGrow(t *testing.T) {
	x := sample()
	assert.Equal(t, x, Merge(x, x))
}

func TestMerge_DedupesByCompositeKeyInOrder(t *testing.T) {
	existing := []Record{{SourceID: "a", Page: "1", Text: "t1..."}}
	incoming := []Record{
		{SourceID: "a", Page: "1", Text: "t1..."},
		{SourceID: "b", Page: "2", Text: "t2"},
	}

	got := Merge(existing, incoming)

	require.Len(t, got, 2)
	assert.Equal(t, Record{SourceID: "a", Page: "1", Text: "t1..."}, got[0])
	assert.Equal(t, Record{SourceID: "b", Page: "2", Text: "t2"}, got[1])
}

func TestMerge_FirstOccurrenceWins(t *testing.T) {
	prefix := strings.Repeat("x", 32)
	first := Record{SourceID: "a", Page: "1", Text: prefix + " first tail"}
	second := Record{SourceID: "a", Page: "1", Text: prefix + " second tail"}

	got := Merge([]Record{first}, []Record{second})

	require.Len(t, got, 1)
	assert.Equal(t, first, got[0])
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	existing := sample()[:1]
	incoming := sample()[1:]
	before := append([]Record(nil), existing...)

	got := Merge(existing, incoming)
	got[0].SourceID = "changed"

	assert.Equal(t, before, existing)
}

func TestMerge_Deterministic(t *testing.T) {
	a := Merge(sample(), sample())
	b := Merge(sample(), sample())
	assert.Equal(t, a, b)
}

func TestRecordKey_UsesRunePrefix(t *testing.T) {
	text := strings.Repeat("检", 40)
	rec := Record{SourceID: "s", Page: "1", Text: text}
	assert.Equal(t, "s-1-"+strings.Repeat("检", 32), rec.Key())
}

func TestFromEvent_DefaultsForMissingMetadata(t *testing.T) {
	src := "paper.pdf"
	page := Page("7")
	metas := []Meta{
		{Source: &src, Page: &page},
		{},
	}

	got := FromEvent([]string{"d0", "d1", "d2"}, metas)

	require.Len(t, got, 3)
	assert.Equal(t, Record{SourceID: "paper.pdf", Page: "7", Text: "d0"}, got[0])
	assert.Equal(t, Record{SourceID: UnknownSource, Page: UnknownPage, Text: "d1"}, got[1])
	assert.Equal(t, Record{SourceID: UnknownSource, Page: UnknownPage, Text: "d2"}, got[2])
}

func TestPage_UnmarshalStringOrNumber(t *testing.T) {
	var metas []Meta
	err := json.Unmarshal([]byte(`[{"source":"a","page":3},{"source":"b","page":"iv"},{"page":null}]`), &metas)
	require.NoError(t, err)
	require.Len(t, metas, 3)

	require.NotNil(t, metas[0].Page)
	assert.Equal(t, Page("3"), *metas[0].Page)
	n, ok := metas[0].Page.Int()
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	require.NotNil(t, metas[1].Page)
	assert.Equal(t, Page("iv"), *metas[1].Page)
	_, ok = metas[1].Page.Int()
	assert.False(t, ok)

	assert.Nil(t, metas[2].Source)
}
