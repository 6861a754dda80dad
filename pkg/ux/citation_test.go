// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countKind(segments []Segment, kind SegmentKind) int {
	n := 0
	for _, s := range segments {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

func TestParseCitations_MixedBlocks(t *testing.T) {
	text := "结论A [来源: paper.pdf, Page 3]. 结论B [来源: x.pdf; source: y.pdf, page 2]"

	segments := ParseCitations(text)

	require.Equal(t, []Segment{
		{Kind: SegmentText, Text: "结论A "},
		{Kind: SegmentCitation, Citation: Citation{File: "paper.pdf", Page: "3"}},
		{Kind: SegmentText, Text: ". 结论B "},
		{Kind: SegmentCitation, Citation: Citation{File: "x.pdf"}},
		{Kind: SegmentCitation, Citation: Citation{File: "y.pdf", Page: "2"}},
	}, segments)
	assert.Equal(t, 2, countKind(segments, SegmentText))
	assert.Equal(t, 3, countKind(segments, SegmentCitation))
	assert.False(t, segments[3].Citation.HasPage())
}

func TestParseCitations_NonSourceBracketPassesThrough(t *testing.T) {
	segments := ParseCitations("see [note] here")

	require.Len(t, segments, 1)
	assert.Equal(t, Segment{Kind: SegmentText, Text: "see [note] here"}, segments[0])
}

func TestParseCitations_NonSourceBracketBeforeCitation(t *testing.T) {
	segments := ParseCitations("[1] fact [source: a.pdf]")

	require.Len(t, segments, 2)
	assert.Equal(t, "[1] fact ", segments[0].Text)
	assert.Equal(t, Citation{File: "a.pdf"}, segments[1].Citation)
}

func TestParseCitations_EntryVariants(t *testing.T) {
	tests := []struct {
		name  string
		block string
		want  []Citation
	}{
		{"full-width colon", "[来源：a.pdf, 页：5]", []Citation{{File: "a.pdf", Page: "5"}}},
		{"uppercase label", "[SOURCE: b.pdf, PAGE 7]", []Citation{{File: "b.pdf", Page: "7"}}},
		{"no label", "[a.pdf, page 2; source: c.pdf]", []Citation{{File: "a.pdf", Page: "2"}, {File: "c.pdf"}}},
		{"colon in file", "[source: arXiv:1234]", []Citation{{File: "arXiv:1234"}}},
		{"empty entries dropped", "[source: a.pdf;; ;]", []Citation{{File: "a.pdf"}}},
		{"label only dropped", "[source:]", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Citations(tt.block))
		})
	}
}

func TestParseCitations_EmphasisAndBreaks(t *testing.T) {
	segments := ParseCitations("**结论**\n细节 [来源: a.pdf]\n")

	require.Equal(t, []Segment{
		{Kind: SegmentEmphasis, Text: "结论"},
		{Kind: SegmentBreak},
		{Kind: SegmentText, Text: "细节 "},
		{Kind: SegmentCitation, Citation: Citation{File: "a.pdf"}},
		{Kind: SegmentBreak},
	}, segments)
}

func TestParseCitations_Empty(t *testing.T) {
	assert.Empty(t, ParseCitations(""))
}

func TestParseCitations_DoesNotModifyText(t *testing.T) {
	text := "答案 **重点** [来源: a.pdf, Page 1]"
	_ = ParseCitations(text)
	assert.Equal(t, "答案 **重点** [来源: a.pdf, Page 1]", text)
}
