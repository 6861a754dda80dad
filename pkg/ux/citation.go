// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"regexp"
	"strings"
)

var (
	bracketPattern   = regexp.MustCompile(`\[([^\]]+)\]`)
	sourceMarker     = regexp.MustCompile(`(?i)(来源|source)`)
	sourceLabel      = regexp.MustCompile(`(?i)^(?:来源|source)\s*[:：]\s*`)
	citationEntry    = regexp.MustCompile(`(?i)^(.+?)(?:\s*,\s*(?:page|页)\s*[:：]?\s*(.+))?$`)
	emphasisPattern  = regexp.MustCompile(`\*\*(.*?)\*\*`)
	citationEntrySep = ";"
)

// SegmentKind identifies what a Segment holds.
type SegmentKind int

const (
	// SegmentText is literal text.
	SegmentText SegmentKind = iota
	// SegmentEmphasis is text that was wrapped in **...**.
	SegmentEmphasis
	// SegmentBreak is a line break inside literal text.
	SegmentBreak
	// SegmentCitation is one parsed citation entry.
	SegmentCitation
)

// Citation is one source reference found inside a citation block.
// Page is empty when the entry has no page indicator.
type Citation struct {
	File string
	Page string
}

// HasPage reports whether the citation carries a page locator.
func (c Citation) HasPage() bool {
	return c.Page != ""
}

// Segment is one renderable piece of answer text, in original order.
// Text is set for SegmentText and SegmentEmphasis; Citation for
// SegmentCitation.
type Segment struct {
	Kind     SegmentKind
	Text     string
	Citation Citation
}

// ParseCitations splits answer text into literal spans and citation entries
// without modifying the text.
//
// # Description
//
// A bracketed span is a citation block only when its content mentions
// "来源" or "source" (any case). Each block is split on ";" and every entry
// is parsed as "[来源:] file[, page N]". Entries without a file are dropped.
// Other brackets stay in the literal text.
//
// Literal text is further split into SegmentEmphasis for **bold** spans and
// SegmentBreak for each newline.
//
// # Example
//
//	ParseCitations("结论A [来源: paper.pdf, Page 3].")
//	// Text "结论A ", Citation{paper.pdf 3}, Text "."
func ParseCitations(text string) []Segment {
	var segments []Segment
	last := 0

	for _, m := range bracketPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		inner := text[m[2]:m[3]]
		if !sourceMarker.MatchString(inner) {
			continue
		}
		if start > last {
			segments = appendLiteral(segments, text[last:start])
		}
		for _, entry := range strings.Split(inner, citationEntrySep) {
			if c, ok := parseCitationEntry(entry); ok {
				segments = append(segments, Segment{Kind: SegmentCitation, Citation: c})
			}
		}
		last = end
	}

	if last < len(text) {
		segments = appendLiteral(segments, text[last:])
	}
	return segments
}

// Citations returns only the citation entries of text, in order.
func Citations(text string) []Citation {
	var out []Citation
	for _, seg := range ParseCitations(text) {
		if seg.Kind == SegmentCitation {
			out = append(out, seg.Citation)
		}
	}
	return out
}

func parseCitationEntry(entry string) (Citation, bool) {
	cleaned := strings.TrimSpace(entry)
	if cleaned == "" {
		return Citation{}, false
	}
	stripped := sourceLabel.ReplaceAllString(cleaned, "")
	m := citationEntry.FindStringSubmatch(stripped)
	if m == nil {
		return Citation{}, false
	}
	file := strings.TrimSpace(m[1])
	if file == "" {
		return Citation{}, false
	}
	return Citation{File: file, Page: strings.TrimSpace(m[2])}, true
}

// appendLiteral resolves bold spans and line breaks in a literal chunk.
func appendLiteral(segments []Segment, chunk string) []Segment {
	last := 0
	for _, m := range emphasisPattern.FindAllStringSubmatchIndex(chunk, -1) {
		segments = appendPlain(segments, chunk[last:m[0]])
		if m[3] > m[2] {
			segments = append(segments, Segment{Kind: SegmentEmphasis, Text: chunk[m[2]:m[3]]})
		}
		last = m[1]
	}
	return appendPlain(segments, chunk[last:])
}

func appendPlain(segments []Segment, s string) []Segment {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			segments = append(segments, Segment{Kind: SegmentText, Text: line})
		}
		if i < len(lines)-1 {
			segments = append(segments, Segment{Kind: SegmentBreak})
		}
	}
	return segments
}
