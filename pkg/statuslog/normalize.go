// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package statuslog keeps the human-readable progress trail of research
// turns: a bounded transcript of status lines plus the per-turn logic that
// reduces raw reasoning text into numbered, deduplicated step summaries.
package statuslog

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	boldPattern       = regexp.MustCompile(`\*\*(.*?)\*\*`)
	inlineCodePattern = regexp.MustCompile("`([^`]*)`")
	inlineMathPattern = regexp.MustCompile(`\$(.*?)\$`)

	// actionDirectivePattern matches "Action: [SEARCH] ..." through end of
	// line. Search actions are already reported by status events.
	actionDirectivePattern = regexp.MustCompile(`(?i)Action:\s*\[SEARCH\][^\n]*`)
)

const (
	// MaxSummaryRunes caps a thought summary, marker included.
	MaxSummaryRunes = 160

	truncationMarker = "..."
	sentenceEnders   = "。.!?？"
)

// Normalize trims a log line and unwraps markdown emphasis, inline code and
// inline math markers.
//
// Example:
//
//	Normalize("**bold** and `code` and $x+1$") // "bold and code and x+1"
func Normalize(raw string) string {
	out := strings.TrimSpace(raw)
	out = boldPattern.ReplaceAllString(out, "$1")
	out = inlineCodePattern.ReplaceAllString(out, "$1")
	out = inlineMathPattern.ReplaceAllString(out, "$1")
	return strings.TrimSpace(out)
}

// StripActions removes embedded search directives from thought text.
func StripActions(content string) string {
	return strings.TrimSpace(actionDirectivePattern.ReplaceAllString(content, ""))
}

// FirstSentence returns text up to and including the first sentence-ending
// mark. Without one, the whole text is returned.
func FirstSentence(text string) string {
	if i := strings.IndexAny(text, sentenceEnders); i >= 0 {
		_, size := utf8.DecodeRuneInString(text[i:])
		return text[:i+size]
	}
	return text
}

// Summarize reduces thought text to its first sentence, capped at
// MaxSummaryRunes. Returns "" when nothing but directives remain.
func Summarize(content string) string {
	cleaned := StripActions(content)
	if cleaned == "" {
		return ""
	}
	return truncate(FirstSentence(cleaned), MaxSummaryRunes)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	keep := max - utf8.RuneCountInString(truncationMarker)
	runes := []rune(s)
	return string(runes[:keep]) + truncationMarker
}
