// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides the streaming and presentation components of the
// Sovereign CLI.
//
// This file contains the parser that turns a frame body into a typed
// StreamEvent.
//
// Single Responsibility:
//
//	Parsers ONLY parse. They do not perform I/O, framing, or state
//	management. Framing lives in reader.go.
package ux

import (
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/sovereign/pkg/evidence"
)

// maxBodyInError caps how much of a bad body is quoted in an error.
const maxBodyInError = 120

// FrameParser parses a frame body into a StreamEvent.
//
// Wire format (one JSON object per frame body):
//
//	{"type":"status","content":"检索中"}
//	{"type":"thought","content":"分析中 Final Answer: ..."}
//	{"type":"evidence","docs":["..."],"metas":[{"source":"a.pdf","page":1}]}
//
// Thread Safety:
//
//	The default implementation is stateless and safe for concurrent use.
type FrameParser interface {
	// Parse decodes one frame body.
	//
	// Returns an error wrapping ErrMalformedFrame when the body is not JSON
	// or its type tag is missing or unknown.
	Parse(body string) (StreamEvent, error)
}

// jsonFrameParser implements FrameParser for the JSON event schema.
type jsonFrameParser struct{}

// NewFrameParser creates the JSON frame parser.
func NewFrameParser() FrameParser {
	return &jsonFrameParser{}
}

// wireEvent mirrors the backend payload before it is narrowed to a variant.
type wireEvent struct {
	Type    string          `json:"type"`
	Content string          `json:"content"`
	Docs    []string        `json:"docs"`
	Metas   []evidence.Meta `json:"metas"`
}

// Parse decodes a frame body into its tagged variant.
func (p *jsonFrameParser) Parse(body string) (StreamEvent, error) {
	var raw wireEvent
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v (body %q)", ErrMalformedFrame, err, clip(body))
	}

	switch EventKind(raw.Type) {
	case EventStatus:
		return StatusEvent{Content: raw.Content}, nil
	case EventThought:
		return ThoughtEvent{Content: raw.Content}, nil
	case EventEvidence:
		return EvidenceEvent{Docs: raw.Docs, Metas: raw.Metas}, nil
	case "":
		return nil, fmt.Errorf("%w: missing event type (body %q)", ErrMalformedFrame, clip(body))
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrMalformedFrame, raw.Type)
	}
}

func clip(s string) string {
	if len(s) <= maxBodyInError {
		return s
	}
	return s[:maxBodyInError] + "..."
}

// Compile-time interface check
var _ FrameParser = (*jsonFrameParser)(nil)
