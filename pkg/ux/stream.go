// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"errors"

	"github.com/AleutianAI/sovereign/pkg/evidence"
)

// EventKind is the tag of a decoded stream event.
type EventKind string

const (
	EventStatus   EventKind = "status"
	EventThought  EventKind = "thought"
	EventEvidence EventKind = "evidence"
)

var (
	// ErrMalformedFrame is returned when a frame body is not a valid event.
	// It ends the current turn.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrStreamAborted is returned when the transport fails mid-read.
	ErrStreamAborted = errors.New("stream aborted")
)

// StreamEvent is one decoded unit of backend progress. Exactly one of
// StatusEvent, ThoughtEvent or EvidenceEvent; switch on the concrete type.
//
// Example:
//
//	switch ev := event.(type) {
//	case ux.StatusEvent:
//	    log.Status(ev.Content)
//	case ux.ThoughtEvent:
//	    ...
//	case ux.EvidenceEvent:
//	    records := ev.Records()
//	}
type StreamEvent interface {
	Kind() EventKind
	isStreamEvent()
}

// StatusEvent reports a retrieval or tool step ("检索中", "Searching...").
type StatusEvent struct {
	Content string
}

// ThoughtEvent carries raw reasoning text, possibly containing the final
// answer after the answer delimiter.
type ThoughtEvent struct {
	Content string
}

// EvidenceEvent carries retrieved passages. Docs and Metas are parallel:
// Metas[i] describes Docs[i].
type EvidenceEvent struct {
	Docs  []string
	Metas []evidence.Meta
}

func (StatusEvent) Kind() EventKind   { return EventStatus }
func (ThoughtEvent) Kind() EventKind  { return EventThought }
func (EvidenceEvent) Kind() EventKind { return EventEvidence }

func (StatusEvent) isStreamEvent()   {}
func (ThoughtEvent) isStreamEvent()  {}
func (EvidenceEvent) isStreamEvent() {}

// Records pairs each document with its metadata.
func (e EvidenceEvent) Records() []evidence.Record {
	return evidence.FromEvent(e.Docs, e.Metas)
}

// StreamCallback receives each decoded event. Returning an error stops
// the read and the error is returned from Read.
type StreamCallback func(event StreamEvent) error
