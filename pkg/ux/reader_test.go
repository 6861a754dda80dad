// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

// chunkReader returns one predefined chunk per Read call, then EOF or err.
type chunkReader struct {
	chunks []string
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	if n < len(r.chunks[0]) {
		r.chunks[0] = r.chunks[0][n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func collect(t *testing.T, r io.Reader) ([]StreamEvent, error) {
	t.Helper()
	var events []StreamEvent
	err := NewSSEStreamReader(NewFrameParser()).Read(context.Background(), r, func(event StreamEvent) error {
		events = append(events, event)
		return nil
	})
	return events, err
}

// =============================================================================
// FrameDecoder Tests
// =============================================================================

func TestFrameDecoder_FrameSplitAcrossChunks(t *testing.T) {
	d := NewFrameDecoder()

	if got := d.Feed([]byte(`data: {"typ`)); len(got) != 0 {
		t.Fatalf("expected no bodies from partial frame, got %v", got)
	}
	if d.Pending() == 0 {
		t.Fatal("expected partial frame to be carried over")
	}

	got := d.Feed([]byte(`e":"status","content":"x"}` + "\n\n"))
	if len(got) != 1 {
		t.Fatalf("expected 1 body, got %d", len(got))
	}
	if got[0] != `{"type":"status","content":"x"}` {
		t.Errorf("unexpected body %q", got[0])
	}
	if d.Pending() != 0 {
		t.Errorf("expected empty carry-over, got %d bytes", d.Pending())
	}
}

func TestFrameDecoder_MultipleFramesAndTrailingPartial(t *testing.T) {
	d := NewFrameDecoder()
	chunk := "data: a\n\ndata: b\n\ndata: c"

	got := d.Feed([]byte(chunk))

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected bodies %v", got)
	}
	if d.Pending() != len("data: c") {
		t.Errorf("expected trailing partial to be pending, got %d", d.Pending())
	}
}

func TestFrameDecoder_DelimiterSplitAcrossChunks(t *testing.T) {
	d := NewFrameDecoder()
	if got := d.Feed([]byte("data: a\n")); len(got) != 0 {
		t.Fatalf("expected nothing yet, got %v", got)
	}
	got := d.Feed([]byte("\n"))
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("unexpected bodies %v", got)
	}
}

func TestFrameDecoder_DoneSentinelDropped(t *testing.T) {
	d := NewFrameDecoder()
	got := d.Feed([]byte("data: [DONE]\n\ndata: after\n\n"))
	if len(got) != 1 || got[0] != "after" {
		t.Fatalf("unexpected bodies %v", got)
	}
}

func TestFrameDecoder_IgnoresNonDataLines(t *testing.T) {
	d := NewFrameDecoder()
	got := d.Feed([]byte(": keepalive\n\nevent: ping\nid: 3\ndata: body\r\n\n"))
	if len(got) != 1 || got[0] != "body" {
		t.Fatalf("unexpected bodies %v", got)
	}
}

func TestFrameDecoder_JoinsMultipleDataLines(t *testing.T) {
	d := NewFrameDecoder()
	got := d.Feed([]byte("data: {\"type\":\ndata: \"status\"}\n\n"))
	if len(got) != 1 || got[0] != "{\"type\":\n\"status\"}" {
		t.Fatalf("unexpected bodies %q", got)
	}
}

func TestFrameDecoder_MultiByteRuneSplit(t *testing.T) {
	d := NewFrameDecoder()
	full := []byte("data: 检索\n\n")
	// Split inside the first CJK rune.
	cut := len("data: ") + 1
	d.Feed(full[:cut])
	got := d.Feed(full[cut:])
	if len(got) != 1 || got[0] != "检索" {
		t.Fatalf("unexpected bodies %q", got)
	}
}

// =============================================================================
// StreamReader Tests
// =============================================================================

func TestSSEStreamReader_Read_ReassemblesSplitFrame(t *testing.T) {
	r := &chunkReader{chunks: []string{
		`data: {"typ`,
		`e":"status","content":"x"}` + "\n\n",
	}}

	events, err := collect(t, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	status, ok := events[0].(StatusEvent)
	if !ok || status.Content != "x" {
		t.Errorf("unexpected event %#v", events[0])
	}
}

func TestSSEStreamReader_Read_DoneDoesNotStopDecoding(t *testing.T) {
	stream := "data: [DONE]\n\n" +
		`data: {"type":"thought","content":"later"}` + "\n\n"

	events, err := collect(t, strings.NewReader(stream))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event after [DONE], got %d", len(events))
	}
	if _, ok := events[0].(ThoughtEvent); !ok {
		t.Errorf("expected ThoughtEvent, got %T", events[0])
	}
}

func TestSSEStreamReader_Read_OnlyDoneYieldsNothing(t *testing.T) {
	events, err := collect(t, strings.NewReader("data: [DONE]\n\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
}

func TestSSEStreamReader_Read_OneByteChunks(t *testing.T) {
	stream := `data: {"type":"status","content":"检索中"}` + "\n\n" +
		`data: {"type":"evidence","docs":["d"],"metas":[{"source":"a.pdf","page":1}]}` + "\n\n" +
		"data: [DONE]\n\n"

	events, err := collect(t, iotest.OneByteReader(strings.NewReader(stream)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind() != EventStatus || events[1].Kind() != EventEvidence {
		t.Errorf("unexpected kinds %s, %s", events[0].Kind(), events[1].Kind())
	}
}

func TestSSEStreamReader_Read_TrailingPartialDiscarded(t *testing.T) {
	stream := `data: {"type":"status","content":"ok"}` + "\n\n" + `data: {"type":"sta`

	events, err := collect(t, strings.NewReader(stream))
	if err != nil {
		t.Fatalf("partial trailing data must not be an error, got %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events))
	}
}

func TestSSEStreamReader_Read_MalformedFrameStops(t *testing.T) {
	stream := `data: {"type":"status","content":"first"}` + "\n\n" +
		"data: not-json\n\n" +
		`data: {"type":"status","content":"never"}` + "\n\n"

	events, err := collect(t, strings.NewReader(stream))
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected events before the bad frame to be delivered, got %d", len(events))
	}
}

func TestSSEStreamReader_Read_TransportFailure(t *testing.T) {
	boom := errors.New("connection reset")
	r := &chunkReader{
		chunks: []string{`data: {"type":"status","content":"a"}` + "\n\n"},
		err:    boom,
	}

	events, err := collect(t, r)
	if !errors.Is(err, ErrStreamAborted) {
		t.Fatalf("expected ErrStreamAborted, got %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 event before failure, got %d", len(events))
	}
}

func TestSSEStreamReader_Read_CallbackErrorStops(t *testing.T) {
	stop := errors.New("stop")
	stream := `data: {"type":"status","content":"a"}` + "\n\n" +
		`data: {"type":"status","content":"b"}` + "\n\n"

	calls := 0
	err := NewSSEStreamReader(NewFrameParser()).Read(context.Background(), strings.NewReader(stream), func(StreamEvent) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 callback, got %d", calls)
	}
}

func TestSSEStreamReader_Read_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewSSEStreamReader(NewFrameParser()).Read(ctx, strings.NewReader("data: x\n\n"), func(StreamEvent) error {
		t.Fatal("callback must not run after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
