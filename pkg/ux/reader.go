// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides the streaming and presentation components of the
// Sovereign CLI.
//
// This file contains the frame decoder and the stream reader that consumes
// an io.Reader and emits parsed events via callbacks.
//
// Single Responsibility:
//
//	FrameDecoder only frames bytes. StreamReader handles I/O and event
//	sequencing and uses a FrameParser to convert bodies to events. Neither
//	renders output.
//
// Context Support:
//
//	Read accepts context.Context. Cancelling the context stops the loop at
//	the next chunk; the transport is expected to unblock pending reads.
package ux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// FrameDelimiter separates frames: a blank line.
	FrameDelimiter = "\n\n"

	// DataPrefix marks a line that carries frame body data.
	DataPrefix = "data: "

	// DoneSentinel is the body that marks the logical end of a stream.
	// It is consumed silently and does not stop decoding.
	DoneSentinel = "[DONE]"

	defaultChunkSize = 4096
)

// =============================================================================
// Frame Decoder
// =============================================================================

// FrameDecoder reassembles frame bodies from chunks that arrive at arbitrary
// boundaries.
//
// A frame may span several chunks and a chunk may hold several frames plus
// a partial one. The incomplete tail is carried over to the next Feed.
// Buffering is byte-level; the delimiter is ASCII so multi-byte UTF-8
// sequences split across chunks are reassembled intact.
//
// Thread Safety:
//
//	Not safe for concurrent use. One decoder per stream.
//
// Example:
//
//	d := NewFrameDecoder()
//	d.Feed([]byte(`data: {"typ`))                                  // nil
//	d.Feed([]byte(`e":"status","content":"x"}` + "\n\n"))          // [`{"type":"status","content":"x"}`]
type FrameDecoder struct {
	buf []byte
}

// NewFrameDecoder creates an empty decoder.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{}
}

// Feed appends a chunk and returns the bodies of all frames it completed,
// in order. Frames without data lines and DoneSentinel bodies are dropped.
func (d *FrameDecoder) Feed(chunk []byte) []string {
	d.buf = append(d.buf, chunk...)

	var bodies []string
	delim := []byte(FrameDelimiter)
	for {
		i := bytes.Index(d.buf, delim)
		if i < 0 {
			break
		}
		segment := d.buf[:i]
		if body, ok := frameBody(segment); ok && body != DoneSentinel {
			bodies = append(bodies, body)
		}
		d.buf = d.buf[i+len(delim):]
	}

	// Release the consumed prefix instead of pinning the backing array.
	if len(d.buf) == 0 {
		d.buf = nil
	} else {
		d.buf = append([]byte(nil), d.buf...)
	}
	return bodies
}

// Pending returns the number of buffered bytes not yet part of a frame.
func (d *FrameDecoder) Pending() int {
	return len(d.buf)
}

// Reset discards any carried-over partial frame.
func (d *FrameDecoder) Reset() {
	d.buf = nil
}

// frameBody joins the data lines of a segment. Multiple data lines form one
// body separated by newlines. Returns false when the segment has none.
func frameBody(segment []byte) (string, bool) {
	var parts []string
	for _, line := range strings.Split(string(segment), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.HasPrefix(line, DataPrefix) {
			parts = append(parts, strings.TrimPrefix(line, DataPrefix))
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}

// =============================================================================
// Stream Reader
// =============================================================================

// StreamReader reads a research event stream and invokes a callback for
// each event as soon as its frame completes.
//
// Example:
//
//	reader := NewSSEStreamReader(NewFrameParser())
//	err := reader.Read(ctx, resp.Body, func(event StreamEvent) error {
//	    switch ev := event.(type) {
//	    case StatusEvent:
//	        fmt.Println(ev.Content)
//	    }
//	    return nil
//	})
type StreamReader interface {
	// Read processes a stream until end-of-stream.
	//
	// Returns:
	//   - nil when the transport signals EOF. A leftover partial frame is
	//     discarded without error.
	//   - an error wrapping ErrMalformedFrame when a body fails to parse.
	//   - an error wrapping ErrStreamAborted when the transport read fails.
	//   - ctx.Err() when the context is cancelled.
	//   - the callback's error when it returns one.
	Read(ctx context.Context, r io.Reader, callback StreamCallback) error
}

// sseStreamReader implements StreamReader over FrameDecoder.
type sseStreamReader struct {
	parser    FrameParser
	chunkSize int
}

// NewSSEStreamReader creates a stream reader using the given parser.
func NewSSEStreamReader(parser FrameParser) StreamReader {
	return &sseStreamReader{
		parser:    parser,
		chunkSize: defaultChunkSize,
	}
}

// Read pulls chunks from r, frames them and dispatches parsed events.
func (r *sseStreamReader) Read(ctx context.Context, reader io.Reader, callback StreamCallback) error {
	decoder := NewFrameDecoder()
	buf := make([]byte, r.chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := reader.Read(buf)
		if n > 0 {
			for _, body := range decoder.Feed(buf[:n]) {
				event, err := r.parser.Parse(body)
				if err != nil {
					return err
				}
				if err := callback(event); err != nil {
					return err
				}
			}
		}

		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) {
			decoder.Reset()
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrStreamAborted, readErr)
	}
}

// Compile-time interface check
var _ StreamReader = (*sseStreamReader)(nil)
