// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session drives research turns against the backend.
//
// A Controller owns the conversation and the status log. Submit runs one
// turn end-to-end:
//
//	┌────────┐  chunks  ┌──────────────┐  events  ┌──────────────────────┐
//	│ client ├─────────►│ StreamReader ├─────────►│ dispatch             │
//	└────────┘          └──────────────┘          │  status  -> Trail    │
//	                                              │  thought -> Trail    │
//	                                              │  evidence -> Merge   │
//	                                              └──────────┬───────────┘
//	                                                         ▼
//	                                            assistant Turn appended
//
// Presentation reads state through Snapshot and the Observer callbacks; it
// never mutates the controller.
//
// # Thread Safety
//
// All methods are safe for concurrent use. At most one turn runs at a
// time; Submit while a turn is in flight returns ErrTurnInFlight.
package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/sovereign/pkg/conversation"
	"github.com/AleutianAI/sovereign/pkg/evidence"
	"github.com/AleutianAI/sovereign/pkg/logging"
	"github.com/AleutianAI/sovereign/pkg/metrics"
	"github.com/AleutianAI/sovereign/pkg/statuslog"
	"github.com/AleutianAI/sovereign/pkg/ux"
)

var tracer = otel.Tracer("sovereign.session")

const (
	// FinalAnswerDelimiter separates reasoning from the answer inside a
	// thought event.
	FinalAnswerDelimiter = "Final Answer:"

	// NoAnswerPlaceholder is the content of a turn that produced neither an
	// answer nor any reasoning.
	NoAnswerPlaceholder = "暂未生成答案。"

	// FailurePlaceholder is the content of a failed turn that produced
	// neither an answer nor any reasoning.
	FailurePlaceholder = "处理请求时出现问题，请稍后重试。"

	// CancelledLine is pushed to the status log when a turn is cancelled.
	CancelledLine = "⏹ 已取消"

	failureLinePrefix = "❌ 处理请求时出错: "
)

// ErrTurnInFlight is returned by Submit while another turn runs.
var ErrTurnInFlight = errors.New("a turn is already in flight")

// Transport opens the research event stream.
type Transport interface {
	Investigate(ctx context.Context, query string, history []conversation.Turn) (io.ReadCloser, error)
}

// Observer follows a controller. Callbacks run on the submitting
// goroutine and must not call back into the controller.
type Observer interface {
	OnTurnStart(query string)
	OnLogLine(line string)
	OnEvidence(records []evidence.Record)
	OnTurnComplete(turn conversation.Turn)
}

type nopObserver struct{}

func (nopObserver) OnTurnStart(string)               {}
func (nopObserver) OnLogLine(string)                 {}
func (nopObserver) OnEvidence([]evidence.Record)     {}
func (nopObserver) OnTurnComplete(conversation.Turn) {}

// Config configures a Controller.
type Config struct {
	// Transport is required.
	Transport Transport

	// Conversation to continue. Default: empty.
	Conversation *conversation.Conversation

	// Log receives progress lines. Default: statuslog.New(DefaultCapacity).
	Log *statuslog.Log

	// Observer follows turns. Default: none.
	Observer Observer

	// Reader decodes the event stream. Default: SSE reader with the JSON
	// frame parser.
	Reader ux.StreamReader

	// Metrics. Default: metrics.NoOp.
	Metrics metrics.Recorder

	// Logger. Default: discard.
	Logger *logging.Logger
}

// State is a read-only view of the controller for presentation.
type State struct {
	InFlight bool
	Turns    []conversation.Turn
	Log      []string
	Evidence []evidence.Record
}

// Controller runs turns and owns the conversation.
type Controller struct {
	transport    Transport
	conversation *conversation.Conversation
	log          *statuslog.Log
	observer     Observer
	reader       ux.StreamReader
	metrics      metrics.Recorder
	logger       *logging.Logger

	inFlight atomic.Bool

	mu       sync.Mutex
	cancel   context.CancelFunc
	evidence []evidence.Record
}

// New creates a Controller. Returns an error when Transport is nil.
func New(cfg Config) (*Controller, error) {
	if cfg.Transport == nil {
		return nil, errors.New("session: transport is required")
	}
	c := &Controller{
		transport:    cfg.Transport,
		conversation: cfg.Conversation,
		log:          cfg.Log,
		observer:     cfg.Observer,
		reader:       cfg.Reader,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
	if c.conversation == nil {
		c.conversation = conversation.New()
	}
	if c.log == nil {
		c.log = statuslog.New(statuslog.DefaultCapacity)
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	if c.reader == nil {
		c.reader = ux.NewSSEStreamReader(ux.NewFrameParser())
	}
	if c.metrics == nil {
		c.metrics = metrics.NoOp{}
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	c.log.Subscribe(c.observer.OnLogLine)
	return c, nil
}

// Conversation returns the conversation the controller appends to.
func (c *Controller) Conversation() *conversation.Conversation {
	return c.conversation
}

// Log returns the status log.
func (c *Controller) Log() *statuslog.Log {
	return c.log
}

// InFlight reports whether a turn is running.
func (c *Controller) InFlight() bool {
	return c.inFlight.Load()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	ev := append([]evidence.Record(nil), c.evidence...)
	c.mu.Unlock()
	return State{
		InFlight: c.inFlight.Load(),
		Turns:    c.conversation.Turns(),
		Log:      c.log.Lines(),
		Evidence: ev,
	}
}

// Cancel aborts the running turn, if any.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// =============================================================================
// Submit
// =============================================================================

// turnState is the per-turn working state. It lives only inside Submit.
type turnState struct {
	answer   string
	thoughts strings.Builder
	trail    *statuslog.Trail
	events   int
}

// Submit runs one turn for query and returns the appended assistant turn.
//
// The user turn is appended immediately. History sent to the backend is
// the conversation before this query, filtered by conversation.History.
//
// Outcomes:
//   - stream ends normally: the assistant turn is appended, nil error.
//   - malformed frame, aborted stream or unreachable backend: the turn is
//     still finalized from partial text and appended; the error is returned
//     alongside it (wrapping ux.ErrMalformedFrame, ux.ErrStreamAborted or
//     client.ErrTransportUnavailable).
//   - ctx cancelled or Cancel called: nothing is appended beyond the user
//     turn, the status log gets CancelledLine, and context.Canceled is
//     returned.
//   - another turn running: ErrTurnInFlight, nothing changes.
func (c *Controller) Submit(ctx context.Context, query string) (conversation.Turn, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return conversation.Turn{}, ErrTurnInFlight
	}
	defer c.inFlight.Store(false)

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	turnID := uuid.NewString()
	logger := c.logger.With("turn_id", turnID)
	started := time.Now()

	turnCtx, span := tracer.Start(turnCtx, "session.Submit",
		trace.WithAttributes(
			attribute.String("turn.id", turnID),
			attribute.Int("query.length", len(query)),
		),
	)
	defer span.End()

	history := conversation.History(c.conversation.Turns())
	c.conversation.Append(conversation.UserTurn(query))

	c.mu.Lock()
	c.cancel = cancel
	c.evidence = nil
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
	}()

	c.metrics.EvidenceAccumulated(0)
	c.observer.OnTurnStart(query)
	logger.Info("turn started", "history_len", len(history))

	state := &turnState{trail: statuslog.NewTrail(c.log)}
	err := c.stream(turnCtx, query, history, state, logger)

	if err != nil && turnCtx.Err() != nil && !errors.Is(err, ux.ErrMalformedFrame) {
		c.log.Push(CancelledLine)
		c.metrics.TurnFinished(metrics.OutcomeCancelled, time.Since(started).Seconds())
		span.SetStatus(codes.Error, "cancelled")
		logger.Info("turn cancelled", "events", state.events)
		return conversation.Turn{}, context.Canceled
	}

	outcome := metrics.OutcomeAnswered
	if err != nil {
		c.log.Push(failureLinePrefix + err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		outcome = failureOutcome(err)
		logger.Error("turn failed", "error", err, "events", state.events)
	} else if state.answer == "" {
		outcome = metrics.OutcomeFallback
	}

	c.mu.Lock()
	sources := c.evidence
	c.mu.Unlock()

	turn := conversation.AssistantTurn(state.content(err != nil), sources)
	c.conversation.Append(turn)
	c.metrics.TurnFinished(outcome, time.Since(started).Seconds())

	span.SetAttributes(
		attribute.Int("turn.events", state.events),
		attribute.Int("turn.evidence", len(sources)),
		attribute.String("turn.outcome", outcome),
	)
	if err == nil {
		span.SetStatus(codes.Ok, "")
	}
	logger.Info("turn finished",
		"outcome", outcome,
		"events", state.events,
		"evidence", len(sources),
		"duration_ms", time.Since(started).Milliseconds(),
	)

	c.observer.OnTurnComplete(turn)
	return turn, err
}

func (c *Controller) stream(ctx context.Context, query string, history []conversation.Turn, state *turnState, logger *logging.Logger) error {
	body, err := c.transport.Investigate(ctx, query, history)
	if err != nil {
		return err
	}
	defer body.Close()

	err = c.reader.Read(ctx, body, func(event ux.StreamEvent) error {
		state.events++
		c.metrics.FrameDecoded(string(event.Kind()))
		c.dispatch(event, state, logger)
		return nil
	})
	if errors.Is(err, ux.ErrMalformedFrame) {
		c.metrics.FrameMalformed()
	}
	return err
}

// dispatch applies one event to the turn.
func (c *Controller) dispatch(event ux.StreamEvent, state *turnState, logger *logging.Logger) {
	switch ev := event.(type) {
	case ux.StatusEvent:
		state.trail.Status(ev.Content)

	case ux.EvidenceEvent:
		c.mu.Lock()
		c.evidence = evidence.Merge(c.evidence, ev.Records())
		snapshot := append([]evidence.Record(nil), c.evidence...)
		c.mu.Unlock()
		c.metrics.EvidenceAccumulated(len(snapshot))
		c.observer.OnEvidence(snapshot)

	case ux.ThoughtEvent:
		c.thought(ev.Content, state, logger)
	}
}

func (c *Controller) thought(content string, state *turnState, logger *logging.Logger) {
	if content == "" {
		return
	}
	thinking, answer, found := splitFinalAnswer(content)
	if !found {
		state.thoughts.WriteString(content)
		c.recordThought(content, state)
		return
	}
	if strings.Count(content, FinalAnswerDelimiter) > 1 {
		logger.Warn("thought carries more than one answer delimiter; keeping the first answer segment",
			"delimiters", strings.Count(content, FinalAnswerDelimiter))
	}
	if strings.TrimSpace(thinking) != "" {
		state.thoughts.WriteString(thinking)
		c.recordThought(thinking, state)
	}
	state.answer = strings.TrimSpace(answer)
}

func (c *Controller) recordThought(content string, state *turnState) {
	before := state.trail.Suppressed()
	state.trail.Thought(content)
	if state.trail.Suppressed() > before {
		c.metrics.LogLineSuppressed()
	}
}

// splitFinalAnswer returns the text before the first delimiter and the
// segment between the first and second delimiter.
func splitFinalAnswer(content string) (thinking, answer string, found bool) {
	parts := strings.SplitN(content, FinalAnswerDelimiter, 3)
	if len(parts) < 2 {
		return content, "", false
	}
	return parts[0], parts[1], true
}

// content picks what the assistant turn shows.
func (s *turnState) content(failed bool) string {
	if s.answer != "" {
		return s.answer
	}
	if s.thoughts.Len() > 0 {
		return s.thoughts.String()
	}
	if failed {
		return FailurePlaceholder
	}
	return NoAnswerPlaceholder
}

func failureOutcome(err error) string {
	switch {
	case errors.Is(err, ux.ErrMalformedFrame):
		return metrics.OutcomeMalformed
	case errors.Is(err, ux.ErrStreamAborted):
		return metrics.OutcomeAborted
	default:
		return metrics.OutcomeFailed
	}
}
