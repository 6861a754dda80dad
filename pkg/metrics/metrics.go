// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package metrics records stream and library activity.
//
// Components take a Recorder. NoOp is the default; Prometheus registers
// its collectors on a caller-supplied registry so tests can use their own.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Turn outcomes.
const (
	OutcomeAnswered  = "answered"
	OutcomeFallback  = "fallback"
	OutcomeMalformed = "malformed"
	OutcomeAborted   = "aborted"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Library operations.
const (
	OpRefresh = "refresh"
	OpReindex = "reindex"
	OpUpload  = "upload"
)

// Library operation results.
const (
	ResultSuccess     = "success"
	ResultFailure     = "failure"
	ResultUnreachable = "unreachable"
)

// Recorder receives session and library events.
type Recorder interface {
	// FrameDecoded counts one decoded event of the given kind.
	FrameDecoded(kind string)

	// FrameMalformed counts a frame body that failed to parse.
	FrameMalformed()

	// TurnFinished counts a finished turn and observes its duration.
	TurnFinished(outcome string, seconds float64)

	// LogLineSuppressed counts a thought summary dropped as a duplicate.
	LogLineSuppressed()

	// LibraryOp counts a document library operation.
	LibraryOp(op, result string)

	// EvidenceAccumulated sets the evidence count of the running turn.
	EvidenceAccumulated(n int)
}

// =============================================================================
// Prometheus
// =============================================================================

// Prometheus implements Recorder with Prometheus collectors.
type Prometheus struct {
	frames     *prometheus.CounterVec
	malformed  prometheus.Counter
	turns      *prometheus.CounterVec
	turnTime   *prometheus.HistogramVec
	suppressed prometheus.Counter
	library    *prometheus.CounterVec
	evidence   prometheus.Gauge
}

// NewPrometheus registers the collectors on reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sovereign",
			Subsystem: "stream",
			Name:      "frames_total",
			Help:      "Decoded stream events by kind",
		}, []string{"kind"}),
		malformed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sovereign",
			Subsystem: "stream",
			Name:      "malformed_frames_total",
			Help:      "Frame bodies that failed to parse",
		}),
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sovereign",
			Subsystem: "session",
			Name:      "turns_total",
			Help:      "Finished turns by outcome",
		}, []string{"outcome"}),
		turnTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sovereign",
			Subsystem: "session",
			Name:      "turn_duration_seconds",
			Help:      "Wall time of a turn from submit to finalization",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"outcome"}),
		suppressed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sovereign",
			Subsystem: "statuslog",
			Name:      "suppressed_lines_total",
			Help:      "Thought summaries dropped as consecutive duplicates",
		}),
		library: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sovereign",
			Subsystem: "library",
			Name:      "operations_total",
			Help:      "Document library operations by result",
		}, []string{"op", "result"}),
		evidence: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "sovereign",
			Subsystem: "session",
			Name:      "evidence_records",
			Help:      "Deduplicated evidence records of the current turn",
		}),
	}
}

func (p *Prometheus) FrameDecoded(kind string) { p.frames.WithLabelValues(kind).Inc() }

func (p *Prometheus) FrameMalformed() { p.malformed.Inc() }

func (p *Prometheus) TurnFinished(outcome string, seconds float64) {
	p.turns.WithLabelValues(outcome).Inc()
	p.turnTime.WithLabelValues(outcome).Observe(seconds)
}

func (p *Prometheus) LogLineSuppressed() { p.suppressed.Inc() }

func (p *Prometheus) LibraryOp(op, result string) { p.library.WithLabelValues(op, result).Inc() }

func (p *Prometheus) EvidenceAccumulated(n int) { p.evidence.Set(float64(n)) }

// =============================================================================
// NoOp
// =============================================================================

// NoOp discards everything.
type NoOp struct{}

func (NoOp) FrameDecoded(string)          {}
func (NoOp) FrameMalformed()              {}
func (NoOp) TurnFinished(string, float64) {}
func (NoOp) LogLineSuppressed()           {}
func (NoOp) LibraryOp(string, string)     {}
func (NoOp) EvidenceAccumulated(int)      {}

var (
	_ Recorder = (*Prometheus)(nil)
	_ Recorder = NoOp{}
)
