// Package sink receives the spans and metrics produced by instrumentation.
//
// A Sink sees only finished spans: every Span handed to ExportSpan carries
// both its start and end time. Metrics arrive one observation at a time.
package sink

import (
	"context"
	"time"
)

// Status is the outcome recorded on a span.
type Status string

// Span statuses.
const (
	StatusUnset Status = "unset"
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Span is a completed unit of work.
//
// Attribute values are string, bool, int64 or float64.
type Span struct {
	Name          string
	Attributes    map[string]any
	StartedAt     time.Time
	EndedAt       time.Time
	Status        Status
	StatusMessage string
	Exception     error
}

// Duration returns EndedAt - StartedAt.
func (s Span) Duration() time.Duration {
	return s.EndedAt.Sub(s.StartedAt)
}

// Kind is the instrument a metric observation feeds.
type Kind string

// Metric kinds. Gauge observations are deltas added to the current value.
const (
	Counter   Kind = "counter"
	Histogram Kind = "histogram"
	Gauge     Kind = "gauge"
)

// Metric is one observation.
type Metric struct {
	Name   string
	Kind   Kind
	Value  float64
	Unit   string
	Labels map[string]string
}

// Sink is the destination of instrumentation output.
type Sink interface {
	ExportSpan(ctx context.Context, span Span)
	RecordMetric(ctx context.Context, m Metric)
}

// Nop discards everything.
type Nop struct{}

// ExportSpan implements Sink.
func (Nop) ExportSpan(context.Context, Span) {}

// RecordMetric implements Sink.
func (Nop) RecordMetric(context.Context, Metric) {}
