package sink

import (
	"context"
	"sync"
	"testing"
)

// Memory keeps everything it receives. It is meant for tests.
type Memory struct {
	mu      sync.Mutex
	spans   []Span
	metrics []Metric
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// ExportSpan implements Sink.
func (m *Memory) ExportSpan(_ context.Context, s Span) {
	attrs := make(map[string]any, len(s.Attributes))
	for k, v := range s.Attributes {
		attrs[k] = v
	}
	s.Attributes = attrs

	m.mu.Lock()
	defer m.mu.Unlock()
	m.spans = append(m.spans, s)
}

// RecordMetric implements Sink.
func (m *Memory) RecordMetric(_ context.Context, metric Metric) {
	labels := make(map[string]string, len(metric.Labels))
	for k, v := range metric.Labels {
		labels[k] = v
	}
	metric.Labels = labels

	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = append(m.metrics, metric)
}

// Spans returns a copy of the exported spans in arrival order.
func (m *Memory) Spans() []Span {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Span(nil), m.spans...)
}

// Metrics returns a copy of the recorded metrics in arrival order.
func (m *Memory) Metrics() []Metric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Metric(nil), m.metrics...)
}

// SpanByName returns the last span with the given name.
func (m *Memory) SpanByName(name string) (Span, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.spans) - 1; i >= 0; i-- {
		if m.spans[i].Name == name {
			return m.spans[i], true
		}
	}
	return Span{}, false
}

// MetricsByName returns every observation of the named metric.
func (m *Memory) MetricsByName(name string) []Metric {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Metric
	for _, metric := range m.metrics {
		if metric.Name == name {
			out = append(out, metric)
		}
	}
	return out
}

// Reset forgets everything recorded so far.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spans = nil
	m.metrics = nil
}

// AssertSpanAttribute verifies the named span carries key=expected.
func (m *Memory) AssertSpanAttribute(tb testing.TB, spanName, key string, expected any) {
	tb.Helper()
	span, ok := m.SpanByName(spanName)
	if !ok {
		tb.Fatalf("span %q not found", spanName)
	}
	got, ok := span.Attributes[key]
	if !ok {
		tb.Errorf("span %q missing attribute %q", spanName, key)
		return
	}
	if got != expected {
		tb.Errorf("span %q attribute %q: got %v (%T), want %v (%T)", spanName, key, got, got, expected, expected)
	}
}

// AssertNoSpanAttribute verifies the named span does not carry key.
func (m *Memory) AssertNoSpanAttribute(tb testing.TB, spanName, key string) {
	tb.Helper()
	span, ok := m.SpanByName(spanName)
	if !ok {
		tb.Fatalf("span %q not found", spanName)
	}
	if v, ok := span.Attributes[key]; ok {
		tb.Errorf("span %q has unexpected attribute %q=%v", spanName, key, v)
	}
}
