package sink

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// InstrumentationName is the OpenTelemetry scope of spans and metrics
// produced through OTel.
const InstrumentationName = "github.com/fyrsmithlabs/domainscope/internal/sink"

// TracerProvider hands out tracers.
type TracerProvider interface {
	Tracer(name string, opts ...trace.TracerOption) trace.Tracer
}

// MeterProvider hands out meters.
type MeterProvider interface {
	Meter(name string, opts ...metric.MeterOption) metric.Meter
}

// OTel exports spans and metrics through OpenTelemetry.
//
// Instruments are created lazily on first use and cached by name.
type OTel struct {
	tracer trace.Tracer
	meter  metric.Meter
	logger *zap.Logger

	mu         sync.Mutex
	counters   map[string]metric.Float64Counter
	histograms map[string]metric.Float64Histogram
	gauges     map[string]metric.Float64UpDownCounter
}

// NewOTel creates a sink over the given providers.
func NewOTel(tp TracerProvider, mp MeterProvider, logger *zap.Logger) *OTel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OTel{
		tracer:     tp.Tracer(InstrumentationName),
		meter:      mp.Meter(InstrumentationName),
		logger:     logger,
		counters:   make(map[string]metric.Float64Counter),
		histograms: make(map[string]metric.Float64Histogram),
		gauges:     make(map[string]metric.Float64UpDownCounter),
	}
}

// ExportSpan implements Sink.
func (o *OTel) ExportSpan(ctx context.Context, s Span) {
	_, span := o.tracer.Start(ctx, s.Name,
		trace.WithTimestamp(s.StartedAt),
		trace.WithAttributes(toAttributes(s.Attributes)...),
	)
	if s.Exception != nil {
		span.RecordError(s.Exception, trace.WithTimestamp(s.EndedAt))
	}
	switch s.Status {
	case StatusError:
		span.SetStatus(codes.Error, s.StatusMessage)
	case StatusOK:
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(s.EndedAt))
}

// RecordMetric implements Sink.
func (o *OTel) RecordMetric(ctx context.Context, m Metric) {
	opt := metric.WithAttributes(labelAttributes(m.Labels)...)

	switch m.Kind {
	case Counter:
		if c := o.counter(m); c != nil {
			c.Add(ctx, m.Value, opt)
		}
	case Histogram:
		if h := o.histogram(m); h != nil {
			h.Record(ctx, m.Value, opt)
		}
	case Gauge:
		if g := o.gauge(m); g != nil {
			g.Add(ctx, m.Value, opt)
		}
	default:
		o.logger.Warn("unknown metric kind", zap.String("metric", m.Name), zap.String("kind", string(m.Kind)))
	}
}

func (o *OTel) counter(m Metric) metric.Float64Counter {
	o.mu.Lock()
	defer o.mu.Unlock()
	if c, ok := o.counters[m.Name]; ok {
		return c
	}
	c, err := o.meter.Float64Counter(m.Name, unitOption(m.Unit))
	if err != nil {
		o.logger.Warn("failed to create counter", zap.String("metric", m.Name), zap.Error(err))
		return nil
	}
	o.counters[m.Name] = c
	return c
}

func (o *OTel) histogram(m Metric) metric.Float64Histogram {
	o.mu.Lock()
	defer o.mu.Unlock()
	if h, ok := o.histograms[m.Name]; ok {
		return h
	}
	h, err := o.meter.Float64Histogram(m.Name, unitOption(m.Unit))
	if err != nil {
		o.logger.Warn("failed to create histogram", zap.String("metric", m.Name), zap.Error(err))
		return nil
	}
	o.histograms[m.Name] = h
	return h
}

func (o *OTel) gauge(m Metric) metric.Float64UpDownCounter {
	o.mu.Lock()
	defer o.mu.Unlock()
	if g, ok := o.gauges[m.Name]; ok {
		return g
	}
	g, err := o.meter.Float64UpDownCounter(m.Name, unitOption(m.Unit))
	if err != nil {
		o.logger.Warn("failed to create gauge", zap.String("metric", m.Name), zap.Error(err))
		return nil
	}
	o.gauges[m.Name] = g
	return g
}

func unitOption(unit string) metric.InstrumentOption {
	if unit == "" {
		unit = "1"
	}
	return metric.WithUnit(unit)
}

func toAttributes(in map[string]any) []attribute.KeyValue {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]attribute.KeyValue, 0, len(in))
	for _, k := range keys {
		switch v := in[k].(type) {
		case string:
			out = append(out, attribute.String(k, v))
		case bool:
			out = append(out, attribute.Bool(k, v))
		case int:
			out = append(out, attribute.Int(k, v))
		case int64:
			out = append(out, attribute.Int64(k, v))
		case float64:
			out = append(out, attribute.Float64(k, v))
		case []string:
			out = append(out, attribute.StringSlice(k, v))
		default:
			out = append(out, attribute.String(k, fmt.Sprint(v)))
		}
	}
	return out
}

func labelAttributes(labels map[string]string) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		out = append(out, attribute.String(k, v))
	}
	return out
}
