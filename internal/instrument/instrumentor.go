// Package instrument records API calls, journey steps and business metrics
// against the domain registry.
//
// An Instrumentor is bound to one (domain, session) pair and is obtained from
// a Cache. Instrumentation is observational: wrapped calls always run unless
// their feature is unknown, and their errors reach the caller unchanged.
// Every span is handed to the sink once the call has finished, on success and
// failure alike.
package instrument

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/fyrsmithlabs/domainscope/internal/logging"
	"github.com/fyrsmithlabs/domainscope/internal/registry"
	"github.com/fyrsmithlabs/domainscope/internal/sampling"
	"github.com/fyrsmithlabs/domainscope/internal/sink"
	"go.uber.org/zap"
)

// Clock supplies the time used for span timestamps and durations.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock.
var SystemClock Clock = systemClock{}

// Response is what a wrapped API call produced.
type Response struct {
	Status int
	Body   any
}

// Call is a business operation wrapped by InstrumentAPICall.
type Call func(ctx context.Context) (Response, error)

// APICallOptions tune a single InstrumentAPICall.
type APICallOptions struct {
	// Journey and Step tie the call to a user journey.
	Journey string
	Step    string
	// Attributes are copied onto the span and may override defaults.
	Attributes map[string]any
	// Timeout bounds the call. Zero means no timeout.
	Timeout time.Duration
}

// APICallResult describes an instrumented call.
type APICallResult struct {
	// Skipped is set when the feature is unknown and the call did not run.
	Skipped     bool
	Duration    time.Duration
	SLAViolated bool
	Response    Response
}

// Instrumentor records telemetry for one domain and session.
type Instrumentor struct {
	domain     *registry.Domain
	user       UserContext
	sink       sink.Sink
	sampler    *sampling.Config
	thresholds map[string]float64
	clock      Clock
	logger     *logging.Logger

	seq atomic.Uint64
}

// logContext scopes log lines to this instrumentor's domain and session.
func (in *Instrumentor) logContext(ctx context.Context, feature string) context.Context {
	ctx = logging.WithSessionID(ctx, in.user.SessionID)
	return logging.WithScope(ctx, logging.Scope{Domain: in.domain.Name, Feature: feature})
}

// Domain returns the domain this instrumentor reports for.
func (in *Instrumentor) Domain() *registry.Domain {
	return in.domain
}

// User returns the session's user context.
func (in *Instrumentor) User() UserContext {
	return in.user
}

// InstrumentAPICall runs call inside an api_call span for featureName.
//
// An unknown feature is logged and the call is not executed; the result is
// marked Skipped and the error is nil. Otherwise the error returned is the
// call's own error, except when the call outlives opts.Timeout without
// failing, which yields a *TimeoutError. A panic in call is recorded and then
// re-raised after the span has been exported.
func (in *Instrumentor) InstrumentAPICall(ctx context.Context, featureName, endpoint, method string, call Call, opts APICallOptions) (APICallResult, error) {
	feature, ok := in.domain.FindFeature(featureName)
	if !ok {
		in.logger.Warn(in.logContext(ctx, ""), "feature not found, call not instrumented",
			zap.String("feature", featureName),
			zap.String("endpoint", endpoint))
		return APICallResult{Skipped: true}, nil
	}
	if method == "" {
		method = "GET"
	}

	critical := false
	if opts.Journey != "" {
		if j, ok := feature.FindJourney(opts.Journey); ok {
			critical = j.CriticalPath
		}
	}

	attrs := map[string]any{
		"domain.name":            in.domain.Name,
		"domain.priority":        string(in.domain.Priority),
		"feature.name":           feature.Name,
		"http.method":            method,
		"http.url":               endpoint,
		"user.session_id":        in.user.SessionID,
		"user.segment":           in.user.Segment(),
		"user.device_type":       string(in.user.DeviceType),
		"business.sla_target":    in.domain.SLATargetMS,
		"business.critical_path": critical,
	}
	for k, v := range opts.Attributes {
		attrs[k] = v
	}
	if opts.Journey != "" {
		step := opts.Step
		if step == "" {
			step = "unknown"
		}
		attrs["journey.name"] = opts.Journey
		attrs["journey.step"] = step
	}

	start := in.clock.Now()
	out := runCall(ctx, opts.Timeout, func(ctx context.Context) (any, error) {
		return call(ctx)
	})
	end := in.clock.Now()

	elapsed := nonNegative(end.Sub(start))
	err := out.err
	if err == nil && opts.Timeout > 0 && elapsed > opts.Timeout {
		err = &TimeoutError{Timeout: opts.Timeout, Elapsed: elapsed}
	}
	var resp Response
	if r, ok := out.value.(Response); ok {
		resp = r
	}

	spanName := fmt.Sprintf("%s.%s.api_call", in.domain.Name, feature.Name)
	violated := in.evaluateSLA(in.logContext(ctx, feature.Name), spanName, elapsed, attrs)
	segment := in.user.Segment()

	span := sink.Span{
		Name:       spanName,
		Attributes: attrs,
		StartedAt:  start,
		EndedAt:    start.Add(elapsed),
	}
	if err != nil {
		markFailed(&span, err)
		in.sink.RecordMetric(ctx, sink.Metric{
			Name:  fmt.Sprintf("%s.%s.errors", in.domain.Name, feature.Name),
			Kind:  sink.Counter,
			Value: 1,
			Labels: map[string]string{
				"error_type":   ErrorKind(err),
				"endpoint":     endpoint,
				"user_segment": segment,
			},
		})
	} else {
		span.Status = sink.StatusOK
		attrs["http.status_code"] = int64(resp.Status)
		attrs["http.response_time"] = elapsed.Milliseconds()
		in.sink.RecordMetric(ctx, sink.Metric{
			Name:  fmt.Sprintf("%s.%s.duration", in.domain.Name, feature.Name),
			Kind:  sink.Histogram,
			Value: milliseconds(elapsed),
			Unit:  "ms",
			Labels: map[string]string{
				"endpoint":     endpoint,
				"method":       method,
				"status":       strconv.Itoa(resp.Status),
				"user_segment": segment,
			},
		})
	}

	in.export(ctx, span, sampling.Event{
		Domain:       in.domain.Name,
		CriticalPath: critical,
		Error:        err != nil,
	})

	if out.panicked {
		panic(out.recovered)
	}

	return APICallResult{
		Duration:    elapsed,
		SLAViolated: violated,
		Response:    resp,
	}, err
}

// evaluateSLA sets sla.violated and, on violation, sla.target and sla.actual.
// An elapsed time equal to the target is not a violation. sla.actual keeps
// sub-millisecond precision so it always exceeds the target when violated.
func (in *Instrumentor) evaluateSLA(ctx context.Context, spanName string, elapsed time.Duration, attrs map[string]any) bool {
	target := in.domain.SLATarget()
	violated := elapsed > target
	attrs["sla.violated"] = violated
	if violated {
		attrs["sla.target"] = in.domain.SLATargetMS
		attrs["sla.actual"] = float64(elapsed) / float64(time.Millisecond)
		in.logger.Warn(ctx, "SLA violation",
			zap.String("span", spanName),
			zap.Duration("elapsed", elapsed),
			zap.Duration("target", target))
	}
	return violated
}

// export hands span to the sink unless sampling drops it. The decision is
// taken after the call so error status is known.
func (in *Instrumentor) export(ctx context.Context, span sink.Span, ev sampling.Event) {
	if in.sampler != nil {
		ev.Key = fmt.Sprintf("%s/%s/%d", in.user.SessionID, span.Name, in.seq.Add(1))
		if d := in.sampler.Decide(ev); !d.Retain {
			in.logger.Debug(in.logContext(ctx, ""), "span dropped by sampling",
				zap.String("span", span.Name),
				zap.Float64("rate", d.Rate),
				zap.String("reason", string(d.Reason)))
			return
		}
	}
	in.sink.ExportSpan(ctx, span)
}

type outcome struct {
	value     any
	err       error
	panicked  bool
	recovered any
}

// runCall runs fn with an optional timeout and converts a panic into a
// *PanicError outcome.
func runCall(ctx context.Context, timeout time.Duration, fn func(context.Context) (any, error)) (out outcome) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			out = outcome{
				err:       &PanicError{Value: r},
				panicked:  true,
				recovered: r,
			}
		}
	}()
	out.value, out.err = fn(ctx)
	return out
}

func markFailed(span *sink.Span, err error) {
	span.Status = sink.StatusError
	span.StatusMessage = err.Error()
	span.Exception = err
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
