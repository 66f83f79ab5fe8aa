package instrument

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/domainscope/internal/sampling"
	"github.com/fyrsmithlabs/domainscope/internal/sink"
	"go.uber.org/zap"
)

// StepFunc is one journey step.
type StepFunc func(ctx context.Context) error

// InstrumentUserJourney runs fn as step stepName of journeyName.
//
// A journey the domain does not declare is logged and fn runs without
// instrumentation. The error returned is always fn's own error.
func (in *Instrumentor) InstrumentUserJourney(ctx context.Context, journeyName, stepName string, fn StepFunc) error {
	_, err := RunStep(ctx, in, journeyName, stepName, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RunStep is InstrumentUserJourney for steps that produce a value.
func RunStep[T any](ctx context.Context, in *Instrumentor, journeyName, stepName string, fn func(ctx context.Context) (T, error)) (T, error) {
	feature, journey, ok := in.domain.FeatureForJourney(journeyName)
	if !ok {
		in.logger.Warn(in.logContext(ctx, ""), "journey not found, running step uninstrumented",
			zap.String("journey", journeyName),
			zap.String("step", stepName))
		return fn(ctx)
	}
	step, stepKnown := journey.FindStep(stepName)

	attrs := map[string]any{
		"domain.name":                 in.domain.Name,
		"feature.name":                feature.Name,
		"journey.name":                journey.Name,
		"journey.step":                stepName,
		"journey.critical_path":       journey.CriticalPath,
		"journey.conversion_tracking": journey.ConversionTracking,
		"step.required":               stepKnown && step.Required,
		"step.expected_duration":      int64(0),
		"user.session_id":             in.user.SessionID,
	}
	if stepKnown {
		attrs["step.expected_duration"] = step.ExpectedDurationMS
	}

	start := in.clock.Now()
	out := runCall(ctx, 0, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	elapsed := nonNegative(in.clock.Now().Sub(start))

	if stepKnown {
		exceeded := elapsed > step.ExpectedDuration()
		attrs["step.duration_exceeded"] = exceeded
		if exceeded {
			attrs["step.expected"] = step.ExpectedDurationMS
			attrs["step.actual"] = elapsed.Milliseconds()
		}
	}

	span := sink.Span{
		Name:       fmt.Sprintf("%s.%s.journey.%s", in.domain.Name, feature.Name, stepName),
		Attributes: attrs,
		StartedAt:  start,
		EndedAt:    start.Add(elapsed),
	}
	if out.err != nil {
		markFailed(&span, out.err)
		in.sink.RecordMetric(ctx, sink.Metric{
			Name:  in.domain.Name + ".journey.failures",
			Kind:  sink.Counter,
			Value: 1,
			Labels: map[string]string{
				"journey":    journey.Name,
				"step":       stepName,
				"error_type": ErrorKind(out.err),
			},
		})
	} else {
		span.Status = sink.StatusOK
		in.sink.RecordMetric(ctx, sink.Metric{
			Name:  in.domain.Name + ".journey.step_duration",
			Kind:  sink.Histogram,
			Value: milliseconds(elapsed),
			Unit:  "ms",
			Labels: map[string]string{
				"journey":      journey.Name,
				"step":         stepName,
				"feature":      feature.Name,
				"user_segment": in.user.Segment(),
			},
		})
	}

	in.export(ctx, span, sampling.Event{
		Domain:       in.domain.Name,
		CriticalPath: journey.CriticalPath,
		Error:        out.err != nil,
	})

	if out.panicked {
		panic(out.recovered)
	}

	v, _ := out.value.(T)
	return v, out.err
}
