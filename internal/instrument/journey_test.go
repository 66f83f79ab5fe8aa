package instrument

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fyrsmithlabs/domainscope/internal/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

const addToCartSpan = "ecommerce.checkout.journey.add_to_cart"

func TestInstrumentUserJourney_Success(t *testing.T) {
	f := newFixture(t)
	in := f.instrumentor(t, "ecommerce")

	err := in.InstrumentUserJourney(context.Background(), "purchase_flow", "add_to_cart", func(context.Context) error {
		f.clock.Advance(400 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	span, ok := f.sink.SpanByName(addToCartSpan)
	require.True(t, ok)
	assert.Equal(t, sink.StatusOK, span.Status)
	assert.Equal(t, 400*time.Millisecond, span.Duration())
	assert.Equal(t, map[string]any{
		"domain.name":                 "ecommerce",
		"feature.name":                "checkout",
		"journey.name":                "purchase_flow",
		"journey.step":                "add_to_cart",
		"journey.critical_path":       true,
		"journey.conversion_tracking": true,
		"step.required":               true,
		"step.expected_duration":      int64(1000),
		"step.duration_exceeded":      false,
		"user.session_id":             "s1",
	}, span.Attributes)

	durations := f.sink.MetricsByName("ecommerce.journey.step_duration")
	require.Len(t, durations, 1)
	assert.Equal(t, 400.0, durations[0].Value)
	assert.Equal(t, map[string]string{
		"journey":      "purchase_flow",
		"step":         "add_to_cart",
		"feature":      "checkout",
		"user_segment": "premium",
	}, durations[0].Labels)
	assert.Empty(t, f.sink.MetricsByName("ecommerce.journey.failures"))
}

func TestInstrumentUserJourney_StepExceeded(t *testing.T) {
	f := newFixture(t)
	in := f.instrumentor(t, "ecommerce")

	err := in.InstrumentUserJourney(context.Background(), "purchase_flow", "add_to_cart", func(context.Context) error {
		f.clock.Advance(1500 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	f.sink.AssertSpanAttribute(t, addToCartSpan, "step.duration_exceeded", true)
	f.sink.AssertSpanAttribute(t, addToCartSpan, "step.expected", int64(1000))
	f.sink.AssertSpanAttribute(t, addToCartSpan, "step.actual", int64(1500))
}

func TestInstrumentUserJourney_UnknownStep(t *testing.T) {
	f := newFixture(t)
	in := f.instrumentor(t, "content")

	err := in.InstrumentUserJourney(context.Background(), "product_discovery", "compare_products", func(context.Context) error {
		f.clock.Advance(time.Hour)
		return nil
	})
	require.NoError(t, err)

	name := "content.search.journey.compare_products"
	f.sink.AssertSpanAttribute(t, name, "step.expected_duration", int64(0))
	f.sink.AssertSpanAttribute(t, name, "step.required", false)
	f.sink.AssertSpanAttribute(t, name, "journey.critical_path", false)
	f.sink.AssertNoSpanAttribute(t, name, "step.duration_exceeded")
}

func TestInstrumentUserJourney_Failure(t *testing.T) {
	f := newFixture(t)
	in := f.instrumentor(t, "ecommerce")
	cardRejected := errors.New("card rejected")

	err := in.InstrumentUserJourney(context.Background(), "purchase_flow", "select_payment", func(context.Context) error {
		return cardRejected
	})
	assert.Same(t, cardRejected, err)

	span, ok := f.sink.SpanByName("ecommerce.checkout.journey.select_payment")
	require.True(t, ok)
	assert.Equal(t, sink.StatusError, span.Status)
	assert.Equal(t, "card rejected", span.StatusMessage)

	failures := f.sink.MetricsByName("ecommerce.journey.failures")
	require.Len(t, failures, 1)
	assert.Equal(t, sink.Counter, failures[0].Kind)
	assert.Equal(t, map[string]string{
		"journey":    "purchase_flow",
		"step":       "select_payment",
		"error_type": "Error",
	}, failures[0].Labels)
	assert.Empty(t, f.sink.MetricsByName("ecommerce.journey.step_duration"))
}

func TestInstrumentUserJourney_UnknownJourney(t *testing.T) {
	f := newFixture(t)
	in := f.instrumentor(t, "ecommerce")
	stepErr := errors.New("step failed")

	called := false
	err := in.InstrumentUserJourney(context.Background(), "returns_flow", "print_label", func(context.Context) error {
		called = true
		return stepErr
	})

	assert.True(t, called, "the step still runs")
	assert.Same(t, stepErr, err)
	assert.Empty(t, f.sink.Spans())
	assert.Empty(t, f.sink.Metrics())
	f.logger.AssertLogged(t, zapcore.WarnLevel, "journey not found")
}

func TestInstrumentUserJourney_Panic(t *testing.T) {
	f := newFixture(t)
	in := f.instrumentor(t, "ecommerce")

	assert.Panics(t, func() {
		_ = in.InstrumentUserJourney(context.Background(), "purchase_flow", "view_cart", func(context.Context) error {
			panic(errors.New("nil cart"))
		})
	})

	span, ok := f.sink.SpanByName("ecommerce.checkout.journey.view_cart")
	require.True(t, ok)
	assert.Equal(t, sink.StatusError, span.Status)
	assert.Equal(t, "PanicError", f.sink.MetricsByName("ecommerce.journey.failures")[0].Labels["error_type"])
}

func TestRunStep_ReturnsValue(t *testing.T) {
	f := newFixture(t)
	in := f.instrumentor(t, "ecommerce")

	orderID, err := RunStep(context.Background(), in, "purchase_flow", "complete_purchase",
		func(context.Context) (string, error) {
			f.clock.Advance(time.Second)
			return "order-42", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "order-42", orderID)
	f.sink.AssertSpanAttribute(t, "ecommerce.checkout.journey.complete_purchase", "step.duration_exceeded", false)

	total, err := RunStep(context.Background(), in, "purchase_flow", "complete_purchase",
		func(context.Context) (int, error) { return 0, errors.New("declined") })
	assert.EqualError(t, err, "declined")
	assert.Zero(t, total)
}

func TestRunStep_CriticalPathSurvivesSampling(t *testing.T) {
	f := newFixture(t, WithSampling(&samplingNone))
	critical := f.instrumentor(t, "ecommerce")
	casual := f.instrumentor(t, "content")

	require.NoError(t, critical.InstrumentUserJourney(context.Background(), "purchase_flow", "view_cart",
		func(context.Context) error { return nil }))
	require.NoError(t, casual.InstrumentUserJourney(context.Background(), "product_discovery", "view_results",
		func(context.Context) error { return nil }))

	spans := f.sink.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, "ecommerce.checkout.journey.view_cart", spans[0].Name)
	assert.Len(t, f.sink.MetricsByName("content.journey.step_duration"), 1)
}
