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

const checkoutSpan = "ecommerce.checkout.api_call"

func TestInstrumentAPICall_SLAViolation(t *testing.T) {
	f := newFixture(t)
	in := f.instrumentor(t, "ecommerce")

	res, err := in.InstrumentAPICall(context.Background(), "checkout", "/api/checkout", "POST",
		f.takes(3500*time.Millisecond, 200), APICallOptions{})
	require.NoError(t, err)

	assert.False(t, res.Skipped)
	assert.Equal(t, 3500*time.Millisecond, res.Duration)
	assert.True(t, res.SLAViolated)
	assert.Equal(t, 200, res.Response.Status)

	span, ok := f.sink.SpanByName(checkoutSpan)
	require.True(t, ok)
	assert.Equal(t, sink.StatusOK, span.Status)
	assert.Equal(t, 3500*time.Millisecond, span.Duration())
	assert.Equal(t, map[string]any{
		"domain.name":            "ecommerce",
		"domain.priority":        "critical",
		"feature.name":           "checkout",
		"http.method":            "POST",
		"http.url":               "/api/checkout",
		"user.session_id":        "s1",
		"user.segment":           "premium",
		"user.device_type":       "desktop",
		"business.sla_target":    int64(3000),
		"business.critical_path": false,
		"sla.violated":           true,
		"sla.target":             int64(3000),
		"sla.actual":             3500.0,
		"http.status_code":       int64(200),
		"http.response_time":     int64(3500),
	}, span.Attributes)

	metrics := f.sink.MetricsByName("ecommerce.checkout.duration")
	require.Len(t, metrics, 1)
	assert.Equal(t, sink.Histogram, metrics[0].Kind)
	assert.Equal(t, 3500.0, metrics[0].Value)
	assert.Equal(t, map[string]string{
		"endpoint":     "/api/checkout",
		"method":       "POST",
		"status":       "200",
		"user_segment": "premium",
	}, metrics[0].Labels)

	f.logger.AssertLogged(t, zapcore.WarnLevel, "SLA violation")
	for key, want := range map[string]string{"domain": "ecommerce", "feature": "checkout", "session_id": "s1"} {
		got, ok := f.logger.Field("SLA violation", key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
}

func TestInstrumentAPICall_SLAActualKeepsFraction(t *testing.T) {
	f := newFixture(t)
	in := f.instrumentor(t, "ecommerce")

	res, err := in.InstrumentAPICall(context.Background(), "checkout", "/api/checkout", "POST",
		f.takes(3000*time.Millisecond+600*time.Microsecond, 200), APICallOptions{})
	require.NoError(t, err)
	assert.True(t, res.SLAViolated)

	span, ok := f.sink.SpanByName(checkoutSpan)
	require.True(t, ok)
	actual, ok := span.Attributes["sla.actual"].(float64)
	require.True(t, ok)
	assert.InDelta(t, 3000.6, actual, 1e-9)
	assert.Greater(t, actual, float64(3000))
}

func TestInstrumentAPICall_SLABoundary(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  time.Duration
		violated bool
	}{
		{"well under", 100 * time.Millisecond, false},
		{"exactly at target", 3000 * time.Millisecond, false},
		{"one millisecond over", 3001 * time.Millisecond, true},
		{"instant", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := f.instrumentor(t, "ecommerce")

			res, err := in.InstrumentAPICall(context.Background(), "checkout", "/api/checkout", "POST",
				f.takes(tt.elapsed, 200), APICallOptions{})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, res.Duration, time.Duration(0))
			assert.Equal(t, tt.violated, res.SLAViolated)

			f.sink.AssertSpanAttribute(t, checkoutSpan, "sla.violated", tt.violated)
			if !tt.violated {
				f.sink.AssertNoSpanAttribute(t, checkoutSpan, "sla.target")
				f.sink.AssertNoSpanAttribute(t, checkoutSpan, "sla.actual")
			}
		})
	}
}

func TestInstrumentAPICall_JourneyAttributes(t *testing.T) {
	f := newFixture(t)
	in := f.instrumentor(t, "ecommerce")

	_, err := in.InstrumentAPICall(context.Background(), "checkout", "/api/cart", "",
		f.takes(10*time.Millisecond, 201), APICallOptions{
			Journey:    "purchase_flow",
			Attributes: map[string]any{"cart.items": int64(3), "user.segment": "vip"},
		})
	require.NoError(t, err)

	f.sink.AssertSpanAttribute(t, checkoutSpan, "http.method", "GET")
	f.sink.AssertSpanAttribute(t, checkoutSpan, "business.critical_path", true)
	f.sink.AssertSpanAttribute(t, checkoutSpan, "journey.name", "purchase_flow")
	f.sink.AssertSpanAttribute(t, checkoutSpan, "journey.step", "unknown")
	f.sink.AssertSpanAttribute(t, checkoutSpan, "cart.items", int64(3))
	f.sink.AssertSpanAttribute(t, checkoutSpan, "user.segment", "vip")
}

func TestInstrumentAPICall_ErrorIdentity(t *testing.T) {
	f := newFixture(t)
	in := f.instrumentor(t, "ecommerce")
	paymentDeclined := errors.New("payment declined")

	res, err := in.InstrumentAPICall(context.Background(), "checkout", "/api/payment", "POST",
		func(context.Context) (Response, error) {
			f.clock.Advance(250 * time.Millisecond)
			return Response{}, paymentDeclined
		}, APICallOptions{})

	require.Error(t, err)
	assert.Same(t, paymentDeclined, err, "errors reach the caller unchanged")
	assert.Equal(t, 250*time.Millisecond, res.Duration)

	span, ok := f.sink.SpanByName(checkoutSpan)
	require.True(t, ok)
	assert.Equal(t, sink.StatusError, span.Status)
	assert.Equal(t, "payment declined", span.StatusMessage)
	assert.Same(t, paymentDeclined, span.Exception)
	assert.Equal(t, false, span.Attributes["sla.violated"])
	assert.NotContains(t, span.Attributes, "http.status_code")

	errs := f.sink.MetricsByName("ecommerce.checkout.errors")
	require.Len(t, errs, 1)
	assert.Equal(t, sink.Counter, errs[0].Kind)
	assert.Equal(t, 1.0, errs[0].Value)
	assert.Equal(t, map[string]string{
		"error_type":   "Error",
		"endpoint":     "/api/payment",
		"user_segment": "premium",
	}, errs[0].Labels)
	assert.Empty(t, f.sink.MetricsByName("ecommerce.checkout.duration"))
}

type gatewayError struct{ code int }

func (e *gatewayError) Error() string { return "gateway failure" }

func TestInstrumentAPICall_TypedError(t *testing.T) {
	f := newFixture(t)
	in := f.instrumentor(t, "ecommerce")
	want := &gatewayError{code: 502}

	_, err := in.InstrumentAPICall(context.Background(), "checkout", "/api/payment", "POST",
		func(context.Context) (Response, error) { return Response{Status: 502}, want }, APICallOptions{})

	var got *gatewayError
	require.ErrorAs(t, err, &got)
	assert.Same(t, want, got)
	assert.Equal(t, "gatewayError", f.sink.MetricsByName("ecommerce.checkout.errors")[0].Labels["error_type"])
}

func TestInstrumentAPICall_UnknownFeature(t *testing.T) {
	f := newFixture(t)
	in := f.instrumentor(t, "ecommerce")

	called := false
	res, err := in.InstrumentAPICall(context.Background(), "wishlist", "/api/wishlist", "GET",
		func(context.Context) (Response, error) {
			called = true
			return Response{Status: 200}, nil
		}, APICallOptions{})

	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.False(t, called)
	assert.Empty(t, f.sink.Spans())
	assert.Empty(t, f.sink.Metrics())
	f.logger.AssertLogged(t, zapcore.WarnLevel, "feature not found")
}

func TestInstrumentAPICall_Timeout(t *testing.T) {
	t.Run("clock exceeds timeout", func(t *testing.T) {
		f := newFixture(t)
		in := f.instrumentor(t, "ecommerce")

		res, err := in.InstrumentAPICall(context.Background(), "checkout", "/api/checkout", "POST",
			f.takes(2*time.Second, 200), APICallOptions{Timeout: time.Second})

		var timeout *TimeoutError
		require.ErrorAs(t, err, &timeout)
		assert.Equal(t, time.Second, timeout.Timeout)
		assert.Equal(t, 2*time.Second, timeout.Elapsed)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 2*time.Second, res.Duration)

		span, ok := f.sink.SpanByName(checkoutSpan)
		require.True(t, ok)
		assert.Equal(t, sink.StatusError, span.Status)
		assert.Equal(t, "TimeoutError", f.sink.MetricsByName("ecommerce.checkout.errors")[0].Labels["error_type"])
	})

	t.Run("context deadline", func(t *testing.T) {
		f := newFixture(t)
		in := f.instrumentor(t, "ecommerce")

		_, err := in.InstrumentAPICall(context.Background(), "checkout", "/api/checkout", "POST",
			func(ctx context.Context) (Response, error) {
				<-ctx.Done()
				return Response{}, ctx.Err()
			}, APICallOptions{Timeout: 10 * time.Millisecond})

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, "TimeoutError", f.sink.MetricsByName("ecommerce.checkout.errors")[0].Labels["error_type"])
	})
}

func TestInstrumentAPICall_PanicClosesSpan(t *testing.T) {
	f := newFixture(t)
	in := f.instrumentor(t, "ecommerce")

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = in.InstrumentAPICall(context.Background(), "checkout", "/api/checkout", "POST",
			func(context.Context) (Response, error) { panic("boom") }, APICallOptions{})
	})

	span, ok := f.sink.SpanByName(checkoutSpan)
	require.True(t, ok, "span is exported before the panic is re-raised")
	assert.Equal(t, sink.StatusError, span.Status)
	assert.Equal(t, "panic: boom", span.StatusMessage)
	assert.Equal(t, "PanicError", f.sink.MetricsByName("ecommerce.checkout.errors")[0].Labels["error_type"])
}

func TestInstrumentAPICall_Sampling(t *testing.T) {
	f := newFixture(t, WithSampling(&samplingNone))
	in := f.instrumentor(t, "ecommerce")
	ctx := context.Background()

	_, err := in.InstrumentAPICall(ctx, "checkout", "/api/checkout", "POST", f.takes(time.Millisecond, 200), APICallOptions{})
	require.NoError(t, err)
	assert.Empty(t, f.sink.Spans(), "successful non-critical spans are dropped at rate 0")
	assert.Len(t, f.sink.MetricsByName("ecommerce.checkout.duration"), 1, "metrics are never sampled")

	_, err = in.InstrumentAPICall(ctx, "checkout", "/api/checkout", "POST", f.takes(time.Millisecond, 200),
		APICallOptions{Journey: "purchase_flow"})
	require.NoError(t, err)
	assert.Len(t, f.sink.Spans(), 1, "critical path spans are retained")

	_, err = in.InstrumentAPICall(ctx, "checkout", "/api/checkout", "POST",
		func(context.Context) (Response, error) { return Response{}, errors.New("down") }, APICallOptions{})
	require.Error(t, err)
	assert.Len(t, f.sink.Spans(), 2, "error spans are retained")
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", errors.New("x"), "Error"},
		{"wrapped plain", errors.Join(errors.New("x")), "Error"},
		{"deadline", context.DeadlineExceeded, "TimeoutError"},
		{"canceled", context.Canceled, "CanceledError"},
		{"typed", &gatewayError{}, "gatewayError"},
		{"timeout", &TimeoutError{}, "TimeoutError"},
		{"panic", &PanicError{Value: 1}, "PanicError"},
		{"configuration", &ConfigurationError{Domain: "x"}, "ConfigurationError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorKind(tt.err))
		})
	}
}
