package simulate

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/domainscope/internal/instrument"
	"github.com/fyrsmithlabs/domainscope/internal/registry"
	"github.com/fyrsmithlabs/domainscope/internal/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func domain(name string, p registry.Priority, threshold float64) *registry.Domain {
	return &registry.Domain{Name: name, Priority: p, SLATargetMS: 1000, ErrorThreshold: threshold}
}

func TestRandom_LatencyBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRandom(rapid.Uint64().Draw(t, "seed"))

		critical := r.Latency(domain("ecommerce", registry.PriorityCritical, 0))
		if critical < CriticalBaseLatency || critical >= CriticalBaseLatency+MaxJitter {
			t.Fatalf("critical latency %s out of range", critical)
		}
		medium := r.Latency(domain("content", registry.PriorityMedium, 0))
		if medium < DefaultBaseLatency || medium >= DefaultBaseLatency+MaxJitter {
			t.Fatalf("medium latency %s out of range", medium)
		}
	})
}

func TestRandom_Deterministic(t *testing.T) {
	d := domain("content", registry.PriorityMedium, 50)
	a, b := NewRandom(42), NewRandom(42)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Latency(d), b.Latency(d))
		assert.Equal(t, a.ShouldFail(d), b.ShouldFail(d))
	}
}

func TestRandom_FailureProbability(t *testing.T) {
	r := NewRandom(7)
	never := domain("a", registry.PriorityLow, 0)
	always := domain("b", registry.PriorityLow, 100)
	for i := 0; i < 100; i++ {
		assert.False(t, r.ShouldFail(never))
		assert.True(t, r.ShouldFail(always))
	}
}

func TestSimulator_Call(t *testing.T) {
	var waited []time.Duration
	wait := func(_ context.Context, d time.Duration) error {
		waited = append(waited, d)
		return nil
	}
	d := domain("ecommerce", registry.PriorityCritical, 0)

	resp, err := New(Fixed{Delay: 250 * time.Millisecond}, WithWait(wait)).Call(d)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, map[string]any{"success": true}, resp.Body)
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, waited)

	resp, err = New(Fixed{Fail: true}, WithWait(wait)).Call(d)(context.Background())
	var simErr *Error
	require.ErrorAs(t, err, &simErr)
	assert.Equal(t, "ecommerce", simErr.Domain)
	assert.Equal(t, "simulated ecommerce API error", err.Error())
	assert.Equal(t, 500, resp.Status)
}

func TestSimulator_Step(t *testing.T) {
	noWait := WithWait(func(context.Context, time.Duration) error { return nil })
	d := domain("content", registry.PriorityMedium, 0)

	assert.NoError(t, New(Fixed{}, noWait).Step(d)(context.Background()))

	var simErr *Error
	assert.ErrorAs(t, New(Fixed{Fail: true}, noWait).Step(d)(context.Background()), &simErr)
}

func TestSimulator_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Fixed{Delay: time.Hour}).Call(domain("content", registry.PriorityMedium, 0))(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimulator_Instrumented(t *testing.T) {
	mem := sink.NewMemory()
	cache, err := instrument.NewCache(registry.Default(), mem, nil)
	require.NoError(t, err)
	in, err := cache.Get("ecommerce", instrument.UserContext{SessionID: "s1"})
	require.NoError(t, err)

	noWait := WithWait(func(context.Context, time.Duration) error { return nil })
	call := New(Fixed{Fail: true}, noWait).Call(in.Domain())

	_, err = in.InstrumentAPICall(context.Background(), "checkout", "/api/checkout", "POST", call, instrument.APICallOptions{})
	require.Error(t, err)

	errs := mem.MetricsByName("ecommerce.checkout.errors")
	require.Len(t, errs, 1)
	assert.Equal(t, "SimulatedError", errs[0].Labels["error_type"])
}
