// Package simulate stands in for the business backend during demos and
// tests. It produces calls with domain-dependent latency and failure rates
// that can be wrapped by an instrument.Instrumentor.
package simulate

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/fyrsmithlabs/domainscope/internal/instrument"
	"github.com/fyrsmithlabs/domainscope/internal/registry"
)

// Latency model for simulated calls.
const (
	CriticalBaseLatency = 100 * time.Millisecond
	DefaultBaseLatency  = 200 * time.Millisecond
	MaxJitter           = 300 * time.Millisecond
)

// Generator decides how a simulated call behaves.
type Generator interface {
	Latency(d *registry.Domain) time.Duration
	ShouldFail(d *registry.Domain) bool
}

// Random draws latency and failures from a seeded source. Critical domains
// answer faster; the failure probability is the domain's error threshold.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a Random generator. The same seed yields the same
// sequence of outcomes.
func NewRandom(seed uint64) *Random {
	return &Random{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Latency implements Generator.
func (r *Random) Latency(d *registry.Domain) time.Duration {
	base := DefaultBaseLatency
	if d.Priority == registry.PriorityCritical {
		base = CriticalBaseLatency
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return base + time.Duration(r.rng.Int64N(int64(MaxJitter)))
}

// ShouldFail implements Generator.
func (r *Random) ShouldFail(d *registry.Domain) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() < d.ErrorThreshold/100
}

// Fixed always answers with the same latency and outcome.
type Fixed struct {
	Delay time.Duration
	Fail  bool
}

// Latency implements Generator.
func (f Fixed) Latency(*registry.Domain) time.Duration { return f.Delay }

// ShouldFail implements Generator.
func (f Fixed) ShouldFail(*registry.Domain) bool { return f.Fail }

// Error is returned by a simulated call that failed.
type Error struct {
	Domain string
}

func (e *Error) Error() string {
	return fmt.Sprintf("simulated %s API error", e.Domain)
}

// Kind implements the error kind reported in metrics.
func (e *Error) Kind() string { return "SimulatedError" }

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Simulator builds simulated calls.
type Simulator struct {
	gen  Generator
	wait WaitFunc
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithWait replaces the real sleep, typically with one driving a fake clock.
func WithWait(w WaitFunc) Option {
	return func(s *Simulator) {
		if w != nil {
			s.wait = w
		}
	}
}

// New creates a Simulator over gen.
func New(gen Generator, opts ...Option) *Simulator {
	s := &Simulator{gen: gen, wait: sleep}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Call returns a call that behaves like an endpoint of domain d. It returns
// the context error if ctx ends before the simulated latency has elapsed.
func (s *Simulator) Call(d *registry.Domain) instrument.Call {
	return func(ctx context.Context) (instrument.Response, error) {
		if err := s.wait(ctx, s.gen.Latency(d)); err != nil {
			return instrument.Response{}, err
		}
		if s.gen.ShouldFail(d) {
			return instrument.Response{Status: 500}, &Error{Domain: d.Name}
		}
		return instrument.Response{
			Status: 200,
			Body:   map[string]any{"success": true},
		}, nil
	}
}

// Step returns a journey step that behaves like Call.
func (s *Simulator) Step(d *registry.Domain) instrument.StepFunc {
	call := s.Call(d)
	return func(ctx context.Context) error {
		_, err := call(ctx)
		return err
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
