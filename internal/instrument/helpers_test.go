package instrument

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/domainscope/internal/logging"
	"github.com/fyrsmithlabs/domainscope/internal/registry"
	"github.com/fyrsmithlabs/domainscope/internal/sampling"
	"github.com/fyrsmithlabs/domainscope/internal/sink"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// samplingNone drops every span that is neither an error nor on a critical path.
var samplingNone = sampling.Config{DefaultRate: 0, CriticalPathRate: 1, ErrorRate: 1}

type fixture struct {
	cache  *Cache
	sink   *sink.Memory
	clock  *fakeClock
	logger *logging.TestLogger
}

func newFixture(t *testing.T, opts ...CacheOption) *fixture {
	t.Helper()
	f := &fixture{
		sink:   sink.NewMemory(),
		clock:  newFakeClock(),
		logger: logging.NewTestLogger(),
	}
	opts = append([]CacheOption{WithClock(f.clock)}, opts...)
	cache, err := NewCache(registry.Default(), f.sink, f.logger.Logger, opts...)
	require.NoError(t, err)
	f.cache = cache
	return f
}

func (f *fixture) instrumentor(t *testing.T, domain string) *Instrumentor {
	t.Helper()
	in, err := f.cache.Get(domain, testUser("s1"))
	require.NoError(t, err)
	return in
}

// takes returns a call that advances the fake clock by d and responds with status.
func (f *fixture) takes(d time.Duration, status int) Call {
	return func(context.Context) (Response, error) {
		f.clock.Advance(d)
		return Response{Status: status}, nil
	}
}

func testUser(sessionID string) UserContext {
	return UserContext{
		SessionID:       sessionID,
		IsAuthenticated: true,
		UserSegment:     "premium",
		DeviceType:      DeviceDesktop,
	}
}
