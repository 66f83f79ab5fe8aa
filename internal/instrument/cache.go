package instrument

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fyrsmithlabs/domainscope/internal/logging"
	"github.com/fyrsmithlabs/domainscope/internal/registry"
	"github.com/fyrsmithlabs/domainscope/internal/sampling"
	"github.com/fyrsmithlabs/domainscope/internal/sink"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithSampling drops spans according to cfg. Without it every span is kept.
func WithSampling(cfg *sampling.Config) CacheOption {
	return func(c *Cache) {
		c.sampler = cfg
	}
}

// WithBusinessThresholds sets the values above which business metrics log a
// warning.
func WithBusinessThresholds(thresholds map[string]float64) CacheOption {
	return func(c *Cache) {
		c.thresholds = make(map[string]float64, len(thresholds))
		for k, v := range thresholds {
			c.thresholds[k] = v
		}
	}
}

// WithClock overrides the clock used by instrumentors.
func WithClock(clock Clock) CacheOption {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithCapacity bounds the number of cached instrumentors. Zero is unbounded.
func WithCapacity(n int) CacheOption {
	return func(c *Cache) {
		c.capacity = n
	}
}

// WithTTL expires instrumentors that were not requested for ttl.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// Cache hands out one Instrumentor per (domain, session).
type Cache struct {
	registry   *registry.Registry
	sink       sink.Sink
	logger     *logging.Logger
	sampler    *sampling.Config
	thresholds map[string]float64
	clock      Clock
	capacity   int
	ttl        time.Duration

	mu      sync.Mutex
	entries *expirable.LRU[cacheKey, *Instrumentor]
}

type cacheKey struct {
	domain    string
	sessionID string
}

// NewCache creates an instrumentor cache over reg. Output goes to s.
func NewCache(reg *registry.Registry, s sink.Sink, logger *logging.Logger, opts ...CacheOption) (*Cache, error) {
	if reg == nil {
		return nil, errors.New("registry is required")
	}
	if s == nil {
		return nil, errors.New("sink is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	c := &Cache{
		registry: reg,
		sink:     s,
		logger:   logger,
		clock:    SystemClock,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.capacity < 0 {
		return nil, errors.New("capacity must not be negative")
	}

	c.entries = expirable.NewLRU[cacheKey, *Instrumentor](c.capacity, nil, c.ttl)
	return c, nil
}

// Get returns the instrumentor for domain and the user's session, creating
// it on first use. Repeated calls with the same pair return the same
// instance. An unknown domain yields a *ConfigurationError.
func (c *Cache) Get(domain string, user UserContext) (*Instrumentor, error) {
	key := cacheKey{domain: domain, sessionID: user.SessionID}

	c.mu.Lock()
	defer c.mu.Unlock()

	if in, ok := c.entries.Get(key); ok {
		// Get alone does not extend the entry's expiry.
		c.entries.Add(key, in)
		return in, nil
	}

	d, ok := c.registry.FindDomain(domain)
	if !ok {
		return nil, &ConfigurationError{Domain: domain}
	}

	in := &Instrumentor{
		domain:     d,
		user:       user,
		sink:       c.sink,
		sampler:    c.sampler,
		thresholds: c.thresholds,
		clock:      c.clock,
		logger:     c.logger,
	}
	c.entries.Add(key, in)
	c.logger.Debug(in.logContext(context.Background(), ""), "instrumentor created")
	return in, nil
}

// EvictSession drops every instrumentor of sessionID and returns how many
// were removed.
func (c *Cache) EvictSession(sessionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, domain := range c.registry.Domains() {
		if c.entries.Remove(cacheKey{domain: domain, sessionID: sessionID}) {
			removed++
		}
	}
	return removed
}

// Len returns the number of cached instrumentors.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Registry returns the registry instrumentors are built from.
func (c *Cache) Registry() *registry.Registry {
	return c.registry
}
