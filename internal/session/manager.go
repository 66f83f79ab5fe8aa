package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/domainscope/internal/filter"
	"github.com/fyrsmithlabs/domainscope/internal/instrument"
	"github.com/fyrsmithlabs/domainscope/internal/logging"
	"github.com/fyrsmithlabs/domainscope/internal/monitor"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// publishTimeout bounds forwarding of sessions that expired on their own.
const publishTimeout = 5 * time.Second

// forwardQueueSize is how many expired sessions may wait for forwarding.
// Further expiries are logged and dropped.
const forwardQueueSize = 256

// Publisher receives the final snapshot of every session.
type Publisher interface {
	Publish(ctx context.Context, sessionID string, snap monitor.Snapshot) error
}

// Config controls session lifetime and alerting.
type Config struct {
	// IdleTimeout ends sessions that saw no activity. Zero disables expiry.
	IdleTimeout time.Duration
	// MaxSessions bounds the session table. Zero is unbounded.
	MaxSessions int
	// DefaultOrigin is the first-party host used when a session names none.
	DefaultOrigin string
	Alerting      monitor.AlertingConfig
}

// Option configures a Manager.
type Option func(*Manager)

// WithPublisher forwards final snapshots to p.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) {
		m.publisher = p
	}
}

// WithClock overrides the clock used for session stores and timings.
func WithClock(clock instrument.Clock) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// Manager owns the live sessions.
type Manager struct {
	cfg       Config
	cache     *instrument.Cache
	filter    *filter.Filter
	logger    *logging.Logger
	publisher Publisher
	clock     instrument.Clock
	newID     func() string

	mu       sync.Mutex
	sessions *expirable.LRU[string, *Session]

	// Evicted sessions are forwarded off the table's lock.
	fwdMu    sync.Mutex
	stopped  bool
	forwards chan expired
	done     chan struct{}
}

type expired struct {
	id   string
	snap monitor.Snapshot
}

// NewManager creates a Manager. Instrumentors come from cache; traffic is
// classified by f.
func NewManager(cfg Config, cache *instrument.Cache, f *filter.Filter, logger *logging.Logger, opts ...Option) (*Manager, error) {
	if cache == nil {
		return nil, errors.New("instrumentor cache is required")
	}
	if f == nil {
		return nil, errors.New("filter is required")
	}
	if cfg.MaxSessions < 0 {
		return nil, errors.New("max sessions must not be negative")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg.DefaultOrigin == "" {
		cfg.DefaultOrigin = "localhost"
	}

	m := &Manager{
		cfg:    cfg,
		cache:  cache,
		filter: f,
		logger: logger,
		clock:  instrument.SystemClock,
		newID:  uuid.NewString,

		forwards: make(chan expired, forwardQueueSize),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.sessions = expirable.NewLRU[string, *Session](cfg.MaxSessions, m.onEvict, cfg.IdleTimeout)
	go m.forwardLoop()
	return m, nil
}

// Start opens a session and decides whether a real user is behind it.
func (m *Manager) Start(ctx context.Context, req StartRequest) (Info, error) {
	for _, sig := range req.Signals {
		if !sig.Valid() {
			return Info{}, fmt.Errorf("invalid signal %q", sig)
		}
	}

	device := instrument.DeviceForUserAgent(req.UserAgent)
	if req.ViewportWidth > 0 {
		device = instrument.DeviceForViewport(req.ViewportWidth)
	}
	origin := req.Origin
	if origin == "" {
		origin = m.cfg.DefaultOrigin
	}

	s := &Session{
		id: m.newID(),
		user: instrument.UserContext{
			UserID:          req.UserID,
			IsAuthenticated: req.IsAuthenticated,
			UserSegment:     req.UserSegment,
			DeviceType:      device,
			Location:        req.Location,
		},
		origin:    origin,
		startedAt: m.clock.Now(),
		store:     monitor.NewStore(monitor.WithClock(m.clock.Now)),
		signals: filter.Signals{
			UserAgent:      req.UserAgent,
			ViewportWidth:  req.ViewportWidth,
			ViewportHeight: req.ViewportHeight,
		},
	}
	s.user.SessionID = s.id
	if s.user.UserSegment == "" {
		s.user.UserSegment = s.user.Segment()
	}
	s.observe(req.Signals...)
	s.realUser = m.filter.IsRealUserSession(s.signals)
	s.store.Initialize(s.realUser)

	m.mu.Lock()
	m.sessions.Add(s.id, s)
	m.mu.Unlock()

	m.logger.Info(logging.WithSessionID(ctx, s.id), "session started",
		zap.Bool("real_user", s.realUser),
		zap.String("device_type", string(device)))
	return s.info(), nil
}

// Get returns the session's current view.
func (m *Manager) Get(id string) (Info, error) {
	s, err := m.session(id)
	if err != nil {
		return Info{}, err
	}
	return s.info(), nil
}

// Observe records sticky human-interaction signals. A session that was
// classified as automated is promoted once the signals show a human.
func (m *Manager) Observe(id string, signals ...Signal) (Info, error) {
	for _, sig := range signals {
		if !sig.Valid() {
			return Info{}, fmt.Errorf("invalid signal %q", sig)
		}
	}
	s, err := m.session(id)
	if err != nil {
		return Info{}, err
	}
	m.observe(context.Background(), s, signals...)
	return s.info(), nil
}

func (m *Manager) observe(ctx context.Context, s *Session, signals ...Signal) {
	s.mu.Lock()
	s.observe(signals...)
	promote := !s.realUser && m.filter.IsRealUserSession(s.signals)
	if promote {
		s.realUser = true
	}
	s.mu.Unlock()

	if promote {
		s.store.Initialize(true)
		m.logger.Info(logging.WithSessionID(ctx, s.id), "session promoted to real user")
	}
}

// Snapshot exports the session's aggregated metrics.
func (m *Manager) Snapshot(id string) (monitor.Snapshot, error) {
	s, err := m.session(id)
	if err != nil {
		return monitor.Snapshot{}, err
	}
	return s.store.Export(), nil
}

// Alerts evaluates the alerting thresholds against the session's metrics.
func (m *Manager) Alerts(id string) ([]monitor.Alert, error) {
	snap, err := m.Snapshot(id)
	if err != nil {
		return nil, err
	}
	return monitor.EvaluateAlerts(snap, m.cfg.Alerting), nil
}

// Reset clears the session's aggregated metrics.
func (m *Manager) Reset(id string) error {
	s, err := m.session(id)
	if err != nil {
		return err
	}
	s.store.Reset()
	return nil
}

// End closes the session, forwards its final snapshot and evicts its
// instrumentors. The snapshot is returned even when forwarding fails.
func (m *Manager) End(ctx context.Context, id string) (monitor.Snapshot, error) {
	m.mu.Lock()
	s, ok := m.sessions.Peek(id)
	if !ok || !s.ended.CompareAndSwap(false, true) {
		m.mu.Unlock()
		return monitor.Snapshot{}, ErrNotFound
	}
	m.sessions.Remove(id)
	m.mu.Unlock()

	snap := s.store.Export()
	if err := m.publish(ctx, s.id, snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// Shutdown ends every live session, then waits for queued forwards of
// expired sessions until ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	for _, id := range m.sessions.Keys() {
		if _, err := m.End(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	m.fwdMu.Lock()
	if !m.stopped {
		m.stopped = true
		close(m.forwards)
	}
	m.fwdMu.Unlock()
	select {
	case <-m.done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for session forwarding: %w", ctx.Err()))
	}
	return errors.Join(errs...)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return m.sessions.Len()
}

// session returns a live session and refreshes its idle timer.
func (m *Manager) session(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions.Get(id)
	if !ok || s.ended.Load() {
		return nil, ErrNotFound
	}
	m.sessions.Add(id, s)
	return s, nil
}

// onEvict runs for explicit ends, expiry and capacity eviction alike. It is
// called with the session table locked, so it must not touch the table or
// block: the final snapshot of an expired session is queued for forwardLoop.
func (m *Manager) onEvict(id string, s *Session) {
	ctx := logging.WithSessionID(context.Background(), id)
	evicted := m.cache.EvictSession(id)
	m.logger.Debug(ctx, "session evicted", zap.Int("instrumentors", evicted))

	if !s.ended.CompareAndSwap(false, true) {
		return
	}
	m.logger.Info(ctx, "session expired")
	if m.publisher == nil {
		return
	}

	m.fwdMu.Lock()
	defer m.fwdMu.Unlock()
	if m.stopped {
		m.logger.Warn(ctx, "session expired after shutdown, not forwarded")
		return
	}
	select {
	case m.forwards <- expired{id: id, snap: s.store.Export()}:
	default:
		m.logger.Warn(ctx, "forward queue full, expired session dropped")
	}
}

// forwardLoop publishes the snapshots of expired sessions until Shutdown.
func (m *Manager) forwardLoop() {
	defer close(m.done)
	for e := range m.forwards {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := m.publish(ctx, e.id, e.snap); err != nil {
			m.logger.Warn(logging.WithSessionID(ctx, e.id), "failed to forward expired session", zap.Error(err))
		}
		cancel()
	}
}

func (m *Manager) publish(ctx context.Context, id string, snap monitor.Snapshot) error {
	if m.publisher == nil {
		return nil
	}
	if err := m.publisher.Publish(ctx, id, snap); err != nil {
		return fmt.Errorf("%w %s: %w", ErrPublish, id, err)
	}
	return nil
}
