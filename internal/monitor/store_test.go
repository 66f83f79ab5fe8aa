package monitor

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
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

func newTestStore(t *testing.T, realUser bool) (*Store, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	s := NewStore(WithClock(clock.Now))
	s.Initialize(realUser)
	return s, clock
}

func TestStore_Initialize(t *testing.T) {
	t.Run("real user enables telemetry", func(t *testing.T) {
		s, _ := newTestStore(t, true)
		assert.True(t, s.TelemetryEnabled())

		acts := s.Activities()
		require.Len(t, acts, 1)
		assert.Equal(t, ActivitySessionStart, acts[0].Kind)
		assert.Equal(t, "Session started - User detected", acts[0].Description)
	})

	t.Run("bot disables telemetry", func(t *testing.T) {
		s, _ := newTestStore(t, false)
		assert.False(t, s.TelemetryEnabled())
		assert.Equal(t, "Session started - Bot detected", s.Activities()[0].Description)
	})

	t.Run("new store is disabled until initialized", func(t *testing.T) {
		s := NewStore()
		assert.False(t, s.TelemetryEnabled())
		assert.Empty(t, s.Activities())
	})
}

func TestStore_CapacityEvictsOldestFirst(t *testing.T) {
	s := NewStore(WithClock(newFakeClock().Now))

	for i := 0; i < 105; i++ {
		s.TrackFiltered(fmt.Sprintf("event-%d", i))
	}

	acts := s.Activities()
	require.Len(t, acts, DefaultCapacity)
	for i, a := range acts {
		assert.Equal(t, fmt.Sprintf("Filtered: event-%d", i+5), a.Description)
	}
	for _, a := range acts {
		for i := 0; i < 5; i++ {
			assert.NotEqual(t, fmt.Sprintf("Filtered: event-%d", i), a.Description)
		}
	}
	assert.EqualValues(t, 105, s.Export().Metrics.ErrorsFiltered, "counters are not capped")
}

func TestStore_WithCapacity(t *testing.T) {
	s := NewStore(WithCapacity(3))
	for i := 0; i < 5; i++ {
		s.TrackFiltered(fmt.Sprintf("e%d", i))
	}
	acts := s.Activities()
	require.Len(t, acts, 3)
	assert.Equal(t, "Filtered: e2", acts[0].Description)
	assert.Equal(t, "Filtered: e4", acts[2].Description)
}

func TestStore_RunningAverage(t *testing.T) {
	s, _ := newTestStore(t, true)

	s.TrackAPICall("/api/orders", "GET", 100*time.Millisecond, 200)
	assert.Equal(t, 100.0, s.Export().Performance.AvgAPIResponseMS)

	s.TrackAPICall("/api/orders", "GET", 200*time.Millisecond, 200)
	assert.Equal(t, 150.0, s.Export().Performance.AvgAPIResponseMS)

	s.TrackAPICall("/api/orders", "GET", 400*time.Millisecond, 200)
	assert.Equal(t, 275.0, s.Export().Performance.AvgAPIResponseMS)

	s.TrackAPICall("/api/orders", "GET", 0, 0)
	assert.Equal(t, 275.0, s.Export().Performance.AvgAPIResponseMS, "zero durations are not averaged")
	assert.EqualValues(t, 4, s.Export().Metrics.APICalls)

	s.TrackPageView("/checkout", 800*time.Millisecond)
	s.TrackPageView("/checkout", 400*time.Millisecond)
	assert.Equal(t, 600.0, s.Export().Performance.AvgPageLoadMS)
}

func TestStore_TrackAPICall(t *testing.T) {
	s, _ := newTestStore(t, true)

	s.TrackAPICall("/api/orders", "POST", 250*time.Millisecond, 503)
	s.TrackAPICall("/api/orders", "GET", 0, 0)

	snap := s.Export()
	assert.EqualValues(t, 2, snap.Metrics.APICalls)
	assert.EqualValues(t, 1, snap.Metrics.APIFailures)

	acts := s.Activities()
	require.Len(t, acts, 3)
	assert.Equal(t, "API call: POST /api/orders", acts[1].Description)
	assert.Equal(t, map[string]any{
		"url": "/api/orders", "method": "POST", "duration_ms": 250.0, "status": 503,
	}, acts[1].Metadata)
	assert.Equal(t, map[string]any{"url": "/api/orders", "method": "GET"}, acts[2].Metadata)
}

func TestStore_Descriptions(t *testing.T) {
	s, _ := newTestStore(t, true)

	s.TrackPageView("/home", 0)
	s.TrackUserInteraction("click", "buy-button")
	s.TrackUserInteraction("scroll", "")
	s.TrackError("payment declined", "")
	s.TrackError("timeout", SourceNetwork)

	acts := s.Activities()
	require.Len(t, acts, 6)
	assert.Equal(t, "Page viewed: /home", acts[1].Description)
	assert.Equal(t, "User click on buy-button", acts[2].Description)
	assert.Equal(t, "User scroll", acts[3].Description)
	assert.Equal(t, "Error: payment declined", acts[4].Description)
	assert.Equal(t, "application", acts[4].Metadata["type"])
	assert.Equal(t, "network", acts[5].Metadata["type"])

	m := s.Export().Metrics
	assert.EqualValues(t, 1, m.PageViews)
	assert.EqualValues(t, 2, m.UserInteractions)
	assert.EqualValues(t, 2, m.ErrorsTracked)
	assert.EqualValues(t, 5, m.TotalTrackedEvents)
}

func TestStore_DisabledTelemetryFilters(t *testing.T) {
	s, _ := newTestStore(t, false)

	s.TrackPageView("/home", 100*time.Millisecond)
	s.TrackAPICall("/api/orders", "GET", 100*time.Millisecond, 200)
	s.TrackUserInteraction("click", "buy")
	s.TrackError("boom", SourceApplication)

	snap := s.Export()
	assert.Zero(t, snap.Metrics.PageViews)
	assert.Zero(t, snap.Metrics.APICalls)
	assert.Zero(t, snap.Metrics.UserInteractions)
	assert.Zero(t, snap.Metrics.ErrorsTracked)
	assert.EqualValues(t, 4, snap.Metrics.ErrorsFiltered)
	assert.Zero(t, snap.Performance.AvgAPIResponseMS)
	assert.Equal(t, 100, snap.Metrics.FilteringEfficiency)

	descs := make([]string, 0, 4)
	for _, a := range s.Activities()[1:] {
		assert.Equal(t, ActivityFiltered, a.Kind)
		descs = append(descs, a.Description)
	}
	assert.Equal(t, []string{
		"Filtered: Page view blocked - bot traffic",
		"Filtered: API call blocked: GET /api/orders",
		"Filtered: User interaction blocked: click",
		"Filtered: Error blocked: boom",
	}, descs)
}

func TestStore_FilteringEfficiency(t *testing.T) {
	tests := []struct {
		name     string
		tracked  int
		filtered int
		expected int
	}{
		{"no events", 0, 0, 0},
		{"only tracked", 4, 0, 0},
		{"quarter filtered", 3, 1, 25},
		{"rounds to nearest", 2, 1, 33},
		{"rounds up", 1, 2, 67},
		{"only filtered", 0, 3, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t, true)
			for i := 0; i < tt.tracked; i++ {
				s.TrackPageView("/p", 0)
			}
			for i := 0; i < tt.filtered; i++ {
				s.TrackFiltered("noise")
			}
			assert.Equal(t, tt.expected, s.FilteringEfficiency())
		})
	}
}

func TestStore_SessionDuration(t *testing.T) {
	s, clock := newTestStore(t, true)
	assert.Zero(t, s.SessionDuration())

	clock.Advance(2400 * time.Millisecond)
	assert.EqualValues(t, 2, s.SessionDuration())

	clock.Advance(200 * time.Millisecond)
	assert.EqualValues(t, 3, s.SessionDuration(), "rounds to the nearest second")
}

func TestStore_RecentActivitiesFormatted(t *testing.T) {
	s, clock := newTestStore(t, true)
	for i := 0; i < 30; i++ {
		clock.Advance(time.Second)
		s.TrackPageView(fmt.Sprintf("/p%d", i), 0)
	}
	clock.Advance(90 * time.Second)

	recent := s.RecentActivitiesFormatted()
	require.Len(t, recent, RecentLimit)
	assert.Equal(t, "Page viewed: /p29", recent[0].Description)
	assert.Equal(t, "Page viewed: /p10", recent[RecentLimit-1].Description)
	assert.Equal(t, "1m ago", recent[0].TimeAgo)
	assert.Equal(t, "12:00:30", recent[0].FormattedTime)
	for i := 1; i < len(recent); i++ {
		assert.False(t, recent[i].Timestamp.After(recent[i-1].Timestamp))
	}

	acts := s.Activities()
	require.Len(t, acts, 31)
	assert.Equal(t, ActivitySessionStart, acts[0].Kind, "the stored log keeps insertion order")
}

func TestStore_ExportIsPure(t *testing.T) {
	s, _ := newTestStore(t, true)
	s.TrackAPICall("/api/orders", "GET", 120*time.Millisecond, 200)
	s.TrackFiltered("extension error")
	s.RecordBusinessValue("cart_abandonment_rate", 42)

	before := s.Activities()
	first := s.Export()
	second := s.Export()

	assert.Equal(t, first, second)
	assert.Equal(t, before, s.Activities())
	assert.Equal(t, map[string]float64{"cart_abandonment_rate": 42}, first.Business)

	first.Business["cart_abandonment_rate"] = 99
	assert.Equal(t, 42.0, s.Export().Business["cart_abandonment_rate"])
}

func TestStore_Reset(t *testing.T) {
	s, clock := newTestStore(t, true)
	s.TrackAPICall("/api/orders", "GET", 120*time.Millisecond, 500)
	s.TrackFiltered("noise")
	clock.Advance(time.Minute)

	s.Reset()

	snap := s.Export()
	assert.Equal(t, Counters{}, snap.Metrics)
	assert.Equal(t, Performance{}, snap.Performance)
	assert.Empty(t, snap.Activities)
	assert.Zero(t, snap.Session.DurationSeconds)
	assert.True(t, snap.Session.TelemetryEnabled, "the real-user decision survives a reset")
}

func TestStore_UniqueActivityIDs(t *testing.T) {
	s, _ := newTestStore(t, true)
	for i := 0; i < 10; i++ {
		s.TrackUserInteraction("click", "")
	}
	seen := make(map[string]bool)
	for _, a := range s.Activities() {
		assert.NotEmpty(t, a.ID)
		assert.False(t, seen[a.ID], "duplicate id %s", a.ID)
		seen[a.ID] = true
	}
}

func TestStore_ConcurrentWriters(t *testing.T) {
	s, _ := newTestStore(t, true)

	var wg sync.WaitGroup
	for g := 0; g < 20; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				s.TrackAPICall("/api/orders", "GET", 100*time.Millisecond, 200)
				_ = s.Export()
			}
		}()
	}
	wg.Wait()

	snap := s.Export()
	assert.EqualValues(t, 500, snap.Metrics.APICalls)
	assert.Equal(t, 100.0, snap.Performance.AvgAPIResponseMS)
	assert.Len(t, s.Activities(), DefaultCapacity)
}
