package monitor

import "time"

// Snapshot is a point-in-time export of a store.
type Snapshot struct {
	Session     SessionInfo         `json:"session"`
	Metrics     Counters            `json:"metrics"`
	Performance Performance         `json:"performance"`
	Activities  []FormattedActivity `json:"activities"`
	Business    map[string]float64  `json:"business,omitempty"`
}

// SessionInfo describes the session a snapshot belongs to.
type SessionInfo struct {
	StartTime        time.Time `json:"start_time"`
	DurationSeconds  int64     `json:"duration_seconds"`
	IsRealUser       bool      `json:"is_real_user"`
	TelemetryEnabled bool      `json:"telemetry_enabled"`
}

// Counters are the event counts and the values derived from them.
type Counters struct {
	PageViews           int64 `json:"page_views"`
	APICalls            int64 `json:"api_calls"`
	APIFailures         int64 `json:"api_failures"`
	UserInteractions    int64 `json:"user_interactions"`
	ErrorsTracked       int64 `json:"errors_tracked"`
	ErrorsFiltered      int64 `json:"errors_filtered"`
	TotalTrackedEvents  int64 `json:"total_tracked_events"`
	FilteringEfficiency int   `json:"filtering_efficiency"`
}

// Performance holds the running averages in milliseconds.
type Performance struct {
	AvgPageLoadMS    float64 `json:"avg_page_load_ms"`
	AvgAPIResponseMS float64 `json:"avg_api_response_ms"`
}

// Export returns a snapshot of the store. It does not modify the store.
func (s *Store) Export() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Session: SessionInfo{
			StartTime:        s.sessionStart,
			DurationSeconds:  s.sessionDurationLocked(),
			IsRealUser:       s.isRealUser,
			TelemetryEnabled: s.telemetryEnabled,
		},
		Metrics: Counters{
			PageViews:           s.pageViews,
			APICalls:            s.apiCalls,
			APIFailures:         s.apiFailures,
			UserInteractions:    s.userInteractions,
			ErrorsTracked:       s.errorsTracked,
			ErrorsFiltered:      s.errorsFiltered,
			TotalTrackedEvents:  s.totalTrackedLocked(),
			FilteringEfficiency: s.filteringEfficiencyLocked(),
		},
		Performance: Performance{
			AvgPageLoadMS:    s.avgPageLoadMS,
			AvgAPIResponseMS: s.avgAPIResponseMS,
		},
		Activities: s.recentFormattedLocked(),
	}
	if len(s.business) > 0 {
		snap.Business = make(map[string]float64, len(s.business))
		for k, v := range s.business {
			snap.Business[k] = v
		}
	}
	return snap
}

// ErrorRate returns tracked errors as a percentage of tracked events.
func (c Counters) ErrorRate() float64 {
	if c.TotalTrackedEvents == 0 {
		return 0
	}
	return float64(c.ErrorsTracked) / float64(c.TotalTrackedEvents) * 100
}

// Availability returns successful API calls as a percentage of API calls,
// or 100 when no calls were made.
func (c Counters) Availability() float64 {
	if c.APICalls == 0 {
		return 100
	}
	return float64(c.APICalls-c.APIFailures) / float64(c.APICalls) * 100
}
