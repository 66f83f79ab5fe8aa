// Package monitor aggregates per-session activity into counters, running
// averages and a bounded activity log.
//
// A Store is safe for concurrent use. Counter updates and log appends happen
// under one mutex so the capacity and running-average rules hold with
// concurrent writers.
package monitor

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultCapacity is the maximum number of activities a store keeps.
	DefaultCapacity = 100

	// RecentLimit is the number of activities in the recent-activity view.
	RecentLimit = 20
)

// ActivityKind classifies an activity record.
type ActivityKind string

const (
	ActivitySessionStart    ActivityKind = "session_start"
	ActivityPageView        ActivityKind = "page_view"
	ActivityAPICall         ActivityKind = "api_call"
	ActivityUserInteraction ActivityKind = "user_interaction"
	ActivityError           ActivityKind = "error"
	ActivityFiltered        ActivityKind = "filtered"
)

// ErrorSource says where a tracked error came from.
type ErrorSource string

const (
	SourceApplication ErrorSource = "application"
	SourceNetwork     ErrorSource = "network"
	SourceUserAction  ErrorSource = "user_action"
)

// Activity is one entry of the activity log.
type Activity struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Kind        ActivityKind   `json:"kind"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// FormattedActivity is an Activity annotated for display.
type FormattedActivity struct {
	Activity
	TimeAgo       string `json:"time_ago"`
	FormattedTime string `json:"formatted_time"`
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCapacity overrides the activity log capacity.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithIDGenerator overrides activity id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// Store holds the aggregated metrics of one session.
type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	newID    func() string
	capacity int

	pageViews        int64
	apiCalls         int64
	apiFailures      int64
	userInteractions int64
	errorsTracked    int64
	errorsFiltered   int64

	avgPageLoadMS    float64
	avgAPIResponseMS float64

	business map[string]float64

	sessionStart     time.Time
	isRealUser       bool
	telemetryEnabled bool

	activities []Activity
}

// NewStore creates an empty store. Telemetry stays disabled until Initialize
// is called with a real-user decision.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:      time.Now,
		newID:    uuid.NewString,
		capacity: DefaultCapacity,
		business: make(map[string]float64),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessionStart = s.now()
	s.activities = make([]Activity, 0, s.capacity)
	return s
}

// Initialize records the real-user decision made at session start. Telemetry
// is enabled only for real users.
func (s *Store) Initialize(isRealUser bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.isRealUser = isRealUser
	s.telemetryEnabled = isRealUser

	who := "Bot"
	if isRealUser {
		who = "User"
	}
	s.addActivityLocked(ActivitySessionStart, fmt.Sprintf("Session started - %s detected", who), nil)
}

// TelemetryEnabled reports whether track calls are counted.
func (s *Store) TelemetryEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.telemetryEnabled
}

// TrackPageView counts a page view. A zero loadTime is not averaged.
func (s *Store) TrackPageView(url string, loadTime time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.telemetryEnabled {
		s.trackFilteredLocked("Page view blocked - bot traffic")
		return
	}

	s.pageViews++
	meta := map[string]any{"url": url}
	if loadTime > 0 {
		ms := durationMS(loadTime)
		s.avgPageLoadMS = runningMean(s.avgPageLoadMS, ms)
		meta["load_time_ms"] = ms
	}
	s.addActivityLocked(ActivityPageView, "Page viewed: "+url, meta)
}

// TrackAPICall counts an API call. Statuses of 400 and above count as
// failures. A zero duration is not averaged and a zero status is omitted.
func (s *Store) TrackAPICall(url, method string, duration time.Duration, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.telemetryEnabled {
		s.trackFilteredLocked(fmt.Sprintf("API call blocked: %s %s", method, url))
		return
	}

	s.apiCalls++
	if status >= 400 {
		s.apiFailures++
	}

	meta := map[string]any{"url": url, "method": method}
	if duration > 0 {
		ms := durationMS(duration)
		s.avgAPIResponseMS = runningMean(s.avgAPIResponseMS, ms)
		meta["duration_ms"] = ms
		APIResponseTime.Observe(ms)
	}
	if status > 0 {
		meta["status"] = status
	}
	s.addActivityLocked(ActivityAPICall, fmt.Sprintf("API call: %s %s", method, url), meta)
}

// TrackUserInteraction counts a user interaction such as a click. element may
// be empty.
func (s *Store) TrackUserInteraction(kind, element string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.telemetryEnabled {
		s.trackFilteredLocked("User interaction blocked: " + kind)
		return
	}

	s.userInteractions++
	desc := "User " + kind
	meta := map[string]any{"type": kind}
	if element != "" {
		desc += " on " + element
		meta["element"] = element
	}
	s.addActivityLocked(ActivityUserInteraction, desc, meta)
}

// TrackError counts a relevant error. An empty source means application.
func (s *Store) TrackError(message string, source ErrorSource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.telemetryEnabled {
		s.trackFilteredLocked("Error blocked: " + message)
		return
	}

	if source == "" {
		source = SourceApplication
	}
	s.errorsTracked++
	s.addActivityLocked(ActivityError, "Error: "+message, map[string]any{
		"type":    string(source),
		"message": message,
	})
}

// TrackFiltered counts an event rejected by filtering.
func (s *Store) TrackFiltered(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackFilteredLocked(reason)
}

// RecordBusinessValue keeps the latest value of a business metric for alert
// evaluation.
func (s *Store) RecordBusinessValue(name string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.business[name] = value
}

// Reset clears counters, averages and the activity log and restarts the
// session clock. The real-user decision is kept.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pageViews = 0
	s.apiCalls = 0
	s.apiFailures = 0
	s.userInteractions = 0
	s.errorsTracked = 0
	s.errorsFiltered = 0
	s.avgPageLoadMS = 0
	s.avgAPIResponseMS = 0
	s.business = make(map[string]float64)
	s.activities = make([]Activity, 0, s.capacity)
	s.sessionStart = s.now()
}

// Activities returns the activity log in insertion order.
func (s *Store) Activities() []Activity {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Activity, len(s.activities))
	copy(out, s.activities)
	return out
}

// SessionDuration returns the session age rounded to whole seconds.
func (s *Store) SessionDuration() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionDurationLocked()
}

// TotalTrackedEvents returns the number of counted (not filtered) events.
func (s *Store) TotalTrackedEvents() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalTrackedLocked()
}

// FilteringEfficiency returns the share of filtered events as a rounded
// percentage, or 0 when nothing was recorded.
func (s *Store) FilteringEfficiency() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filteringEfficiencyLocked()
}

// RecentActivitiesFormatted returns the most recent activities, newest first.
// The stored log keeps its insertion order.
func (s *Store) RecentActivitiesFormatted() []FormattedActivity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recentFormattedLocked()
}

func (s *Store) trackFilteredLocked(reason string) {
	s.errorsFiltered++
	s.addActivityLocked(ActivityFiltered, "Filtered: "+reason, nil)
}

// addActivityLocked appends to the log and evicts the oldest entries once the
// capacity is exceeded.
func (s *Store) addActivityLocked(kind ActivityKind, description string, metadata map[string]any) {
	s.activities = append(s.activities, Activity{
		ID:          s.newID(),
		Timestamp:   s.now(),
		Kind:        kind,
		Description: description,
		Metadata:    metadata,
	})
	if over := len(s.activities) - s.capacity; over > 0 {
		s.activities = append(s.activities[:0:0], s.activities[over:]...)
	}
	EventsTotal.WithLabelValues(string(kind)).Inc()
}

func (s *Store) sessionDurationLocked() int64 {
	return int64(s.now().Sub(s.sessionStart).Round(time.Second) / time.Second)
}

func (s *Store) totalTrackedLocked() int64 {
	return s.pageViews + s.apiCalls + s.userInteractions + s.errorsTracked
}

func (s *Store) filteringEfficiencyLocked() int {
	total := s.totalTrackedLocked() + s.errorsFiltered
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(s.errorsFiltered) / float64(total) * 100))
}

func (s *Store) recentFormattedLocked() []FormattedActivity {
	sorted := make([]Activity, len(s.activities))
	copy(sorted, s.activities)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	if len(sorted) > RecentLimit {
		sorted = sorted[:RecentLimit]
	}

	now := s.now()
	out := make([]FormattedActivity, len(sorted))
	for i, a := range sorted {
		out[i] = FormattedActivity{
			Activity:      a,
			TimeAgo:       FormatTimeAgo(now.Sub(a.Timestamp)),
			FormattedTime: FormatClock(a.Timestamp),
		}
	}
	return out
}

// runningMean folds value into avg with the cheap (avg+value)/2 rule.
func runningMean(avg, value float64) float64 {
	if avg == 0 {
		return value
	}
	return (avg + value) / 2
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
