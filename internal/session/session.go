// Package session runs the tracking flow for browser sessions.
//
// Every tracked event first passes the smart filter. Rejected events only
// bump the session's filtered counter. Accepted events are attributed to the
// domain catalog through an instrumentor and recorded in the session's
// aggregation store. Sessions end explicitly or after an idle timeout; either
// way their instrumentors are evicted and the final snapshot is forwarded.
package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fyrsmithlabs/domainscope/internal/filter"
	"github.com/fyrsmithlabs/domainscope/internal/instrument"
	"github.com/fyrsmithlabs/domainscope/internal/monitor"
)

// Errors returned by the Manager.
var (
	ErrNotFound      = errors.New("session not found")
	ErrUnknownSchema = errors.New("unknown payload schema")
	// ErrPublish wraps failures to forward a final snapshot.
	ErrPublish = errors.New("forward session snapshot")
)

// Signal is a human-interaction signal reported by the client.
type Signal string

// Signals the client may report.
const (
	SignalClick     Signal = "click"
	SignalMouseMove Signal = "mouse_move"
	SignalScroll    Signal = "scroll"
	SignalKeystroke Signal = "keystroke"
)

// Valid reports whether s is a known signal.
func (s Signal) Valid() bool {
	switch s {
	case SignalClick, SignalMouseMove, SignalScroll, SignalKeystroke:
		return true
	}
	return false
}

// StartRequest describes a new session.
type StartRequest struct {
	UserAgent       string   `json:"user_agent"`
	ViewportWidth   int      `json:"viewport_width"`
	ViewportHeight  int      `json:"viewport_height"`
	Origin          string   `json:"origin,omitempty"`
	UserID          string   `json:"user_id,omitempty"`
	IsAuthenticated bool     `json:"is_authenticated"`
	UserSegment     string   `json:"user_segment,omitempty"`
	Location        string   `json:"location,omitempty"`
	Signals         []Signal `json:"signals,omitempty"`
}

// Info is the public view of a session.
type Info struct {
	ID        string                 `json:"id"`
	User      instrument.UserContext `json:"user"`
	Origin    string                 `json:"origin"`
	RealUser  bool                   `json:"real_user"`
	StartedAt time.Time              `json:"started_at"`
}

// Session is one tracked browser session.
type Session struct {
	id        string
	user      instrument.UserContext
	origin    string
	startedAt time.Time
	store     *monitor.Store

	mu       sync.Mutex
	signals  filter.Signals
	realUser bool

	ended atomic.Bool
}

func (s *Session) info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:        s.id,
		User:      s.user,
		Origin:    s.origin,
		RealUser:  s.realUser,
		StartedAt: s.startedAt,
	}
}

// observe sets the sticky flags for signals. Flags are never cleared.
func (s *Session) observe(signals ...Signal) {
	for _, sig := range signals {
		switch sig {
		case SignalClick:
			s.signals.Clicked = true
		case SignalMouseMove:
			s.signals.MouseMoved = true
		case SignalScroll:
			s.signals.Scrolled = true
		case SignalKeystroke:
			s.signals.Typed = true
		}
	}
}

// signalForInteraction maps an interaction kind to the signal it implies.
func signalForInteraction(kind string) (Signal, bool) {
	switch kind {
	case "click", "submit":
		return SignalClick, true
	case "keydown", "input":
		return SignalKeystroke, true
	case "scroll":
		return SignalScroll, true
	case "mousemove":
		return SignalMouseMove, true
	}
	return "", false
}
