// Package filter decides which traffic is worth tracking.
//
// Every method is a pure function of its arguments and the pattern sets the
// Filter was built with, so a Filter is safe for concurrent use.
package filter

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// Viewport area bounds, in square pixels, for a plausible human screen.
const (
	MinViewportArea = 100_000
	MaxViewportArea = 10_000_000
)

// Signals describes what is known about a session when deciding whether a
// human is behind it. Interaction flags are sticky: once observed they stay
// set for the session's lifetime.
type Signals struct {
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Clicked        bool
	MouseMoved     bool
	Scrolled       bool
	Typed          bool
}

// HasInteraction reports whether any human-interaction signal was observed.
func (s Signals) HasInteraction() bool {
	return s.Clicked || s.MouseMoved || s.Scrolled || s.Typed
}

// Filter classifies user agents, URLs, errors and interactions.
type Filter struct {
	bots          []*regexp.Regexp
	noise         []*regexp.Regexp
	extensions    []string
	irrelevant    []string
	thirdParty    []string
	allowed       []string
	criticalPaths []string
	devMode       bool
}

// New compiles cfg into a Filter.
func New(cfg *Config) (*Filter, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f := &Filter{
		extensions:    lowerAll(cfg.ExtensionPatterns),
		irrelevant:    lowerAll(cfg.IrrelevantErrors),
		thirdParty:    lowerAll(cfg.ThirdPartyDomains),
		allowed:       lowerAll(cfg.AllowedDomains),
		criticalPaths: append([]string(nil), cfg.CriticalPaths...),
		devMode:       cfg.DevMode,
	}
	for _, p := range cfg.BotPatterns {
		f.bots = append(f.bots, regexp.MustCompile("(?i)"+p))
	}
	for _, p := range cfg.NoiseURLs {
		f.noise = append(f.noise, regexp.MustCompile("(?i)"+p))
	}
	return f, nil
}

// Default returns a Filter over the built-in pattern sets.
func Default() *Filter {
	f, err := New(NewDefaultConfig())
	if err != nil {
		panic(fmt.Sprintf("filter: invalid default config: %v", err))
	}
	return f
}

// IsBot reports whether the user agent matches any bot pattern.
func (f *Filter) IsBot(userAgent string) bool {
	for _, re := range f.bots {
		if re.MatchString(userAgent) {
			return true
		}
	}
	return false
}

// IsExtensionRelated reports whether rawURL points at a browser extension or
// an internal browser page.
func (f *Filter) IsExtensionRelated(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, p := range f.extensions {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// IsRelevantError reports whether an error message is worth tracking.
func (f *Filter) IsRelevantError(message string) bool {
	lower := strings.ToLower(message)
	for _, p := range f.irrelevant {
		if strings.Contains(lower, p) {
			return false
		}
	}
	return true
}

// ShouldTrackURL reports whether a request to rawURL made from originHost is
// first-party application traffic. Relative URLs resolve against the origin.
func (f *Filter) ShouldTrackURL(rawURL, originHost string) bool {
	lower := strings.ToLower(strings.TrimSpace(rawURL))
	if strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "blob:") {
		return false
	}
	if f.IsExtensionRelated(rawURL) {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	origin := hostname(originHost)
	host := strings.ToLower(u.Hostname())
	if !u.IsAbs() && host == "" {
		host = origin
	}
	if host != origin && !f.isAllowedHost(host) {
		return false
	}
	if f.isThirdParty(host) {
		return false
	}

	for _, re := range f.noise {
		if re.MatchString(u.Path) {
			return false
		}
	}
	return true
}

// IsRealUserSession reports whether a human appears to be behind a session.
func (f *Filter) IsRealUserSession(s Signals) bool {
	if f.IsBot(s.UserAgent) {
		return false
	}
	area := s.ViewportWidth * s.ViewportHeight
	if area < MinViewportArea || area > MaxViewportArea {
		return false
	}
	if f.devMode {
		return true
	}
	return s.HasInteraction()
}

// IsCriticalUserJourney reports whether rawURL belongs to a critical path.
func (f *Filter) IsCriticalUserJourney(rawURL string) bool {
	for _, p := range f.criticalPaths {
		if strings.Contains(rawURL, p) {
			return true
		}
	}
	return false
}

// DevMode reports whether the filter skips the interaction requirement.
func (f *Filter) DevMode() bool {
	return f.devMode
}

func (f *Filter) isThirdParty(host string) bool {
	for _, d := range f.thirdParty {
		if strings.Contains(host, d) {
			return true
		}
	}
	return false
}

func (f *Filter) isAllowedHost(host string) bool {
	for _, d := range f.allowed {
		if host == d {
			return true
		}
	}
	return false
}

// hostname strips an optional scheme and port from an origin.
func hostname(origin string) string {
	origin = strings.ToLower(strings.TrimSpace(origin))
	if strings.Contains(origin, "://") {
		if u, err := url.Parse(origin); err == nil {
			return u.Hostname()
		}
	}
	if h, _, err := net.SplitHostPort(origin); err == nil {
		return h
	}
	return origin
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
