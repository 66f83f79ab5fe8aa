package instrument

import "regexp"

// DeviceType is the form factor a session runs on.
type DeviceType string

// Device types.
const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
)

// Valid reports whether d is a known device type.
func (d DeviceType) Valid() bool {
	switch d {
	case DeviceMobile, DeviceTablet, DeviceDesktop:
		return true
	}
	return false
}

// DeviceForViewport classifies a viewport width in CSS pixels.
func DeviceForViewport(width int) DeviceType {
	switch {
	case width > 0 && width < 768:
		return DeviceMobile
	case width >= 768 && width < 1024:
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}

var (
	tabletAgent = regexp.MustCompile(`(?i)ipad|tablet`)
	mobileAgent = regexp.MustCompile(`(?i)mobi|android`)
)

// DeviceForUserAgent guesses the form factor from a User-Agent header.
func DeviceForUserAgent(userAgent string) DeviceType {
	switch {
	case tabletAgent.MatchString(userAgent):
		return DeviceTablet
	case mobileAgent.MatchString(userAgent):
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}

// UserContext identifies the session an instrumentor reports for. It is set
// once at session start and never changes.
type UserContext struct {
	SessionID       string     `json:"session_id"`
	UserID          string     `json:"user_id,omitempty"`
	IsAuthenticated bool       `json:"is_authenticated"`
	UserSegment     string     `json:"user_segment"`
	DeviceType      DeviceType `json:"device_type"`
	Location        string     `json:"location,omitempty"`
}

// Segment returns the user segment, "anonymous" or "authenticated" when
// none was set.
func (u UserContext) Segment() string {
	if u.UserSegment != "" {
		return u.UserSegment
	}
	if u.IsAuthenticated {
		return "authenticated"
	}
	return "anonymous"
}
