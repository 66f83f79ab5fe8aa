package filter

import (
	"fmt"
	"regexp"
)

// Config holds the pattern sets the filter classifies traffic with.
//
// Patterns are compiled once by New; the filter never mutates them.
type Config struct {
	// BotPatterns are case-insensitive regular expressions matched against
	// user agents.
	BotPatterns []string `koanf:"bot_patterns"`

	// ExtensionPatterns are URL substrings identifying browser extensions
	// and internal pages.
	ExtensionPatterns []string `koanf:"extension_patterns"`

	// IrrelevantErrors are case-insensitive message substrings that mark an
	// error as noise.
	IrrelevantErrors []string `koanf:"irrelevant_errors"`

	// ThirdPartyDomains are host substrings of analytics and ad providers.
	ThirdPartyDomains []string `koanf:"third_party_domains"`

	// NoiseURLs are case-insensitive regular expressions matched against
	// URL paths (static assets, beacons).
	NoiseURLs []string `koanf:"noise_urls"`

	// SensitiveFields are payload keys that must never be logged.
	SensitiveFields []string `koanf:"sensitive_fields"`

	// AllowedDomains are hosts treated as first-party besides the origin.
	AllowedDomains []string `koanf:"allowed_domains"`

	// CriticalPaths are URL substrings marking critical user journeys.
	CriticalPaths []string `koanf:"critical_paths"`

	// DevMode skips the human-interaction requirement of the real-user check.
	DevMode bool `koanf:"dev_mode"`
}

// NewDefaultConfig returns the built-in pattern sets.
func NewDefaultConfig() *Config {
	return &Config{
		BotPatterns: []string{
			`bot`, `crawler`, `spider`, `scraper`,
			`googlebot`, `bingbot`, `slurp`, `duckduckbot`,
			`facebookexternalhit`, `twitterbot`, `linkedinbot`,
			`whatsapp`, `telegram`, `slack`, `headless`,
		},
		ExtensionPatterns: []string{
			"extension://",
			"chrome-extension://",
			"moz-extension://",
			"safari-extension://",
			"resource://",
			"about:blank",
		},
		IrrelevantErrors: []string{
			"Script error.",
			"ResizeObserver loop limit exceeded",
			"Non-Error promise rejection captured",
			"Network request failed",
			"Loading chunk",
			"ChunkLoadError",
			"Loading CSS chunk",
			"TypeError: Failed to fetch",
		},
		ThirdPartyDomains: []string{
			"google-analytics.com",
			"googletagmanager.com",
			"facebook.com",
			"twitter.com",
			"linkedin.com",
			"doubleclick.net",
			"adsystem.amazon",
		},
		NoiseURLs: []string{
			`\.css$`, `\.js$`, `\.png$`, `\.jpg$`, `\.gif$`,
			`favicon`, `analytics`, `tracking`,
		},
		SensitiveFields: []string{"password", "token", "card_number"},
		CriticalPaths: []string{
			"/api/auth",
			"/api/checkout",
			"/api/payment",
			"/api/user",
			"/api/profile",
			"/api/orders",
		},
	}
}

// Validate checks that every pattern compiles.
func (c *Config) Validate() error {
	for _, p := range c.BotPatterns {
		if _, err := regexp.Compile("(?i)" + p); err != nil {
			return fmt.Errorf("invalid bot pattern %q: %w", p, err)
		}
	}
	for _, p := range c.NoiseURLs {
		if _, err := regexp.Compile("(?i)" + p); err != nil {
			return fmt.Errorf("invalid noise url pattern %q: %w", p, err)
		}
	}
	return nil
}
