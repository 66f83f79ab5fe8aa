package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestIsBot(t *testing.T) {
	f := Default()

	tests := []struct {
		name string
		ua   string
		want bool
	}{
		{"googlebot", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", true},
		{"headless chrome", "Mozilla/5.0 HeadlessChrome/120.0", true},
		{"generic crawler", "SomeCrawler/1.0", true},
		{"slack unfurler", "Slackbot-LinkExpanding 1.0", true},
		{"desktop firefox", "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0", false},
		{"mobile safari", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.IsBot(tt.ua))
		})
	}
}

func TestShouldTrackURL(t *testing.T) {
	f := Default()

	tests := []struct {
		name   string
		url    string
		origin string
		want   bool
	}{
		{"same origin api", "https://example.com/api/search?q=x", "example.com", true},
		{"relative path", "/api/cart", "example.com", true},
		{"origin with port", "http://localhost:3000/api/cart", "localhost:3000", true},
		{"origin with scheme", "https://example.com/api/cart", "https://example.com", true},
		{"static stylesheet", "https://example.com/app.css", "example.com", false},
		{"static script", "https://example.com/bundle.js", "example.com", false},
		{"favicon", "https://example.com/favicon.ico", "example.com", false},
		{"analytics beacon", "https://example.com/analytics/collect", "example.com", false},
		{"third party host", "https://www.google-analytics.com/collect", "example.com", false},
		{"cross origin", "https://api.other.com/v1/cart", "example.com", false},
		{"extension", "chrome-extension://abcdef/script", "example.com", false},
		{"data url", "data:image/png;base64,AAAA", "example.com", false},
		{"blob url", "blob:https://example.com/1234", "example.com", false},
		{"about blank", "about:blank", "example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.ShouldTrackURL(tt.url, tt.origin))
		})
	}
}

func TestShouldTrackURL_AllowedDomains(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.AllowedDomains = []string{"api.example.com"}
	f, err := New(cfg)
	require.NoError(t, err)

	assert.True(t, f.ShouldTrackURL("https://api.example.com/v1/cart", "example.com"))
	assert.False(t, f.ShouldTrackURL("https://cdn.example.com/v1/cart", "example.com"))
}

func TestIsRelevantError(t *testing.T) {
	f := Default()

	assert.False(t, f.IsRelevantError("Script error."))
	assert.False(t, f.IsRelevantError("resizeobserver loop limit exceeded"))
	assert.False(t, f.IsRelevantError("ChunkLoadError: Loading chunk 7 failed"))
	assert.True(t, f.IsRelevantError("TypeError: cannot read properties of undefined"))
	assert.True(t, f.IsRelevantError("payment declined"))
}

func TestIsRealUserSession(t *testing.T) {
	human := "Mozilla/5.0 (X11; Linux x86_64) Firefox/120.0"

	tests := []struct {
		name    string
		devMode bool
		signals Signals
		want    bool
	}{
		{
			name:    "bot is never real",
			signals: Signals{UserAgent: "Googlebot/2.1", ViewportWidth: 1280, ViewportHeight: 800, Clicked: true},
		},
		{
			name:    "tiny viewport",
			signals: Signals{UserAgent: human, ViewportWidth: 100, ViewportHeight: 100, Clicked: true},
		},
		{
			name:    "huge viewport",
			signals: Signals{UserAgent: human, ViewportWidth: 10000, ViewportHeight: 10000, Clicked: true},
		},
		{
			name:    "no interaction yet",
			signals: Signals{UserAgent: human, ViewportWidth: 1280, ViewportHeight: 800},
		},
		{
			name:    "scrolled",
			signals: Signals{UserAgent: human, ViewportWidth: 1280, ViewportHeight: 800, Scrolled: true},
			want:    true,
		},
		{
			name:    "dev mode skips interaction",
			devMode: true,
			signals: Signals{UserAgent: human, ViewportWidth: 1280, ViewportHeight: 800},
			want:    true,
		},
		{
			name:    "dev mode still rejects bots",
			devMode: true,
			signals: Signals{UserAgent: "HeadlessChrome", ViewportWidth: 1280, ViewportHeight: 800},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.DevMode = tt.devMode
			f, err := New(cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.IsRealUserSession(tt.signals))
		})
	}
}

func TestIsRealUserSession_BotsNeverQualify(t *testing.T) {
	f := Default()
	rapid.Check(t, func(t *rapid.T) {
		s := Signals{
			UserAgent:      rapid.StringMatching(`[A-Za-z/ .0-9]{0,20}(bot|crawler|spider|headless)[A-Za-z/ .0-9]{0,20}`).Draw(t, "ua"),
			ViewportWidth:  rapid.IntRange(0, 5000).Draw(t, "w"),
			ViewportHeight: rapid.IntRange(0, 5000).Draw(t, "h"),
			Clicked:        rapid.Bool().Draw(t, "clicked"),
			MouseMoved:     rapid.Bool().Draw(t, "moved"),
			Scrolled:       rapid.Bool().Draw(t, "scrolled"),
			Typed:          rapid.Bool().Draw(t, "typed"),
		}
		if !f.IsBot(s.UserAgent) {
			t.Fatalf("expected %q to be classified as a bot", s.UserAgent)
		}
		if f.IsRealUserSession(s) {
			t.Fatalf("bot session %+v classified as real", s)
		}
	})
}

func TestIsCriticalUserJourney(t *testing.T) {
	f := Default()
	assert.True(t, f.IsCriticalUserJourney("https://example.com/api/checkout/confirm"))
	assert.True(t, f.IsCriticalUserJourney("/api/auth/login"))
	assert.False(t, f.IsCriticalUserJourney("/api/search?q=shoes"))
}

func TestClassifyBusinessContext(t *testing.T) {
	assert.Equal(t, BusinessContext{"authentication", "critical"}, ClassifyBusinessContext("/api/auth/login"))
	assert.Equal(t, BusinessContext{"search", "high"}, ClassifyBusinessContext("/api/search?q=x"))
	assert.Equal(t, BusinessContext{"catalog", "medium"}, ClassifyBusinessContext("/api/products/42"))
	assert.Equal(t, BusinessContext{"general", "low"}, ClassifyBusinessContext("/about"))
}

func TestShouldTrackInteraction(t *testing.T) {
	assert.True(t, ShouldTrackInteraction(Element{Tag: "button"}))
	assert.True(t, ShouldTrackInteraction(Element{Tag: "A"}))
	assert.True(t, ShouldTrackInteraction(Element{Tag: "input", Type: "submit"}))
	assert.True(t, ShouldTrackInteraction(Element{Tag: "div", Tracked: true}))
	assert.True(t, ShouldTrackInteraction(Element{Tag: "span", Classes: []string{"card", "track-interaction"}}))
	assert.False(t, ShouldTrackInteraction(Element{Tag: "input", Type: "text"}))
	assert.False(t, ShouldTrackInteraction(Element{Tag: "div"}))
}

func TestNew_InvalidPattern(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.BotPatterns = append(cfg.BotPatterns, "(unclosed")
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid bot pattern")
}
