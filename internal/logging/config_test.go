package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Output.Stdout)
	assert.False(t, cfg.Output.OTEL)
	assert.Contains(t, cfg.Redaction.Fields, "card_number")
	assert.Equal(t, LevelSampling{Initial: 100, Thereafter: 10}, cfg.Sampling.Levels["info"])
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad format", func(c *Config) { c.Format = "text" }, "format"},
		{"no output", func(c *Config) { c.Output = OutputConfig{} }, "at least one output"},
		{"zero tick", func(c *Config) { c.Sampling.Tick = 0 }, "tick"},
		{"unknown level", func(c *Config) { c.Sampling.Levels["loud"] = LevelSampling{Initial: 1} }, `"loud"`},
		{"error level", func(c *Config) { c.Sampling.Levels["error"] = LevelSampling{Initial: 1} }, `"error"`},
		{"zero initial", func(c *Config) { c.Sampling.Levels["info"] = LevelSampling{} }, "initial"},
		{"bad pattern", func(c *Config) { c.Redaction.Patterns = []string{"("} }, "redaction pattern"},
		{"empty field", func(c *Config) { c.Fields["env"] = "" }, "constant field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestConfig_SamplingDisabledSkipsChecks(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false
	cfg.Sampling.Tick = 0
	assert.NoError(t, cfg.Validate())
}
