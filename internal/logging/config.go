package logging

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/fyrsmithlabs/domainscope/internal/config"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level     zapcore.Level     `koanf:"level"`
	Format    string            `koanf:"format"`
	Output    OutputConfig      `koanf:"output"`
	Sampling  SamplingConfig    `koanf:"sampling"`
	Caller    bool              `koanf:"caller"`
	Fields    map[string]string `koanf:"fields"`
	Redaction RedactionConfig   `koanf:"redaction"`
}

// OutputConfig selects the log sinks.
type OutputConfig struct {
	Stdout bool `koanf:"stdout"`
	OTEL   bool `koanf:"otel"`
}

// SamplingConfig thins repeated entries below error level. Levels are keyed
// by name ("debug", "info", "warn"); a level without an entry is kept whole.
type SamplingConfig struct {
	Enabled bool                     `koanf:"enabled"`
	Tick    config.Duration          `koanf:"tick"`
	Levels  map[string]LevelSampling `koanf:"levels"`
}

// LevelSampling keeps the first Initial entries with the same message in
// each tick, then every Thereafter-th. Thereafter zero drops the rest.
type LevelSampling struct {
	Initial    int `koanf:"initial"`
	Thereafter int `koanf:"thereafter"`
}

// RedactionConfig masks sensitive values. Fields match keys
// case-insensitively, including the last segment of dotted keys such as
// "payload.password". Patterns match string values.
type RedactionConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Fields   []string `koanf:"fields"`
	Patterns []string `koanf:"patterns"`
}

// NewDefaultConfig returns the production defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputConfig{Stdout: true},
		Sampling: SamplingConfig{
			Enabled: true,
			Tick:    config.Duration(time.Second),
			Levels: map[string]LevelSampling{
				"debug": {Initial: 10},
				"info":  {Initial: 100, Thereafter: 10},
				"warn":  {Initial: 100, Thereafter: 100},
			},
		},
		Caller: true,
		Fields: map[string]string{"service": "domainscope"},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields: []string{
				"password", "secret", "token", "api_key", "authorization",
				"card_number", "cvv",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`\b(?:\d[ -]?){13,16}\b`,
			},
		},
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	var errs []error
	if c.Format != "json" && c.Format != "console" {
		errs = append(errs, fmt.Errorf("format must be 'json' or 'console', got %q", c.Format))
	}
	if !c.Output.Stdout && !c.Output.OTEL {
		errs = append(errs, errors.New("at least one output must be enabled (stdout or otel)"))
	}
	if c.Sampling.Enabled {
		if c.Sampling.Tick.Duration() <= 0 {
			errs = append(errs, errors.New("sampling tick must be positive"))
		}
		for name, ls := range c.Sampling.Levels {
			lvl, err := zapcore.ParseLevel(name)
			if err != nil || lvl >= zapcore.ErrorLevel {
				errs = append(errs, fmt.Errorf("sampling level %q must be debug, info or warn", name))
			}
			if ls.Initial < 1 || ls.Thereafter < 0 {
				errs = append(errs, fmt.Errorf("sampling level %q needs initial >= 1 and thereafter >= 0", name))
			}
		}
	}
	if c.Redaction.Enabled {
		for _, p := range c.Redaction.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				errs = append(errs, fmt.Errorf("invalid redaction pattern %q: %w", p, err))
			}
		}
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			errs = append(errs, fmt.Errorf("constant field %q must have a key and a value", k))
		}
	}
	return errors.Join(errs...)
}
