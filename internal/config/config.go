// Package config provides configuration loading for domainscope.
//
// Configuration is read from a YAML file, then overridden by DOMAINSCOPE_*
// environment variables. The instrumentation catalog (domains, sampling,
// filtering, alerting) is read once at startup and never changes afterwards.
package config

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/domainscope/internal/filter"
	"github.com/fyrsmithlabs/domainscope/internal/monitor"
	"github.com/fyrsmithlabs/domainscope/internal/registry"
	"github.com/fyrsmithlabs/domainscope/internal/sampling"
	"github.com/knadh/koanf/v2"
)

// Config holds the complete domainscope configuration.
//
// Observability and logging sections are owned by their packages; read them
// with Section.
type Config struct {
	Server          ServerConfig          `koanf:"server"`
	Session         SessionConfig         `koanf:"session"`
	Forwarding      ForwardingConfig      `koanf:"forwarding"`
	Instrumentation InstrumentationConfig `koanf:"instrumentation"`

	k *koanf.Koanf
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	RateLimit       float64  `koanf:"rate_limit"` // requests per second per client, 0 disables
	RateBurst       int      `koanf:"rate_burst"`
}

// SessionConfig controls session lifetime.
type SessionConfig struct {
	IdleTimeout      Duration `koanf:"idle_timeout"`
	MaxSessions      int      `koanf:"max_sessions"`
	MaxInstrumentors int      `koanf:"max_instrumentors"`
	DefaultOrigin    string   `koanf:"default_origin"`
}

// ForwardingConfig controls publishing of session snapshots to NATS.
type ForwardingConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
	Token         Secret `koanf:"token"`
}

// InstrumentationConfig is the business catalog plus the policies applied
// to traffic.
type InstrumentationConfig struct {
	Domains   []registry.Domain      `koanf:"domains"`
	Sampling  sampling.Config        `koanf:"sampling"`
	Filtering filter.Config          `koanf:"filtering"`
	Alerting  monitor.AlertingConfig `koanf:"alerting"`
}

// Section unmarshals the named configuration section into out. Fields absent
// from the loaded configuration keep the values out already holds.
func (c *Config) Section(path string, out any) error {
	if c.k == nil {
		return nil
	}
	if err := c.k.Unmarshal(path, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return nil
}

// Registry builds the domain registry from the configured catalog.
func (c *Config) Registry() (*registry.Registry, error) {
	return registry.New(c.Instrumentation.Domains)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst <= 0 {
		errs = append(errs, errors.New("server.rate_burst must be positive when rate limiting"))
	}

	if c.Session.IdleTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("session.idle_timeout must be positive"))
	}
	if c.Session.MaxSessions < 0 {
		errs = append(errs, errors.New("session.max_sessions must not be negative"))
	}

	if c.Forwarding.Enabled && c.Forwarding.URL == "" {
		errs = append(errs, errors.New("forwarding.url is required when forwarding is enabled"))
	}

	if _, err := c.Registry(); err != nil {
		errs = append(errs, fmt.Errorf("instrumentation.domains: %w", err))
	}
	if err := c.Instrumentation.Sampling.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("instrumentation: %w", err))
	}
	if err := c.Instrumentation.Filtering.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("instrumentation.filtering: %w", err))
	}
	if err := c.Instrumentation.Alerting.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("instrumentation.alerting: %w", err))
	}

	return errors.Join(errs...)
}
