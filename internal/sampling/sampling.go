// Package sampling decides which telemetry emissions are retained.
//
// The decision is a pure function of the event and the static Config:
// calling Decide twice with the same inputs always yields the same answer.
package sampling

import (
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Config holds the retention rates, each in [0, 1].
type Config struct {
	DefaultRate      float64            `koanf:"default_rate"`
	DomainRates      map[string]float64 `koanf:"domain_rates"`
	CriticalPathRate float64            `koanf:"critical_path_rate"`
	ErrorRate        float64            `koanf:"error_rate"`
}

// NewDefaultConfig returns the default rates: everything from critical
// domains, errors and critical paths; 30% of content; 10% of the rest.
func NewDefaultConfig() *Config {
	return &Config{
		DefaultRate: 0.1,
		DomainRates: map[string]float64{
			"authentication": 1.0,
			"ecommerce":      1.0,
			"content":        0.3,
		},
		CriticalPathRate: 1.0,
		ErrorRate:        1.0,
	}
}

// Validate checks every rate is within [0, 1].
func (c *Config) Validate() error {
	if err := checkRate("default_rate", c.DefaultRate); err != nil {
		return err
	}
	if err := checkRate("critical_path_rate", c.CriticalPathRate); err != nil {
		return err
	}
	if err := checkRate("error_rate", c.ErrorRate); err != nil {
		return err
	}
	for d, r := range c.DomainRates {
		if err := checkRate("domain_rates."+d, r); err != nil {
			return err
		}
	}
	return nil
}

// Normalize fills unset error and critical path rates with 1.0 so errors and
// critical paths are always retained unless configured otherwise.
func (c *Config) Normalize() {
	if c.ErrorRate == 0 {
		c.ErrorRate = 1.0
	}
	if c.CriticalPathRate == 0 {
		c.CriticalPathRate = 1.0
	}
}

func checkRate(name string, r float64) error {
	if math.IsNaN(r) || r < 0 || r > 1 {
		return fmt.Errorf("sampling.%s must be between 0 and 1, got %v", name, r)
	}
	return nil
}

// Event carries the attributes a sampling decision depends on.
type Event struct {
	Domain       string
	CriticalPath bool
	Error        bool
	// Key identifies the emission; equal keys get equal decisions.
	Key string
}

// Reason names which rule produced a rate.
type Reason string

// Decision reasons, in precedence order.
const (
	ReasonError        Reason = "error"
	ReasonCriticalPath Reason = "critical_path"
	ReasonDomain       Reason = "domain"
	ReasonDefault      Reason = "default"
)

// Decision is the outcome of sampling one event.
type Decision struct {
	Rate   float64
	Reason Reason
	Retain bool
}

// Rate returns the applicable rate and the rule it came from.
// Precedence: error, then critical path, then domain rate, then default.
func (c *Config) Rate(e Event) (float64, Reason) {
	switch {
	case e.Error:
		return c.ErrorRate, ReasonError
	case e.CriticalPath:
		return c.CriticalPathRate, ReasonCriticalPath
	}
	if r, ok := c.DomainRates[e.Domain]; ok {
		return r, ReasonDomain
	}
	return c.DefaultRate, ReasonDefault
}

// Decide returns whether e is retained.
func (c *Config) Decide(e Event) Decision {
	rate, reason := c.Rate(e)
	return Decision{
		Rate:   rate,
		Reason: reason,
		Retain: retain(e.Key, rate),
	}
}

func retain(key string, rate float64) bool {
	switch {
	case rate >= 1:
		return true
	case rate <= 0:
		return false
	}
	// Map the hash uniformly onto [0, 1).
	return float64(xxhash.Sum64String(key)>>11)/float64(1<<53) < rate
}
