package registry

import "time"

// Priority ranks how important a domain is to the business.
type Priority string

// Domain priorities.
const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// MetricKind is the instrument type of a custom metric.
type MetricKind string

// Metric kinds.
const (
	KindCounter   MetricKind = "counter"
	KindHistogram MetricKind = "histogram"
	KindGauge     MetricKind = "gauge"
)

// Valid reports whether k is a known metric kind.
func (k MetricKind) Valid() bool {
	switch k {
	case KindCounter, KindHistogram, KindGauge:
		return true
	}
	return false
}

// BusinessImpact classifies what a custom metric says about the business.
type BusinessImpact string

// Business impacts.
const (
	ImpactRevenue     BusinessImpact = "revenue"
	ImpactEngagement  BusinessImpact = "engagement"
	ImpactPerformance BusinessImpact = "performance"
	ImpactReliability BusinessImpact = "reliability"
)

// Valid reports whether b is a known business impact.
func (b BusinessImpact) Valid() bool {
	switch b {
	case ImpactRevenue, ImpactEngagement, ImpactPerformance, ImpactReliability:
		return true
	}
	return false
}

// Domain is a business area with its own SLA and error budget.
type Domain struct {
	Name           string    `koanf:"name" json:"name"`
	Priority       Priority  `koanf:"priority" json:"priority"`
	SLATargetMS    int64     `koanf:"sla_target_ms" json:"sla_target_ms"`
	ErrorThreshold float64   `koanf:"error_threshold" json:"error_threshold"` // percent, 0-100
	Features       []Feature `koanf:"features" json:"features"`
}

// SLATarget returns the SLA target as a duration.
func (d *Domain) SLATarget() time.Duration {
	return time.Duration(d.SLATargetMS) * time.Millisecond
}

// Feature is a user-facing capability inside a domain.
type Feature struct {
	Name      string         `koanf:"name" json:"name"`
	Domain    string         `koanf:"domain" json:"domain"`
	Endpoints []string       `koanf:"endpoints" json:"endpoints"`
	Journeys  []Journey      `koanf:"journeys" json:"journeys"`
	Metrics   []CustomMetric `koanf:"metrics" json:"metrics"`
}

// Journey is an ordered series of steps a user takes to reach a goal.
type Journey struct {
	Name               string `koanf:"name" json:"name"`
	Steps              []Step `koanf:"steps" json:"steps"`
	CriticalPath       bool   `koanf:"critical_path" json:"critical_path"`
	ConversionTracking bool   `koanf:"conversion_tracking" json:"conversion_tracking"`
}

// Step is one stage of a journey.
type Step struct {
	Name               string `koanf:"name" json:"name"`
	Endpoint           string `koanf:"endpoint" json:"endpoint,omitempty"`
	Interaction        string `koanf:"interaction" json:"interaction,omitempty"`
	ExpectedDurationMS int64  `koanf:"expected_duration_ms" json:"expected_duration_ms"`
	Required           bool   `koanf:"required" json:"required"`
}

// ExpectedDuration returns the expected step duration.
func (s *Step) ExpectedDuration() time.Duration {
	return time.Duration(s.ExpectedDurationMS) * time.Millisecond
}

// CustomMetric is a business metric declared on a feature.
type CustomMetric struct {
	Name           string         `koanf:"name" json:"name"`
	Kind           MetricKind     `koanf:"kind" json:"kind"`
	Description    string         `koanf:"description" json:"description"`
	Labels         []string       `koanf:"labels" json:"labels"`
	BusinessImpact BusinessImpact `koanf:"business_impact" json:"business_impact"`
}
