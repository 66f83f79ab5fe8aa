package monitor

import (
	"errors"
	"fmt"
	"sort"
)

// AlertingConfig holds the thresholds snapshots are evaluated against.
type AlertingConfig struct {
	// ErrorRateThreshold is the maximum tracked-error percentage.
	ErrorRateThreshold float64 `koanf:"error_rate_threshold" json:"error_rate_threshold"`
	// LatencyThresholdMS is the maximum average API response time.
	LatencyThresholdMS float64 `koanf:"latency_threshold_ms" json:"latency_threshold_ms"`
	// AvailabilityThreshold is the minimum API success percentage.
	AvailabilityThreshold float64 `koanf:"availability_threshold" json:"availability_threshold"`
	// BusinessMetricThresholds maps a business metric to the value it must
	// not exceed.
	BusinessMetricThresholds map[string]float64 `koanf:"business_metric_thresholds" json:"business_metric_thresholds,omitempty"`
}

// NewDefaultAlertingConfig returns the default thresholds.
func NewDefaultAlertingConfig() *AlertingConfig {
	return &AlertingConfig{
		ErrorRateThreshold:    5.0,
		LatencyThresholdMS:    5000,
		AvailabilityThreshold: 99.9,
		BusinessMetricThresholds: map[string]float64{
			"cart_abandonment_rate": 70,
		},
	}
}

// Validate checks thresholds are in range.
func (c *AlertingConfig) Validate() error {
	var errs []error
	if c.ErrorRateThreshold < 0 || c.ErrorRateThreshold > 100 {
		errs = append(errs, fmt.Errorf("error_rate_threshold must be between 0 and 100, got %v", c.ErrorRateThreshold))
	}
	if c.LatencyThresholdMS < 0 {
		errs = append(errs, fmt.Errorf("latency_threshold_ms must not be negative, got %v", c.LatencyThresholdMS))
	}
	if c.AvailabilityThreshold < 0 || c.AvailabilityThreshold > 100 {
		errs = append(errs, fmt.Errorf("availability_threshold must be between 0 and 100, got %v", c.AvailabilityThreshold))
	}
	return errors.Join(errs...)
}

// AlertKind names the check that raised an alert.
type AlertKind string

const (
	AlertErrorRate      AlertKind = "error_rate"
	AlertLatency        AlertKind = "latency"
	AlertAvailability   AlertKind = "availability"
	AlertBusinessMetric AlertKind = "business_metric"
)

// Alert is a threshold breach found in a snapshot.
type Alert struct {
	Kind      AlertKind `json:"kind"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Message   string    `json:"message"`
}

// EvaluateAlerts checks a snapshot against cfg. A zero threshold disables
// its check. Business metric alerts are ordered by metric name.
func EvaluateAlerts(snap Snapshot, cfg AlertingConfig) []Alert {
	var alerts []Alert

	if cfg.ErrorRateThreshold > 0 && snap.Metrics.TotalTrackedEvents > 0 {
		if rate := snap.Metrics.ErrorRate(); rate > cfg.ErrorRateThreshold {
			alerts = append(alerts, Alert{
				Kind:      AlertErrorRate,
				Metric:    "error_rate",
				Value:     rate,
				Threshold: cfg.ErrorRateThreshold,
				Message:   fmt.Sprintf("error rate %s exceeds %s", FormatPercentage(rate), FormatPercentage(cfg.ErrorRateThreshold)),
			})
		}
	}

	if cfg.LatencyThresholdMS > 0 {
		if avg := snap.Performance.AvgAPIResponseMS; avg > cfg.LatencyThresholdMS {
			alerts = append(alerts, Alert{
				Kind:      AlertLatency,
				Metric:    "avg_api_response_ms",
				Value:     avg,
				Threshold: cfg.LatencyThresholdMS,
				Message:   fmt.Sprintf("average API response %s exceeds %s", FormatLatency(avg), FormatLatency(cfg.LatencyThresholdMS)),
			})
		}
	}

	if cfg.AvailabilityThreshold > 0 && snap.Metrics.APICalls > 0 {
		if avail := snap.Metrics.Availability(); avail < cfg.AvailabilityThreshold {
			alerts = append(alerts, Alert{
				Kind:      AlertAvailability,
				Metric:    "availability",
				Value:     avail,
				Threshold: cfg.AvailabilityThreshold,
				Message:   fmt.Sprintf("availability %s below %s", FormatPercentage(avail), FormatPercentage(cfg.AvailabilityThreshold)),
			})
		}
	}

	names := make([]string, 0, len(cfg.BusinessMetricThresholds))
	for name := range cfg.BusinessMetricThresholds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value, ok := snap.Business[name]
		threshold := cfg.BusinessMetricThresholds[name]
		if !ok || value <= threshold {
			continue
		}
		alerts = append(alerts, Alert{
			Kind:      AlertBusinessMetric,
			Metric:    name,
			Value:     value,
			Threshold: threshold,
			Message:   fmt.Sprintf("%s at %.2f exceeds %.2f", name, value, threshold),
		})
	}

	for _, a := range alerts {
		AlertsFiring.WithLabelValues(string(a.Kind)).Inc()
	}
	return alerts
}
