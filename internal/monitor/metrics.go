package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsTotal counts activities recorded by every store in the process.
	// Labels: kind (page_view, api_call, user_interaction, error, filtered, session_start)
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "domainscope",
			Subsystem: "monitor",
			Name:      "events_total",
			Help:      "Total number of recorded activities by kind",
		},
		[]string{"kind"},
	)

	// APIResponseTime tracks API call durations reported to the stores.
	APIResponseTime = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "domainscope",
			Subsystem: "monitor",
			Name:      "api_response_ms",
			Help:      "API call response time in milliseconds",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2000, 3000, 5000, 10000},
		},
	)

	// AlertsFiring counts alert evaluations that fired.
	// Labels: kind (error_rate, latency, availability, business_metric)
	AlertsFiring = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "domainscope",
			Subsystem: "monitor",
			Name:      "alerts_firing_total",
			Help:      "Total number of alerts raised by evaluation",
		},
		[]string{"kind"},
	)
)
