package http

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/fyrsmithlabs/domainscope/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/domainscope/internal/http"

// HTTPMetrics records the API's own traffic, separately from the business
// telemetry it produces on behalf of sessions.
type HTTPMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	inflight metric.Int64UpDownCounter
	limited  metric.Int64Counter
}

// NewHTTPMetrics creates the instruments on meter, or on the global meter
// provider when meter is nil. Instruments that fail to register are skipped.
func NewHTTPMetrics(meter metric.Meter, logger *logging.Logger) *HTTPMetrics {
	if meter == nil {
		meter = otel.Meter(httpInstrumentationName)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	warn := func(name string, err error) {
		if err != nil {
			logger.Warn(context.Background(), "failed to create http instrument", zap.String("instrument", name), zap.Error(err))
		}
	}

	m := &HTTPMetrics{}
	var err error
	m.requests, err = meter.Int64Counter("domainscope.http.requests_total",
		metric.WithDescription("API requests by method, route and status"),
		metric.WithUnit("{request}"))
	warn("requests_total", err)

	m.duration, err = meter.Float64Histogram("domainscope.http.request_duration_seconds",
		metric.WithDescription("API request latency by method, route and status"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10))
	warn("request_duration_seconds", err)

	m.inflight, err = meter.Int64UpDownCounter("domainscope.http.active_requests",
		metric.WithDescription("Requests currently being served"),
		metric.WithUnit("{request}"))
	warn("active_requests", err)

	m.limited, err = meter.Int64Counter("domainscope.http.rate_limited_total",
		metric.WithDescription("Requests rejected by the per-client rate limit"),
		metric.WithUnit("{request}"))
	warn("rate_limited_total", err)
	return m
}

// MetricsMiddleware returns an Echo middleware that records request metrics.
// Routes are labelled by pattern so session ids never become label values.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()
			if m.inflight != nil {
				m.inflight.Add(ctx, 1)
				defer m.inflight.Add(ctx, -1)
			}

			err := next(c)

			status := c.Response().Status
			var he *echo.HTTPError
			if err != nil && errors.As(err, &he) {
				status = he.Code
			}
			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("route", routeLabel(c.Path())),
				attribute.String("status", strconv.Itoa(status)),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			return err
		}
	}
}

func (m *HTTPMetrics) rateLimited(c echo.Context) {
	if m != nil && m.limited != nil {
		m.limited.Add(c.Request().Context(), 1,
			metric.WithAttributes(attribute.String("route", routeLabel(c.Path()))))
	}
}

func routeLabel(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}
