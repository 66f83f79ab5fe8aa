// Package http exposes the session API of domainscope over HTTP.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/domainscope/internal/filter"
	"github.com/fyrsmithlabs/domainscope/internal/logging"
	"github.com/fyrsmithlabs/domainscope/internal/registry"
	"github.com/fyrsmithlabs/domainscope/internal/session"
	"github.com/fyrsmithlabs/domainscope/internal/simulate"
	"github.com/fyrsmithlabs/domainscope/internal/telemetry"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Server provides the HTTP endpoints.
type Server struct {
	echo      *echo.Echo
	sessions  *session.Manager
	filter    *filter.Filter
	simulator *simulate.Simulator
	registry  *registry.Registry
	telemetry Telemetry
	logger    *logging.Logger
	config    *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RateLimit is the sustained requests per second allowed per client.
	// Zero disables limiting.
	RateLimit float64
	RateBurst int
}

// Telemetry is the export pipeline behind the sessions' spans.
type Telemetry interface {
	Health() telemetry.HealthStatus
	ForceFlush(ctx context.Context) error
}

// Deps are the components the handlers drive. Metrics and Telemetry are
// optional.
type Deps struct {
	Sessions  *session.Manager
	Filter    *filter.Filter
	Simulator *simulate.Simulator
	Registry  *registry.Registry
	Metrics   *HTTPMetrics
	Telemetry Telemetry
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, logger *logging.Logger, cfg *Config) (*Server, error) {
	if deps.Sessions == nil {
		return nil, errors.New("session manager cannot be nil")
	}
	if deps.Filter == nil || deps.Simulator == nil || deps.Registry == nil {
		return nil, errors.New("filter, simulator and registry are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9191,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if deps.Metrics != nil {
		e.Use(deps.Metrics.MetricsMiddleware())
	}
	e.Use(requestLogger(logger))
	if cfg.RateLimit > 0 {
		e.Use(rateLimitMiddleware(cfg.RateLimit, cfg.RateBurst, deps.Metrics))
	}

	s := &Server{
		echo:      e,
		sessions:  deps.Sessions,
		filter:    deps.Filter,
		simulator: deps.Simulator,
		registry:  deps.Registry,
		telemetry: deps.Telemetry,
		logger:    logger,
		config:    cfg,
	}
	s.registerRoutes()
	return s, nil
}

// Echo returns the underlying router so callers can mount extra handlers.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/catalog", s.handleCatalog)
	v1.POST("/classify", s.handleClassify)
	v1.POST("/validate/:schema", s.handleValidate)

	sessions := v1.Group("/sessions")
	sessions.POST("", s.handleStartSession)
	sessions.GET("/:id", s.handleGetSession)
	sessions.DELETE("/:id", s.handleEndSession)
	sessions.POST("/:id/signals", s.handleObserve)
	sessions.POST("/:id/page-views", s.handlePageView)
	sessions.POST("/:id/api-calls", s.handleAPICall)
	sessions.POST("/:id/journeys", s.handleJourneyStep)
	sessions.POST("/:id/interactions", s.handleInteraction)
	sessions.POST("/:id/errors", s.handleError)
	sessions.POST("/:id/business-metrics", s.handleBusinessMetric)
	sessions.POST("/:id/payloads/:schema", s.handleSessionPayload)
	sessions.GET("/:id/snapshot", s.handleSnapshot)
	sessions.GET("/:id/alerts", s.handleAlerts)
	sessions.POST("/:id/reset", s.handleReset)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// HealthResponse is the response body for GET /health. Status is
// "degraded" while the telemetry pipeline runs on fallback providers.
type HealthResponse struct {
	Status    string                  `json:"status"`
	Sessions  int                     `json:"sessions"`
	Telemetry *telemetry.HealthStatus `json:"telemetry,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Sessions: s.sessions.Len()}
	if s.telemetry != nil {
		health := s.telemetry.Health()
		resp.Telemetry = &health
		if health.Degraded {
			resp.Status = "degraded"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// requestLogger puts the request and session ids into the request context
// and logs every request once its status is known.
func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
			ctx = logging.WithSessionID(ctx, c.Param("id"))
			c.SetRequest(req.WithContext(ctx))

			if err := next(c); err != nil {
				// Resolve the status before logging it.
				c.Error(err)
			}

			logger.Info(ctx, "http request",
				zap.String("method", req.Method),
				zap.String("route", routeLabel(c.Path())),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)))
			return nil
		}
	}
}
