package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// clientIdleTTL is how long a client's token bucket outlives its last request.
const clientIdleTTL = 10 * time.Minute

// rateLimitMiddleware applies a token bucket per client address and answers
// 429 with Retry-After once it is empty. Health checks are never limited.
func rateLimitMiddleware(perSecond float64, burst int, metrics *HTTPMetrics) echo.MiddlewareFunc {
	if burst < 1 {
		burst = max(1, int(perSecond))
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     burst,
		ExpiresIn: clientIdleTTL,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health"
		},
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			metrics.rateLimited(c)
			c.Response().Header().Set("Retry-After", "1")
			return middleware.ErrRateLimitExceeded
		},
	})
}
