package http

import (
	"github.com/fyrsmithlabs/domainscope/internal/filter"
	"github.com/fyrsmithlabs/domainscope/internal/payload"
	"github.com/fyrsmithlabs/domainscope/internal/session"
)

// SignalsRequest is the request body for POST /api/v1/sessions/:id/signals.
type SignalsRequest struct {
	Signals []session.Signal `json:"signals"`
}

// PageViewRequest is the request body for POST /api/v1/sessions/:id/page-views.
type PageViewRequest struct {
	URL        string  `json:"url"`
	LoadTimeMS float64 `json:"load_time_ms"`
}

// APICallRequest is the request body for POST /api/v1/sessions/:id/api-calls.
// The call is executed against the simulated backend.
type APICallRequest struct {
	URL        string         `json:"url"`
	Method     string         `json:"method,omitempty"`
	Domain     string         `json:"domain,omitempty"`
	Feature    string         `json:"feature,omitempty"`
	Journey    string         `json:"journey,omitempty"`
	Step       string         `json:"step,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	TimeoutMS  int64          `json:"timeout_ms,omitempty"`
}

// APICallResponse reports how a call went.
type APICallResponse struct {
	Instrumented bool    `json:"instrumented"`
	Status       int     `json:"status"`
	DurationMS   float64 `json:"duration_ms"`
	SLAViolated  bool    `json:"sla_violated"`
	Error        string  `json:"error,omitempty"`
	ErrorType    string  `json:"error_type,omitempty"`
	Body         any     `json:"body,omitempty"`
}

// JourneyStepRequest is the request body for POST /api/v1/sessions/:id/journeys.
type JourneyStepRequest struct {
	Domain  string `json:"domain"`
	Journey string `json:"journey"`
	Step    string `json:"step"`
}

// JourneyStepResponse reports the outcome of a journey step.
type JourneyStepResponse struct {
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}

// InteractionRequest is the request body for POST /api/v1/sessions/:id/interactions.
type InteractionRequest struct {
	Kind    string         `json:"kind"`
	Element filter.Element `json:"element"`
}

// InteractionResponse says whether the interaction reached telemetry.
type InteractionResponse struct {
	Tracked bool `json:"tracked"`
}

// ErrorRequest is the request body for POST /api/v1/sessions/:id/errors.
type ErrorRequest struct {
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
}

// BusinessMetricRequest is the request body for
// POST /api/v1/sessions/:id/business-metrics.
type BusinessMetricRequest struct {
	Domain string            `json:"domain"`
	Name   string            `json:"name"`
	Value  float64           `json:"value"`
	Labels map[string]string `json:"labels,omitempty"`
}

// BusinessMetricResponse says whether the value was recorded.
type BusinessMetricResponse struct {
	Recorded bool `json:"recorded"`
}

// PayloadRequest is the request body for payload validation.
type PayloadRequest struct {
	Endpoint string         `json:"endpoint,omitempty"`
	Data     map[string]any `json:"data"`
}

// PayloadResponse is the validated payload.
type PayloadResponse struct {
	Valid      bool                `json:"valid"`
	Data       map[string]any      `json:"data"`
	Violations []payload.Violation `json:"violations,omitempty"`
	Summary    string              `json:"summary,omitempty"`
}

// ClassifyRequest is the request body for POST /api/v1/classify. Every
// field is optional; only the classifications whose input is present are
// computed.
type ClassifyRequest struct {
	URL       string `json:"url,omitempty"`
	Origin    string `json:"origin,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClassifyResponse holds the traffic classifications.
type ClassifyResponse struct {
	Bot             *bool                   `json:"bot,omitempty"`
	TrackURL        *bool                   `json:"track_url,omitempty"`
	Extension       *bool                   `json:"extension,omitempty"`
	CriticalJourney *bool                   `json:"critical_journey,omitempty"`
	Business        *filter.BusinessContext `json:"business_context,omitempty"`
	RelevantError   *bool                   `json:"relevant_error,omitempty"`
}
