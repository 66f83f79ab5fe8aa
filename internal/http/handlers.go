package http

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/fyrsmithlabs/domainscope/internal/filter"
	"github.com/fyrsmithlabs/domainscope/internal/instrument"
	"github.com/fyrsmithlabs/domainscope/internal/monitor"
	"github.com/fyrsmithlabs/domainscope/internal/payload"
	"github.com/fyrsmithlabs/domainscope/internal/registry"
	"github.com/fyrsmithlabs/domainscope/internal/session"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// externalDomain stands in for calls the catalog does not know about.
var externalDomain = &registry.Domain{Name: "external", Priority: registry.PriorityLow}

func (s *Server) handleStartSession(c echo.Context) error {
	var req session.StartRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid session request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserAgent == "" {
		req.UserAgent = c.Request().UserAgent()
	}

	info, err := s.sessions.Start(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, info)
}

func (s *Server) handleGetSession(c echo.Context) error {
	info, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleEndSession(c echo.Context) error {
	ctx := c.Request().Context()
	snap, err := s.sessions.End(ctx, c.Param("id"))
	if err != nil {
		if !errors.Is(err, session.ErrPublish) {
			return s.apiError(c, err)
		}
		s.logger.Warn(ctx, "session ended without forwarding", zap.Error(err))
	}
	if s.telemetry != nil {
		if err := s.telemetry.ForceFlush(ctx); err != nil {
			s.logger.Warn(ctx, "failed to flush session telemetry", zap.Error(err))
		}
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleObserve(c echo.Context) error {
	var req SignalsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	for _, sig := range req.Signals {
		if !sig.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown signal "+string(sig))
		}
	}
	info, err := s.sessions.Observe(c.Param("id"), req.Signals...)
	if err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handlePageView(c echo.Context) error {
	var req PageViewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.URL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url field is required")
	}
	loadTime := time.Duration(req.LoadTimeMS * float64(time.Millisecond))
	if err := s.sessions.TrackPageView(c.Request().Context(), c.Param("id"), req.URL, loadTime); err != nil {
		return s.apiError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleAPICall(c echo.Context) error {
	var req APICallRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.URL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url field is required")
	}

	call := s.simulator.Call(s.simulatedDomain(req.Domain, req.URL))
	res, err := s.sessions.TrackAPICall(c.Request().Context(), c.Param("id"), session.APICall{
		URL:        req.URL,
		Method:     req.Method,
		Domain:     req.Domain,
		Feature:    req.Feature,
		Journey:    req.Journey,
		Step:       req.Step,
		Attributes: req.Attributes,
		Timeout:    time.Duration(req.TimeoutMS) * time.Millisecond,
	}, call)
	if isRequestError(err) {
		return s.apiError(c, err)
	}

	resp := APICallResponse{
		Instrumented: !res.Skipped,
		Status:       res.Response.Status,
		DurationMS:   float64(res.Duration) / float64(time.Millisecond),
		SLAViolated:  res.SLAViolated,
		Body:         res.Response.Body,
	}
	if err != nil {
		resp.Error = err.Error()
		resp.ErrorType = instrument.ErrorKind(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleJourneyStep(c echo.Context) error {
	var req JourneyStepRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Domain == "" || req.Journey == "" || req.Step == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "domain, journey and step are required")
	}

	d, ok := s.registry.FindDomain(req.Domain)
	if !ok {
		d = externalDomain
	}
	err := s.sessions.TrackJourneyStep(c.Request().Context(), c.Param("id"), req.Domain, req.Journey, req.Step, s.simulator.Step(d))
	if isRequestError(err) {
		return s.apiError(c, err)
	}
	resp := JourneyStepResponse{Succeeded: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleInteraction(c echo.Context) error {
	var req InteractionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Kind == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "kind field is required")
	}
	tracked, err := s.sessions.TrackInteraction(c.Request().Context(), c.Param("id"), req.Kind, req.Element)
	if err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, InteractionResponse{Tracked: tracked})
}

func (s *Server) handleError(c echo.Context) error {
	var req ErrorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message field is required")
	}
	source := monitor.ErrorSource(req.Source)
	switch source {
	case "":
		source = monitor.SourceApplication
	case monitor.SourceApplication, monitor.SourceNetwork, monitor.SourceUserAction:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown error source "+req.Source)
	}
	if err := s.sessions.TrackError(c.Request().Context(), c.Param("id"), req.Message, source); err != nil {
		return s.apiError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleBusinessMetric(c echo.Context) error {
	var req BusinessMetricRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Domain == "" || req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "domain and name are required")
	}
	recorded, err := s.sessions.RecordBusinessMetric(c.Request().Context(), c.Param("id"), req.Domain, req.Name, req.Value, req.Labels)
	if err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, BusinessMetricResponse{Recorded: recorded})
}

func (s *Server) handleSessionPayload(c echo.Context) error {
	var req PayloadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := s.sessions.ValidatePayload(c.Request().Context(), c.Param("id"), c.Param("schema"), req.Endpoint, req.Data)
	if err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, payloadResponse(res))
}

func (s *Server) handleValidate(c echo.Context) error {
	schema, ok := payload.Lookup(c.Param("schema"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown payload schema "+c.Param("schema"))
	}
	var req PayloadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.JSON(http.StatusOK, payloadResponse(payload.Validate(req.Data, schema)))
}

func (s *Server) handleSnapshot(c echo.Context) error {
	snap, err := s.sessions.Snapshot(c.Param("id"))
	if err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleAlerts(c echo.Context) error {
	alerts, err := s.sessions.Alerts(c.Param("id"))
	if err != nil {
		return s.apiError(c, err)
	}
	if alerts == nil {
		alerts = []monitor.Alert{}
	}
	return c.JSON(http.StatusOK, alerts)
}

func (s *Server) handleReset(c echo.Context) error {
	if err := s.sessions.Reset(c.Param("id")); err != nil {
		return s.apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleCatalog(c echo.Context) error {
	names := s.registry.Domains()
	domains := make([]registry.Domain, 0, len(names))
	for _, name := range names {
		if d, ok := s.registry.FindDomain(name); ok {
			domains = append(domains, *d)
		}
	}
	return c.JSON(http.StatusOK, domains)
}

func (s *Server) handleClassify(c echo.Context) error {
	var req ClassifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var resp ClassifyResponse
	if req.UserAgent != "" {
		resp.Bot = ptr(s.filter.IsBot(req.UserAgent))
	}
	if req.URL != "" {
		resp.TrackURL = ptr(s.filter.ShouldTrackURL(req.URL, req.Origin))
		resp.Extension = ptr(s.filter.IsExtensionRelated(req.URL))
		resp.CriticalJourney = ptr(s.filter.IsCriticalUserJourney(req.URL))
		bc := filter.ClassifyBusinessContext(req.URL)
		resp.Business = &bc
	}
	if req.Message != "" {
		resp.RelevantError = ptr(s.filter.IsRelevantError(req.Message))
	}
	return c.JSON(http.StatusOK, resp)
}

// simulatedDomain picks the domain whose latency profile a simulated call
// follows.
func (s *Server) simulatedDomain(name, rawURL string) *registry.Domain {
	if name != "" {
		if d, ok := s.registry.FindDomain(name); ok {
			return d
		}
		return externalDomain
	}
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	if d, _, ok := s.registry.ResolveEndpoint(path); ok {
		return d
	}
	return externalDomain
}

// apiError maps domain errors to HTTP errors.
func (s *Server) apiError(c echo.Context, err error) error {
	var cfgErr *instrument.ConfigurationError
	switch {
	case errors.Is(err, session.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrUnknownSchema):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &cfgErr):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(c.Request().Context(), "request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// isRequestError reports whether err rejects the request itself rather than
// being the outcome of a tracked call.
func isRequestError(err error) bool {
	var cfgErr *instrument.ConfigurationError
	return errors.Is(err, session.ErrNotFound) || errors.As(err, &cfgErr)
}

func payloadResponse(res payload.Result) PayloadResponse {
	return PayloadResponse{
		Valid:      res.Valid(),
		Data:       res.Data,
		Violations: res.Violations,
		Summary:    res.Summary(),
	}
}

func ptr[T any](v T) *T { return &v }
