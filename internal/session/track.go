package session

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/domainscope/internal/filter"
	"github.com/fyrsmithlabs/domainscope/internal/instrument"
	"github.com/fyrsmithlabs/domainscope/internal/logging"
	"github.com/fyrsmithlabs/domainscope/internal/monitor"
	"github.com/fyrsmithlabs/domainscope/internal/payload"
	"go.uber.org/zap"
)

// APICall describes an API call made by a session.
type APICall struct {
	URL    string
	Method string
	// Domain and Feature pin the call to the catalog. When empty they are
	// resolved from the URL path.
	Domain     string
	Feature    string
	Journey    string
	Step       string
	Attributes map[string]any
	Timeout    time.Duration
}

// TrackPageView records a page view.
func (m *Manager) TrackPageView(_ context.Context, id, pageURL string, loadTime time.Duration) error {
	s, err := m.session(id)
	if err != nil {
		return err
	}
	if !m.filter.ShouldTrackURL(pageURL, s.origin) {
		s.store.TrackFiltered("Page view filtered: " + pageURL)
		return nil
	}
	s.store.TrackPageView(pageURL, loadTime)
	return nil
}

// TrackAPICall runs call and records it.
//
// The call always runs. It is instrumented only when the URL is first-party,
// the session belongs to a real user and the URL maps to a catalog feature;
// otherwise the result is marked Skipped. The error returned is the call's
// own error. An unknown session yields ErrNotFound and a domain missing
// from the catalog a *instrument.ConfigurationError; call does not run in
// either case.
func (m *Manager) TrackAPICall(ctx context.Context, id string, req APICall, call instrument.Call) (instrument.APICallResult, error) {
	s, err := m.session(id)
	if err != nil {
		return instrument.APICallResult{}, err
	}
	if req.Method == "" {
		req.Method = "GET"
	}

	if !m.filter.ShouldTrackURL(req.URL, s.origin) {
		s.store.TrackFiltered(fmt.Sprintf("API call filtered: %s %s", req.Method, req.URL))
		return m.runUninstrumented(ctx, call)
	}
	if !s.store.TelemetryEnabled() {
		res, err := m.runUninstrumented(ctx, call)
		s.store.TrackAPICall(req.URL, req.Method, res.Duration, res.Response.Status)
		return res, err
	}

	domain, feature, ok := m.resolve(req)
	if !ok {
		m.logger.Warn(logging.WithSessionID(ctx, id), "API call outside the catalog, not instrumented",
			zap.String("url", req.URL))
		res, err := m.runUninstrumented(ctx, call)
		m.recordCall(ctx, s, req, res, err)
		return res, err
	}

	in, err := m.cache.Get(domain, s.user)
	if err != nil {
		return instrument.APICallResult{}, err
	}
	res, callErr := in.InstrumentAPICall(ctx, feature, req.URL, req.Method, call, instrument.APICallOptions{
		Journey:    req.Journey,
		Step:       req.Step,
		Attributes: req.Attributes,
		Timeout:    req.Timeout,
	})
	if !res.Skipped {
		m.recordCall(ctx, s, req, res, callErr)
	}
	return res, callErr
}

// TrackJourneyStep runs fn as a step of journey in domain. Sessions without
// a real user run the step untracked.
func (m *Manager) TrackJourneyStep(ctx context.Context, id, domain, journey, step string, fn instrument.StepFunc) error {
	s, err := m.session(id)
	if err != nil {
		return err
	}
	if !s.store.TelemetryEnabled() {
		s.store.TrackFiltered(fmt.Sprintf("Journey step blocked: %s/%s", journey, step))
		return fn(ctx)
	}

	in, err := m.cache.Get(domain, s.user)
	if err != nil {
		return err
	}
	stepErr := in.InstrumentUserJourney(ctx, journey, step, fn)
	s.store.TrackUserInteraction("journey_step", journey+"/"+step)
	if stepErr != nil {
		m.trackError(s, stepErr.Error(), monitor.SourceUserAction)
	}
	return stepErr
}

// TrackInteraction records a user interaction and reports whether it was
// tracked. The interaction also counts as a human-interaction signal.
func (m *Manager) TrackInteraction(ctx context.Context, id, kind string, el filter.Element) (bool, error) {
	s, err := m.session(id)
	if err != nil {
		return false, err
	}
	if sig, ok := signalForInteraction(kind); ok {
		m.observe(ctx, s, sig)
	}

	if !filter.ShouldTrackInteraction(el) {
		s.store.TrackFiltered(fmt.Sprintf("Interaction filtered: %s on %s", kind, el.Tag))
		return false, nil
	}
	s.store.TrackUserInteraction(kind, el.Tag)
	return s.store.TelemetryEnabled(), nil
}

// TrackError records an application error unless it is known noise.
func (m *Manager) TrackError(_ context.Context, id, message string, source monitor.ErrorSource) error {
	s, err := m.session(id)
	if err != nil {
		return err
	}
	m.trackError(s, message, source)
	return nil
}

// RecordBusinessMetric records a custom metric of domain for the session.
// It reports whether the value was recorded.
func (m *Manager) RecordBusinessMetric(ctx context.Context, id, domain, name string, value float64, labels map[string]string) (bool, error) {
	s, err := m.session(id)
	if err != nil {
		return false, err
	}
	if !s.store.TelemetryEnabled() {
		s.store.TrackFiltered("Business metric blocked: " + name)
		return false, nil
	}

	in, err := m.cache.Get(domain, s.user)
	if err != nil {
		return false, err
	}
	if !in.RecordBusinessMetric(ctx, name, value, labels) {
		return false, nil
	}
	s.store.RecordBusinessValue(name, value)
	return true, nil
}

// ValidatePayload checks raw against the named schema. Violations are
// counted in the schema_validation_errors metric of the session.
func (m *Manager) ValidatePayload(ctx context.Context, id, schemaName, endpoint string, raw map[string]any) (payload.Result, error) {
	schema, ok := payload.Lookup(schemaName)
	if !ok {
		return payload.Result{}, fmt.Errorf("%w: %s", ErrUnknownSchema, schemaName)
	}
	s, err := m.session(id)
	if err != nil {
		return payload.Result{}, err
	}

	res := payload.Validate(raw, schema)
	if !res.Valid() {
		m.logger.Warn(logging.WithSessionID(ctx, id), "payload failed schema validation",
			zap.String("schema", schemaName),
			zap.String("endpoint", endpoint),
			zap.String("violations", res.Summary()))
		m.recordHealth(ctx, s, "schema_validation_errors", float64(len(res.Violations)), map[string]string{
			"endpoint":    endpoint,
			"error_types": res.Summary(),
		})
	}
	return res, nil
}

func (m *Manager) runUninstrumented(ctx context.Context, call instrument.Call) (instrument.APICallResult, error) {
	start := m.clock.Now()
	resp, err := call(ctx)
	return instrument.APICallResult{
		Skipped:  true,
		Duration: m.clock.Now().Sub(start),
		Response: resp,
	}, err
}

// recordCall updates the store after a call and categorises failures.
func (m *Manager) recordCall(ctx context.Context, s *Session, req APICall, res instrument.APICallResult, callErr error) {
	s.store.TrackAPICall(req.URL, req.Method, res.Duration, res.Response.Status)
	if callErr == nil {
		return
	}

	ne := payload.CategorizeNetworkError(callErr, res.Response.Status)
	m.recordHealth(ctx, s, "network_errors", 1, map[string]string{
		"category":     string(ne.Category),
		"endpoint":     req.URL,
		"method":       req.Method,
		"status":       strconv.Itoa(res.Response.Status),
		"should_retry": strconv.FormatBool(ne.ShouldRetry),
	})
	m.trackError(s, callErr.Error(), monitor.SourceNetwork)
}

func (m *Manager) trackError(s *Session, message string, source monitor.ErrorSource) {
	if !m.filter.IsRelevantError(message) {
		s.store.TrackFiltered("Error filtered: " + message)
		return
	}
	s.store.TrackError(message, source)
}

// recordHealth records an API health metric in the first domain declaring
// it. Catalogs without such a metric skip it silently.
func (m *Manager) recordHealth(ctx context.Context, s *Session, metric string, value float64, labels map[string]string) {
	reg := m.cache.Registry()
	for _, name := range reg.Domains() {
		d, _ := reg.FindDomain(name)
		if _, _, ok := d.FeatureForMetric(metric); !ok {
			continue
		}
		in, err := m.cache.Get(name, s.user)
		if err != nil {
			return
		}
		in.RecordBusinessMetric(ctx, metric, value, labels)
		return
	}
}

// resolve finds the domain and feature a call belongs to.
func (m *Manager) resolve(req APICall) (domain, feature string, ok bool) {
	if req.Domain != "" && req.Feature != "" {
		return req.Domain, req.Feature, true
	}

	path := req.URL
	if u, err := url.Parse(req.URL); err == nil {
		path = u.Path
	}

	reg := m.cache.Registry()
	if req.Domain != "" {
		d, found := reg.FindDomain(req.Domain)
		if !found {
			return req.Domain, req.Feature, true
		}
		f, found := d.FeatureForEndpoint(path)
		if !found {
			return "", "", false
		}
		return d.Name, f.Name, true
	}

	d, f, found := reg.ResolveEndpoint(path)
	if !found {
		return "", "", false
	}
	if req.Feature != "" {
		return d.Name, req.Feature, true
	}
	return d.Name, f.Name, true
}
