// Package logging builds the zap logger used across domainscope.
//
// A Logger takes a context on every call and adds the correlation fields it
// carries: the active trace and span, the business scope (domain, feature,
// journey), the session and the API request id. Components put those values
// in the context as a request flows through them:
//
//	ctx = logging.WithSessionID(ctx, sessionID)
//	ctx = logging.WithScope(ctx, logging.Scope{Domain: "ecommerce", Feature: "checkout"})
//	logger.Warn(ctx, "SLA violation", zap.Float64("sla.actual", ms))
//
// Output goes to stdout, to an OpenTelemetry log provider, or both. Field
// names listed in the redaction config are masked before encoding, and
// levels below error can be sampled.
package logging
