package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxIDLen bounds ids taken from client input before they reach a log line.
const maxIDLen = 128

// Scope is the business location of a log line.
type Scope struct {
	Domain  string
	Feature string
	Journey string
}

type (
	scopeKey     struct{}
	sessionKey   struct{}
	requestIDKey struct{}
)

// WithScope returns ctx carrying scope. Empty parts keep the values of an
// outer scope, so a feature can be added to a domain already in ctx.
func WithScope(ctx context.Context, scope Scope) context.Context {
	if outer, ok := ScopeFromContext(ctx); ok {
		if scope.Domain == "" {
			scope.Domain = outer.Domain
		}
		if scope.Feature == "" {
			scope.Feature = outer.Feature
		}
		if scope.Journey == "" {
			scope.Journey = outer.Journey
		}
	}
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFromContext returns the scope in ctx, if any.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(Scope)
	return s, ok
}

// WithSessionID returns ctx carrying the session id. Empty ids leave ctx
// unchanged.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, truncateID(id))
}

// SessionIDFromContext returns the session id in ctx or "".
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// WithRequestID returns ctx carrying the API request id. Empty ids leave
// ctx unchanged.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, truncateID(id))
}

// RequestIDFromContext returns the request id in ctx or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func truncateID(id string) string {
	if len(id) > maxIDLen {
		return id[:maxIDLen]
	}
	return id
}

// ContextFields returns the correlation fields found in ctx.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()))
	}
	if s, ok := ScopeFromContext(ctx); ok {
		if s.Domain != "" {
			fields = append(fields, zap.String("domain", s.Domain))
		}
		if s.Feature != "" {
			fields = append(fields, zap.String("feature", s.Feature))
		}
		if s.Journey != "" {
			fields = append(fields, zap.String("journey", s.Journey))
		}
	}
	if id := SessionIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("session_id", id))
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	return fields
}
