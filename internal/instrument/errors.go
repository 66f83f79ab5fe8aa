package instrument

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"
)

// ErrUnknownDomain is matched by every ConfigurationError.
var ErrUnknownDomain = errors.New("unknown domain")

// ConfigurationError reports an instrumentor requested for a domain the
// registry does not declare.
type ConfigurationError struct {
	Domain string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("instrument: domain %q is not configured", e.Domain)
}

// Unwrap returns ErrUnknownDomain.
func (e *ConfigurationError) Unwrap() error {
	return ErrUnknownDomain
}

// TimeoutError reports a wrapped call that outlived its timeout.
type TimeoutError struct {
	Timeout time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation timed out after %s (limit %s)", e.Elapsed, e.Timeout)
}

// Unwrap returns context.DeadlineExceeded.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// Kind implements the error kind reported in metrics.
func (e *TimeoutError) Kind() string { return "TimeoutError" }

// PanicError carries a value recovered from a panicking call.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Kind implements the error kind reported in metrics.
func (e *PanicError) Kind() string { return "PanicError" }

// ErrorKind returns the label used for error_type. Errors may choose their
// kind with a Kind() string method; plain errors report "Error".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}

	var kinded interface{ Kind() string }
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "TimeoutError"
	case errors.Is(err, context.Canceled):
		return "CanceledError"
	}

	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.PkgPath() {
	case "errors", "fmt":
		return "Error"
	}
	if t.Name() == "" {
		return "Error"
	}
	return t.Name()
}
