package payload

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// NetworkCategory classifies a failed request.
type NetworkCategory string

// Network error categories.
const (
	NetworkFailure   NetworkCategory = "network_failure"
	RequestTimeout   NetworkCategory = "request_timeout"
	RequestCancelled NetworkCategory = "request_cancelled"
	ServerError      NetworkCategory = "server_error"
	NotFound         NetworkCategory = "not_found"
	Unauthorized     NetworkCategory = "unauthorized"
	UnknownError     NetworkCategory = "unknown"
)

// NetworkError is the classification of a failed request. ShouldRetry is
// advice for the caller; nothing here retries.
type NetworkError struct {
	Category    NetworkCategory `json:"category"`
	Message     string          `json:"message"`
	ShouldRetry bool            `json:"should_retry"`
	Status      int             `json:"status,omitempty"`
	Err         error           `json:"-"`
}

// CategorizeNetworkError classifies err and the HTTP status of the response,
// if any. Transport failures take precedence over the status code.
func CategorizeNetworkError(err error, status int) NetworkError {
	ne := NetworkError{
		Category: UnknownError,
		Message:  "Something went wrong",
		Status:   status,
		Err:      err,
	}

	var netErr net.Error
	switch {
	case isTimeout(err):
		ne.Category, ne.Message, ne.ShouldRetry = RequestTimeout, "Request timed out", true
	case errors.Is(err, context.Canceled):
		ne.Category, ne.Message = RequestCancelled, "Request was cancelled"
	case errors.As(err, &netErr):
		ne.Category, ne.Message, ne.ShouldRetry = NetworkFailure, "Network connection problem", true
	case status >= http.StatusInternalServerError:
		ne.Category, ne.Message, ne.ShouldRetry = ServerError, "Server error - please try again", true
	case status == http.StatusNotFound:
		ne.Category, ne.Message = NotFound, "Requested resource not found"
	case status == http.StatusUnauthorized:
		ne.Category, ne.Message = Unauthorized, "Please log in again"
	}
	return ne
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
