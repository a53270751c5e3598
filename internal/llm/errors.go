package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorKind classifies a generation failure.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindRateLimited ErrorKind = "rate_limited"
	KindAPIError    ErrorKind = "api_error"
)

var (
	// ErrEmptyResponse is returned when a backend answers with no text.
	ErrEmptyResponse = errors.New("empty response")
	// ErrNoJSONObject is returned when text contains no JSON object.
	ErrNoJSONObject = errors.New("no JSON object in response")
	// ErrUnavailable is returned by a Generator that is not configured.
	ErrUnavailable = errors.New("text generation unavailable")
)

// ServiceError is the failure returned by every backend.
type ServiceError struct {
	Kind    ErrorKind
	Backend string
	// Status is the HTTP status when one was received.
	Status int
	Err    error
}

func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s (status %d): %v", e.Backend, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed: rate limits and
// server-side failures. Timeouts are not retried; the caller's deadline has
// already passed.
func (e *ServiceError) Retryable() bool {
	return e.Kind == KindRateLimited || e.Status >= http.StatusInternalServerError
}

// KindOf returns the ErrorKind of err, or "" for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return classify(err, 0)
}

// wrapError builds a ServiceError from a backend error and optional status.
func wrapError(backend string, err error, status int) error {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return err
	}
	return &ServiceError{Kind: classify(err, status), Backend: backend, Status: status, Err: err}
}

func classify(err error, status int) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if status == http.StatusTooManyRequests {
		return KindRateLimited
	}
	if status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout {
		return KindTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"), strings.Contains(msg, "too many requests"):
		return KindRateLimited
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return KindTimeout
	}
	return KindAPIError
}
