package rest

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPError is a non-2xx API response. Path is the route template, so
// interaction tokens never appear in it.
type HTTPError struct {
	Method     string
	Path       string
	Status     int
	Code       int
	Message    string
	RetryAfter time.Duration
	Global     bool
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	if e.Code != 0 || e.Message != "" {
		msg += fmt.Sprintf(" (code %d: %s)", e.Code, e.Message)
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(", retry after %s", e.RetryAfter)
	}
	return msg
}

// IsRateLimited reports whether the request was refused with 429.
func (e *HTTPError) IsRateLimited() bool { return e.Status == http.StatusTooManyRequests }

// IsUnauthorized reports whether the token was rejected.
func (e *HTTPError) IsUnauthorized() bool { return e.Status == http.StatusUnauthorized }

// IsNotFound reports whether the resource does not exist, which for
// interaction webhooks means the token has expired.
func (e *HTTPError) IsNotFound() bool { return e.Status == http.StatusNotFound }

// AsHTTPError returns the HTTPError carried by err, if any.
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}
