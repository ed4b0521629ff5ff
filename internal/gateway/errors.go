// Package gateway provides an HTTP client for the Google Drive v3 API
// with automatic retry, backoff, and error classification. It is the sole
// path to cloud metadata: listing children, fetching metadata, downloading
// media, and deleting by ID.
package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, gateway.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("gateway: bad request")
	ErrUnauthorized = errors.New("gateway: unauthorized")
	ErrForbidden    = errors.New("gateway: forbidden")
	ErrNotFound     = errors.New("gateway: not found")
	ErrRateLimited  = errors.New("gateway: rate limited")
	ErrServerError  = errors.New("gateway: server error")

	// ErrNotLoggedIn is returned when no saved token exists.
	ErrNotLoggedIn = errors.New("gateway: not logged in")
)

// DriveError wraps a sentinel error with the HTTP status code and the API
// error message body for debugging.
type DriveError struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *DriveError) Error() string {
	return fmt.Sprintf("gateway: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *DriveError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch {
	case code >= http.StatusOK && code < http.StatusMultipleChoices:
		return nil
	case code == http.StatusBadRequest:
		return ErrBadRequest
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= http.StatusInternalServerError:
		return ErrServerError
	default:
		return fmt.Errorf("gateway: unexpected status %d", code)
	}
}

// isRetryable reports whether a status code is worth retrying.
// 429 and 5xx are transient; everything else is not.
func isRetryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
