// Package agave provides an HTTP client for the Agave science-gateway REST
// API: request construction, bearer or basic authentication, and uniform
// classification of failed responses.
package agave

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is(err, agave.ErrBadResponse) to check.
var (
	// ErrTransport is returned when a request cannot be built or sent,
	// most commonly because the target URL is malformed.
	ErrTransport = errors.New("agave: transport error")

	// ErrBadResponse is returned when the server answers with HTTP >= 400.
	ErrBadResponse = errors.New("agave: bad response")

	// ErrBadTimestamp is returned by ParseTimestamp for unrecognized input.
	ErrBadTimestamp = errors.New("agave: unrecognized timestamp")
)

// ResponseError carries the details of an HTTP >= 400 answer so callers can
// surface the status code and body to the user.
type ResponseError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *ResponseError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("bad %s request to %s, status code %d", e.Method, e.URL, e.StatusCode)
	}

	return fmt.Sprintf("bad %s request to %s, status code %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

func (e *ResponseError) Unwrap() error {
	return ErrBadResponse
}
