package search

import (
	"errors"
	"fmt"
)

// Sentinel errors for the search client.
var (
	ErrEmptyQuery        = errors.New("search: query is empty")
	ErrMissingAPIKey     = errors.New("search: api key is required")
	ErrTimeout           = errors.New("search: request timed out")
	ErrMalformedResponse = errors.New("search: malformed response body")
)

// RequestError is a transport failure other than a timeout.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string { return fmt.Sprintf("search: request failed: %v", e.Err) }
func (e *RequestError) Unwrap() error { return e.Err }

// APIError is a non-2xx answer from the search API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("search: api call failed: %d", e.StatusCode)
	}
	return fmt.Sprintf("search: api call failed: %d - %s", e.StatusCode, e.Message)
}
