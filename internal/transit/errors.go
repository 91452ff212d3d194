package transit

import (
	"errors"
	"fmt"
)

// ErrFetch matches every failure to get a usable answer from the backend.
// HTTP status codes are not distinguished.
var ErrFetch = errors.New("fetch failed")

// ErrNoResults is returned when the backend answers with an empty list
// where one record was expected.
var ErrNoResults = errors.New("no results")

// FetchError reports a failed call to one backend endpoint.
type FetchError struct {
	Endpoint string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", ErrFetch, e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetch, e.Err}
}

// StatusError is the cause recorded for a non-2xx response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.StatusCode)
}
