package sitematrix

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDatabase is returned when no wiki matches a domain.
	ErrUnknownDatabase = errors.New("unable to find database name")
	// ErrMalformedResponse is returned when the API response has no sitematrix object.
	ErrMalformedResponse = errors.New("malformed sitematrix response")
	// ErrRateLimited is returned when fetch attempts follow each other too quickly.
	ErrRateLimited = errors.New("sitematrix fetch rate limit exceeded, retry shortly")
)

// HTTPError reports a non-success status from the sitematrix endpoint.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("sitematrix request to %s failed with status %d", e.URL, e.StatusCode)
}
