package gocensus

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when a request is built with an unknown
	// return type or search type, or with an invalid batch. It is always
	// returned before any network call is made.
	ErrConfiguration = errors.New("gocensus: bad configuration")

	// ErrMalformedResponse is returned when the service reply cannot be
	// decoded into the expected structure.
	ErrMalformedResponse = errors.New("gocensus: malformed response")

	// ErrNotFound is returned by AddressResult.First when the service found
	// no candidate matches.
	ErrNotFound = errors.New("gocensus: address not found")

	// ErrTransport matches every *TransportError via errors.Is.
	ErrTransport = errors.New("gocensus: transport error")
)

// TransportError represents a failure talking to the Census Geocoder:
// connection errors, timeouts, and non-2xx responses.
//
// StatusCode is zero when no HTTP response was received. Err holds the
// underlying transport error unaltered, so errors.Is(err,
// context.DeadlineExceeded) works through a TransportError.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gocensus: %s %s: API returned status %d: %s", e.Op, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("gocensus: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func configErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func malformedErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}
