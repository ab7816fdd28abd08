package booru

import (
	"errors"
	"fmt"
)

// TransportError covers everything that can go wrong between us and
// the remote: dial failures, timeouts, unexpected HTTP statuses.
// Callers decide whether to retry; the client itself never does.
type TransportError struct {
	Cause      string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("remote returned %d: %s", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("transport failure: %s", e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err (or anything it wraps) is a
// TransportError, the only class of failure worth retrying.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// MalformedRecordError marks a raw post missing a structurally
// required field. It aborts the batch being normalized, not the sync.
type MalformedRecordError struct {
	Field string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("raw post is missing the %s field", e.Field)
}

// ErrUnsupportedMode is returned when a dialect cannot serve the
// requested pagination strategy.
var ErrUnsupportedMode = errors.New("fetch mode is not supported by this dialect")
