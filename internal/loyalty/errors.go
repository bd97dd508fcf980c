package loyalty

import "errors"

// ErrNoData is returned when a successful envelope carries no record for an
// operation that must return one.
var ErrNoData = errors.New("backend returned no data")

// APIError is a failure reported by the backend: a non-2xx status or an
// {"ok":false} envelope. Message is the backend's text, verbatim when it
// provided one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// ValidationError rejects local input before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
