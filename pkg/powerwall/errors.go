package powerwall

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrTransport         = errors.New("gateway transport error")
	ErrUnexpectedStatus  = errors.New("gateway returned unexpected status")
	ErrUnauthorized      = errors.New("gateway rejected credentials")
	ErrAuth              = errors.New("gateway authentication failed")
	ErrEmptyResponse     = errors.New("gateway returned an empty response")
	ErrMalformedResponse = errors.New("gateway returned a malformed response")
	ErrUnknownMode       = errors.New("unknown operating mode")
)

// StatusError is returned for any non 2xx answer. 401 and 403 unwrap to
// ErrUnauthorized, everything else to ErrUnexpectedStatus.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	return ErrUnexpectedStatus
}
