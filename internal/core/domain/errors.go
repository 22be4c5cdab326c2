package domain

import "errors"

var (
	ErrConfigInvalid      = errors.New("configuration invalid")
	ErrAuthFailure        = errors.New("authentication failure")
	ErrTransport          = errors.New("transport failure")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrUnrecognizedValue  = errors.New("unrecognized value")
	ErrUnsupportedCommand = errors.New("unsupported command")
)

const (
	ERROR_KIND_OK           = "ok"
	ERROR_KIND_CONFIG       = "config_invalid"
	ERROR_KIND_AUTH         = "auth_failure"
	ERROR_KIND_TRANSPORT    = "transport"
	ERROR_KIND_MALFORMED    = "malformed_response"
	ERROR_KIND_UNRECOGNIZED = "unrecognized_value"
	ERROR_KIND_UNSUPPORTED  = "unsupported_command"
	ERROR_KIND_OTHER        = "error"
)

// ErrorKind returns a stable label for err, suitable for metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ERROR_KIND_OK
	case errors.Is(err, ErrConfigInvalid):
		return ERROR_KIND_CONFIG
	case errors.Is(err, ErrAuthFailure):
		return ERROR_KIND_AUTH
	case errors.Is(err, ErrTransport):
		return ERROR_KIND_TRANSPORT
	case errors.Is(err, ErrMalformedResponse):
		return ERROR_KIND_MALFORMED
	case errors.Is(err, ErrUnrecognizedValue):
		return ERROR_KIND_UNRECOGNIZED
	case errors.Is(err, ErrUnsupportedCommand):
		return ERROR_KIND_UNSUPPORTED
	default:
		return ERROR_KIND_OTHER
	}
}
