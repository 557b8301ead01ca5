package metabans

import (
	"errors"
	"fmt"
)

// CodeAuthentication is the error code Metabans answers with when the
// username or API key is rejected.
const CodeAuthentication = 5

// CodeUnknownPlayer is the error code returned for a player Metabans has never sighted.
const CodeUnknownPlayer = 9

var (
	// ErrHTTPRequestFailed is returned when the request could not be sent or
	// the service answered with a non-2xx HTTP status.
	ErrHTTPRequestFailed = errors.New("metabans request failed")

	// ErrUnexpectedResponse is returned when the body is not a recognizable
	// response envelope.
	ErrUnexpectedResponse = errors.New("unexpected metabans response")

	// ErrAuthentication is returned when Metabans rejects the configured credentials.
	ErrAuthentication = errors.New("metabans authentication failed")

	// ErrEmptyBatch is returned when a call is made without any query.
	ErrEmptyBatch = errors.New("no queries to send")

	// ErrNotSingle is returned when a single payload is requested from a batch result.
	ErrNotSingle = errors.New("result holds more than one response")
)

// APIError is an error reported by Metabans for a single request.
type APIError struct {
	Message string
	Code    int
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("metabans error %d", e.Code)
	}

	return fmt.Sprintf("metabans error %d: %s", e.Code, e.Message)
}

// Unwrap lets errors.Is(err, ErrAuthentication) match rejected credentials.
func (e *APIError) Unwrap() error {
	if e.Code == CodeAuthentication {
		return ErrAuthentication
	}

	return nil
}

// ErrorCode extracts the Metabans error code from err, if any.
func ErrorCode(err error) (int, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}

	return 0, false
}
