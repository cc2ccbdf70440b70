package vidu

import (
	"errors"
	"fmt"
	"net/http"
)

// RemoteErrorKind classifies a failed remote call so callers can react
// without inspecting raw payloads.
type RemoteErrorKind string

// Remote error classifications.
const (
	RemoteRateLimited  RemoteErrorKind = "rate_limited"
	RemoteUnauthorized RemoteErrorKind = "unauthorized"
	RemoteServer       RemoteErrorKind = "server"
	RemoteClient       RemoteErrorKind = "client"
)

// RemoteError is returned when a submit, poll, or history call fails.
type RemoteError struct {
	Op         string // the remote operation, e.g. "submit", "poll_state"
	Kind       RemoteErrorKind
	StatusCode int    // HTTP status, 0 for transport-level failures
	Message    string // service-provided message when one was parsable
	Err        error  // underlying error, if any
}

// Error implements the error interface for RemoteError.
func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s failed (%s, status %d): %s", e.Op, e.Kind, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("remote %s failed (%s): %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("remote %s failed (%s): %s", e.Op, e.Kind, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether the error is an authentication failure, so
// a calling layer can trigger re-authentication instead of retrying.
func IsUnauthorized(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Kind == RemoteUnauthorized
}

// IsRateLimited reports whether the error is a rate-limit rejection that
// survived the transport's own retries.
func IsRateLimited(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Kind == RemoteRateLimited
}

// classifyStatus maps an HTTP status code to a RemoteErrorKind.
func classifyStatus(code int) RemoteErrorKind {
	switch {
	case code == http.StatusTooManyRequests:
		return RemoteRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return RemoteUnauthorized
	case code >= 500:
		return RemoteServer
	default:
		return RemoteClient
	}
}

// TransferError is returned when an upload or download fails. Op identifies
// the step ("upload_register", "upload_binary", "upload_finish", "download");
// StatusCode is zero for transport failures and for payloads that were
// rejected after a 200 response.
type TransferError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface for TransferError.
func (e *TransferError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transfer %s failed (status %d): %s", e.Op, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("transfer %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transfer %s failed: %s", e.Op, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TransferError) Unwrap() error {
	return e.Err
}
