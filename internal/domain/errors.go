// Package domain defines the core business entities and errors.
package domain

import "errors"

// Failure taxonomy for the generation workflow. Terminal errors stop
// retries and require user action; transient errors are retried
// automatically up to a cap.
var (
	// ErrConfiguration is returned when a required credential or setting
	// is missing or a placeholder. Terminal.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation is returned when caller input fails validation.
	// Terminal.
	ErrValidation = errors.New("validation failed")

	// ErrResourceExhausted is returned when the remote provider reports
	// quota or credit exhaustion. Terminal.
	ErrResourceExhausted = errors.New("remote resource exhausted")

	// ErrNotFound is returned when a task is unknown, locally or on the
	// remote provider. Terminal.
	ErrNotFound = errors.New("task not found")

	// ErrTransport is returned on network failures, timeouts and 5xx
	// responses. Transient: retried up to a cap, then terminal.
	ErrTransport = errors.New("transport error")

	// ErrIntegrity is returned when an archived artifact does not match
	// the downloaded payload. Terminal.
	ErrIntegrity = errors.New("artifact integrity check failed")

	// ErrTimeout is returned when a workflow exceeds its wall-clock
	// budget. Terminal.
	ErrTimeout = errors.New("workflow deadline exceeded")
)

// IsTerminalError reports whether err is one of the terminal failure
// classes that must not be retried automatically.
func IsTerminalError(err error) bool {
	switch {
	case errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrResourceExhausted),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrIntegrity),
		errors.Is(err, ErrTimeout):
		return true
	default:
		return false
	}
}
