package generation

import "errors"

// Client errors. Implementations wrap these so callers can classify
// failures without knowing the provider's wire format.
var (
	// ErrProviderUnavailable indicates a missing or rejected credential.
	ErrProviderUnavailable = errors.New("generation provider unavailable")

	// ErrInvalidRequest indicates the provider rejected the payload.
	ErrInvalidRequest = errors.New("invalid generation request")

	// ErrNotFound indicates the provider does not know the task.
	ErrNotFound = errors.New("remote task not found")

	// ErrResourceExhausted indicates the provider reported quota or
	// credit exhaustion.
	ErrResourceExhausted = errors.New("generation quota exhausted")

	// ErrProvider indicates any other non-2xx provider response.
	ErrProvider = errors.New("generation provider error")
)
