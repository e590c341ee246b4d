package store

import "errors"

// Store errors.
var (
	// ErrTaskNotFound is returned when no task row exists for the given id.
	ErrTaskNotFound = errors.New("task not found in store")

	// ErrEmptyPatch is returned when an update contains no fields.
	ErrEmptyPatch = errors.New("task patch contains no fields")
)
