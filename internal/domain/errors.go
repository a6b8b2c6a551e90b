package domain

import "errors"

var (
	// ErrValidation marks malformed input or configuration.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing entity or record.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an operation rejected by current state,
	// e.g. starting a batch while one is already active.
	ErrConflict = errors.New("conflict")
)
