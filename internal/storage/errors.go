package storage

import "errors"

// Storage errors shared by all implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCorrupt is returned when persisted data cannot be decoded.
	// Callers treat the store as empty for the remainder of the session.
	ErrCorrupt = errors.New("corrupt store data")
)
