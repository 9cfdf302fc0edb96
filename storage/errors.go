package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when no record has the requested ID.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownBackend is returned by Open for an unrecognized backend.
	ErrUnknownBackend = errors.New("unknown index backend")
)
