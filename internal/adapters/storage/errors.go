package storage

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrUnavailable = errors.New("storage unavailable")
	ErrClosed      = errors.New("storage closed")
	ErrEmptyKey    = errors.New("storage key must not be empty")
)
