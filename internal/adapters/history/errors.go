package history

import "errors"

// Sentinel kinds for history errors.
var (
	ErrInvalidURL   = errors.New("invalid url")
	ErrUnknownRoute = errors.New("unknown route")
)
