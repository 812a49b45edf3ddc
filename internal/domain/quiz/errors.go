package quiz

import "errors"

var (
	ErrInvalidCatalog = errors.New("invalid quiz catalog")
	ErrUnknownStep    = errors.New("unknown quiz step")
	ErrUnknownOption  = errors.New("unknown quiz option")
	ErrExited         = errors.New("quiz already exited")
	ErrNoNavigator    = errors.New("quiz requires a navigator")
)
