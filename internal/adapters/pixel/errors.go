package pixel

import "errors"

var (
	ErrInvalidEndpoint = errors.New("invalid pixel endpoint")
	ErrSendFailed      = errors.New("pixel send failed")
)
