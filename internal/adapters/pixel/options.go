package pixel

import (
	"net/http"
	"time"

	"github.com/okian/funnel/pkg/logger"
)

// Option configures a Sender.
type Option func(*Sender)

// WithPixelID sets the pixel id sent as the "id" parameter.
func WithPixelID(id string) Option {
	return func(s *Sender) {
		s.pixelID = id
	}
}

// WithTimeout bounds each request. Ignored when WithHTTPClient is also used.
func WithTimeout(d time.Duration) Option {
	return func(s *Sender) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) {
		s.client = c
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Sender) {
		if l != nil {
			s.logger = l
		}
	}
}
