package storage

import (
	"context"

	"github.com/okian/funnel/pkg/logger"
	"github.com/okian/funnel/pkg/metrics"
)

// KV is the no-throw view of durable storage handed to funnel components.
// Failures are logged and counted here and never reach the caller.
type KV interface {
	// Get returns the stored value, or ok=false when missing or unreadable.
	Get(ctx context.Context, key string) (value string, ok bool)
	// Set stores value and reports whether it was persisted.
	Set(ctx context.Context, key, value string) bool
}

// Safe wraps a Backend so that no storage failure escapes.
type Safe struct {
	backend Backend
	logger  logger.Logger
}

// SafeOption configures a Safe adapter.
type SafeOption func(*Safe)

// WithLogger sets the logger used for swallowed failures.
func WithLogger(l logger.Logger) SafeOption {
	return func(s *Safe) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSafe returns a no-throw adapter over backend. A nil backend behaves as
// unavailable storage.
func NewSafe(backend Backend, opts ...SafeOption) *Safe {
	if backend == nil {
		backend = Unavailable(nil)
	}
	s := &Safe{backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("storage")
	}
	return s
}

// Get implements KV.
func (s *Safe) Get(ctx context.Context, key string) (string, bool) {
	value, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		metrics.RecordStorageError("get")
		s.logger.Warn(ctx, "storage read failed", logger.String("key", key), logger.Error(err))
		return "", false
	}
	return value, ok
}

// Set implements KV.
func (s *Safe) Set(ctx context.Context, key, value string) bool {
	if err := s.backend.Set(ctx, key, value); err != nil {
		metrics.RecordStorageError("set")
		s.logger.Warn(ctx, "storage write failed", logger.String("key", key), logger.Error(err))
		return false
	}
	return true
}
