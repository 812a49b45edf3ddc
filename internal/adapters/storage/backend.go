// Package storage models the visitor's durable client storage: a string
// key-value space that survives reloads, plus the no-throw boundary every
// funnel component reads and writes through.
package storage

import (
	"context"
	"fmt"
	"sync"
)

// Durable storage keys used by the funnel.
const (
	KeyFirstAccessTimestamp = "firstAccessTimestamp"
	KeyUserName             = "userName"
	KeyTransactionData      = "transactionData"
)

// Backend is a string-valued key-value store that may fail.
type Backend interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}

// MemoryBackend keeps values in process memory.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string)}
}

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements Backend.
func (m *MemoryBackend) Set(_ context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// unavailable fails every operation, like storage in a locked-down
// private browsing profile.
type unavailable struct {
	cause error
}

// Unavailable returns a Backend whose operations always fail with
// ErrUnavailable wrapping cause.
func Unavailable(cause error) Backend {
	return unavailable{cause: cause}
}

func (u unavailable) err() error {
	if u.cause == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, u.cause)
}

func (u unavailable) Get(context.Context, string) (string, bool, error) { return "", false, u.err() }

func (u unavailable) Set(context.Context, string, string) error { return u.err() }
