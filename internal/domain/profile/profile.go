// Package profile holds the visitor's identity and payment context, shared by
// every page of the funnel. Writes go to durable storage best-effort and to
// memory unconditionally.
package profile

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/okian/funnel/internal/adapters/storage"
	"github.com/okian/funnel/pkg/logger"
	"github.com/okian/funnel/pkg/notify"
)

// Transaction is the payment context of the visitor.
type Transaction struct {
	QRCode        string `json:"qrCode"`
	TransactionID string `json:"transactionId"`
}

// Snapshot is the profile state delivered to subscribers.
type Snapshot struct {
	UserName    string
	Transaction Transaction
}

// Store is the profile store.
type Store struct {
	kv     storage.KV
	logger logger.Logger

	mu          sync.RWMutex
	userName    string
	transaction Transaction

	changes notify.Hub[Snapshot]
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Store seeded from kv. Missing or undecodable values fall back
// to the zero profile.
func New(ctx context.Context, kv storage.KV, opts ...Option) *Store {
	s := &Store{kv: kv}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("profile")
	}
	if kv == nil {
		return s
	}

	if name, ok := kv.Get(ctx, storage.KeyUserName); ok {
		s.userName = name
	}
	if raw, ok := kv.Get(ctx, storage.KeyTransactionData); ok {
		var t Transaction
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			s.logger.Warn(ctx, "stored transaction data is not valid JSON; using defaults", logger.Error(err))
		} else {
			s.transaction = t
		}
	}
	return s
}

// UserName returns the current visitor name.
func (s *Store) UserName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userName
}

// SetUserName persists and stores name.
func (s *Store) SetUserName(ctx context.Context, name string) {
	s.persist(ctx, storage.KeyUserName, name)

	s.mu.Lock()
	s.userName = name
	s.mu.Unlock()
	s.changes.Publish(s.Snapshot())
}

// TransactionData returns the current transaction context.
func (s *Store) TransactionData() Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transaction
}

// SetTransactionData persists and stores t.
func (s *Store) SetTransactionData(ctx context.Context, t Transaction) {
	raw, err := json.Marshal(t)
	if err == nil {
		s.persist(ctx, storage.KeyTransactionData, string(raw))
	}

	s.mu.Lock()
	s.transaction = t
	s.mu.Unlock()
	s.changes.Publish(s.Snapshot())
}

// Snapshot returns the current profile.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{UserName: s.userName, Transaction: s.transaction}
}

// Subscribe registers fn for every profile change.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	return s.changes.Subscribe(fn)
}

func (s *Store) persist(ctx context.Context, key, value string) {
	if s.kv == nil {
		return
	}
	// Failures are already logged and counted by the storage boundary.
	_ = s.kv.Set(ctx, key, value)
}
