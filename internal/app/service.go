// Package service wires the funnel runtime: durable profile storage, the
// page-view tracking pipeline and per-visitor sessions on top of them.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/okian/funnel/internal/adapters/mq/queue"
	workerpool "github.com/okian/funnel/internal/adapters/mq/worker"
	"github.com/okian/funnel/internal/adapters/pixel"
	"github.com/okian/funnel/internal/adapters/storage"
	"github.com/okian/funnel/internal/config"
	"github.com/okian/funnel/internal/domain/dedupe"
	"github.com/okian/funnel/internal/domain/quiz"
	"github.com/okian/funnel/internal/domain/tracking"
	"github.com/okian/funnel/pkg/logger"
	"github.com/okian/funnel/pkg/metrics"
)

// Storage modes reported by GetStats.
const (
	StorageMemory      = "memory"
	StorageSQLite      = "sqlite"
	StorageUnavailable = "unavailable"
)

// Routes are the funnel pages.
type Routes struct {
	Entry    string
	Quiz     string
	PostQuiz string
}

// Service owns everything shared by the sessions of one process.
type Service struct {
	mu sync.RWMutex

	// Core components
	backend     storage.Backend
	kv          *storage.Safe
	deduper     dedupe.Deduper
	eventQueue  *eventqueue.InMemoryQueue
	sender      workerpool.Sender
	workerPool  *workerpool.Pool
	tracker     *tracking.Dispatcher
	storageMode string
	ownsBackend bool

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	storagePath    string
	pixelEndpoints []string
	pixelID        string
	pixelTimeout   time.Duration
	routes         Routes
	catalog        quiz.Catalog
	now            func() time.Time

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of pixel dispatch workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the pixel queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the tracked-view set. Zero means unbounded.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithStoragePath selects a SQLite file for durable storage.
func WithStoragePath(path string) Option {
	return func(s *Service) {
		s.storagePath = path
	}
}

// WithStorage uses backend instead of opening one from the storage path.
func WithStorage(backend storage.Backend) Option {
	return func(s *Service) {
		s.backend = backend
	}
}

// WithPixel configures the pixel endpoints, id and per-request timeout.
func WithPixel(endpoints []string, id string, timeout time.Duration) Option {
	return func(s *Service) {
		s.pixelEndpoints = endpoints
		s.pixelID = id
		if timeout > 0 {
			s.pixelTimeout = timeout
		}
	}
}

// WithSender replaces the HTTP pixel sender.
func WithSender(sender workerpool.Sender) Option {
	return func(s *Service) {
		s.sender = sender
	}
}

// WithRoutes sets the funnel pages.
func WithRoutes(r Routes) Option {
	return func(s *Service) {
		s.routes = r
	}
}

// WithCatalog sets the quiz catalog.
func WithCatalog(c quiz.Catalog) Option {
	return func(s *Service) {
		if len(c) > 0 {
			s.catalog = c
		}
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// OptionsFromConfig translates cfg into service options.
func OptionsFromConfig(cfg *config.Config) []Option {
	return []Option{
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithDedupeSize(cfg.DedupeSize),
		WithStoragePath(cfg.StoragePath),
		WithPixel(cfg.PixelEndpoints, cfg.PixelID, cfg.PixelTimeout()),
		WithRoutes(Routes{Entry: cfg.EntryRoute, Quiz: cfg.QuizRoute, PostQuiz: cfg.PostQuizRoute}),
		WithCatalog(cfg.Quiz),
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:  2,
		queueSize:    1024,
		dedupeSize:   10_000,
		pixelTimeout: 3 * time.Second,
		routes:       Routes{Entry: "/", Quiz: "/quiz", PostQuiz: "/inscricao"},
		catalog:      quiz.DefaultCatalog(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens storage and starts the tracking pipeline.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting funnel service...")

	// Nothing that needs closing is opened before configuration errors.
	if s.sender == nil {
		sender, err := pixel.New(s.pixelEndpoints,
			pixel.WithPixelID(s.pixelID),
			pixel.WithTimeout(s.pixelTimeout),
		)
		if err != nil {
			return fmt.Errorf("pixel sender: %w", err)
		}
		s.sender = sender
	}

	s.openStorage(ctx)
	s.kv = storage.NewSafe(s.backend)

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.sender)
	s.workerPool.Start(context.WithoutCancel(ctx))
	s.tracker = tracking.New(s.deduper, s.eventQueue, tracking.WithClock(s.now))

	s.started = true
	s.logger.Info(ctx, "funnel service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("storage", s.storageMode),
		logger.Int("pixelEndpoints", len(s.pixelEndpoints)),
	)
	return nil
}

// openStorage must be called with s.mu held. It never fails: a SQLite file
// that cannot be opened degrades to storage that misses every read.
func (s *Service) openStorage(ctx context.Context) {
	switch {
	case s.backend != nil:
		s.storageMode = StorageMemory
		if _, ok := s.backend.(*storage.SQLiteBackend); ok {
			s.storageMode = StorageSQLite
		}
	case s.storagePath == "":
		s.backend = storage.NewMemoryBackend()
		s.storageMode = StorageMemory
		s.ownsBackend = true
	default:
		db, err := storage.OpenSQLite(ctx, s.storagePath)
		if err != nil {
			s.logger.Warn(ctx, "durable storage unavailable; continuing without it",
				logger.String("path", s.storagePath), logger.Error(err))
			s.backend = storage.Unavailable(err)
			s.storageMode = StorageUnavailable
			s.ownsBackend = true
			return
		}
		s.backend = db
		s.storageMode = StorageSQLite
		s.ownsBackend = true
	}
}

// Stop drains the pixel queue and closes storage.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping funnel service...")

	var errs []error
	if s.workerPool != nil {
		if err := s.workerPool.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if closer, ok := s.backend.(interface{ Close() error }); ok && s.ownsBackend {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if s.ownsBackend {
		s.backend = nil
		s.ownsBackend = false
	}

	s.started = false
	s.logger.Info(ctx, "funnel service stopped")
	return errors.Join(errs...)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"storage":     s.storageMode,
		"quizSteps":   len(s.catalog),
	}

	if s.started {
		queueLen := s.eventQueue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["trackedViews"] = s.deduper.Size()
		stats["pixelsSent"] = s.workerPool.Processed()
		stats["pixelsFailed"] = s.workerPool.Failed()
		stats["goroutines"] = runtime.NumGoroutine()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerCount)
	}
	return stats
}

// Routes returns the configured funnel pages.
func (s *Service) Routes() Routes {
	return s.routes
}

// Catalog returns the quiz catalog.
func (s *Service) Catalog() quiz.Catalog {
	return s.catalog
}
