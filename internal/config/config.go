// Package config defines the funnel runtime configuration and its loader.
//
// Conventions:
// - New() builds a Config holding every default.
// - Load layers .env, YAML and environment on top of New().
// - Validate reports the first problem wrapped in ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/funnel/internal/domain/quiz"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr is the ops endpoint listen address, e.g. ":9080". Empty disables it.
	Addr string `koanf:"addr"`

	// StoragePath is the SQLite file backing the visitor profile. Empty keeps
	// everything in memory.
	StoragePath string `koanf:"storage_path"`

	// QueueSize bounds the in-memory pixel queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of pixel dispatch workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the set of page views already tracked.
	DedupeSize int `koanf:"dedupe_size"`

	// PixelEndpoints receive one GET per page view. Empty disables sending.
	PixelEndpoints []string `koanf:"pixel_endpoints"`

	// PixelTimeoutMS bounds each pixel request.
	PixelTimeoutMS int `koanf:"pixel_timeout_ms"`

	// PixelID is sent as the "id" parameter of every pixel request.
	PixelID string `koanf:"pixel_id"`

	// EntryRoute, QuizRoute and PostQuizRoute are the funnel pages.
	EntryRoute    string `koanf:"entry_route"`
	QuizRoute     string `koanf:"quiz_route"`
	PostQuizRoute string `koanf:"post_quiz_route"`

	// Quiz is the question catalog. The built-in assessment is used when unset.
	Quiz quiz.Catalog `koanf:"quiz"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		QueueSize:      1024,
		WorkerCount:    2,
		DedupeSize:     10_000,
		PixelTimeoutMS: 3000,
		EntryRoute:     "/",
		QuizRoute:      "/quiz",
		PostQuizRoute:  "/inscricao",
		Quiz:           quiz.DefaultCatalog(),
	}
}

// PixelTimeout returns PixelTimeoutMS as a duration.
func (c *Config) PixelTimeout() time.Duration {
	return time.Duration(c.PixelTimeoutMS) * time.Millisecond
}

// Routes returns every funnel route.
func (c *Config) Routes() []string {
	return []string{c.EntryRoute, c.QuizRoute, c.PostQuizRoute}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	for name, route := range map[string]string{
		"entry_route":     c.EntryRoute,
		"quiz_route":      c.QuizRoute,
		"post_quiz_route": c.PostQuizRoute,
	} {
		if !strings.HasPrefix(route, "/") {
			return fmt.Errorf("%w: %s must be an absolute path, got %q", ErrInvalidConfig, name, route)
		}
	}
	if c.PixelTimeoutMS <= 0 {
		return fmt.Errorf("%w: pixel_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	if err := c.Quiz.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
