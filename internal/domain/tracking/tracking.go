// Package tracking fires page-view pixel events at most once per mounted page
// instance. Nothing it does is visible to the caller: every failure is logged
// and counted, then dropped.
package tracking

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/okian/funnel/internal/adapters/mq/queue"
	"github.com/okian/funnel/internal/domain/attribution"
	"github.com/okian/funnel/internal/domain/dedupe"
	"github.com/okian/funnel/internal/domain/model"
	"github.com/okian/funnel/pkg/logger"
	"github.com/okian/funnel/pkg/metrics"
)

// View identifies one mounted page instance.
type View struct {
	ID    string // unique per mount, see NewViewID
	Route string
	URL   string
}

// Enqueuer accepts events without blocking.
type Enqueuer interface {
	Enqueue(ctx context.Context, e model.PageView) error
}

// Dispatcher dedupes views and hands them to the pixel queue.
type Dispatcher struct {
	seen   dedupe.Deduper
	queue  Enqueuer
	now    func() time.Time
	newID  func() string
	logger logger.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithEventIDs overrides the pixel event id generator.
func WithEventIDs(gen func() string) Option {
	return func(d *Dispatcher) {
		if gen != nil {
			d.newID = gen
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Dispatcher. A nil deduper gets a default in-memory one.
func New(seen dedupe.Deduper, q Enqueuer, opts ...Option) *Dispatcher {
	if seen == nil {
		seen = dedupe.NewInMemoryDeduper()
	}
	d := &Dispatcher{
		seen:  seen,
		queue: q,
		now:   time.Now,
		newID: NewViewID,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Get().Named("tracking")
	}
	return d
}

// NewViewID returns a fresh id for a mounted page instance.
func NewViewID() string {
	return uuid.NewString()
}

// TrackPageView enqueues one pixel event for the view. Repeated calls with
// the same view id do nothing. A view without an id is treated as its own
// mount and given a fresh one.
func (d *Dispatcher) TrackPageView(ctx context.Context, view View) {
	if view.ID == "" {
		view.ID = NewViewID()
		d.logger.Warn(ctx, "page view without id; assigned one", logger.String("route", view.Route),
			logger.String("view_id", view.ID))
	}
	if d.seen.SeenAndRecord(ctx, view.ID) {
		metrics.RecordPixelDuplicate()
		d.logger.Debug(ctx, "page view already tracked", logger.String("view_id", view.ID))
		return
	}
	if d.queue == nil {
		metrics.RecordPixelDropped("disabled")
		return
	}

	event := model.PageView{
		EventID: d.newID(),
		ViewID:  view.ID,
		Route:   view.Route,
		URL:     view.URL,
		Params:  campaignOf(view.URL),
		TS:      d.now().UTC(),
	}

	if err := d.queue.Enqueue(ctx, event); err != nil {
		reason := "error"
		switch {
		case errors.Is(err, queue.ErrFull):
			reason = "full"
		case errors.Is(err, queue.ErrClosed):
			reason = "closed"
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			reason = "cancelled"
		}
		metrics.RecordPixelDropped(reason)
		d.logger.Warn(ctx, "page view dropped",
			logger.String("view_id", view.ID),
			logger.String("route", view.Route),
			logger.String("reason", reason),
			logger.Error(err),
		)
		return
	}
	metrics.RecordPixelEnqueued()
}

func campaignOf(raw string) map[string]string {
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	params := attribution.Campaign(u.RawQuery)
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string, len(params))
	for _, p := range params {
		out[p.Name] = p.Value
	}
	return out
}
