// Package worker drains the pixel queue and hands each page view to a
// Sender. Failures are logged and counted, never retried.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/funnel/internal/domain/model"
	"github.com/okian/funnel/pkg/logger"
	"github.com/okian/funnel/pkg/metrics"
)

const defaultWorkerCount = 2

// Event abstracts what workers read off the queue.
type Event = model.PageView

// Sender delivers one page view to the tracking endpoints.
type Sender interface {
	Send(ctx context.Context, e Event) error
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// InMemoryWorker processes events from a queue with a sender.
type InMemoryWorker struct {
	queue  Queue
	sender Sender
	name   string
	done   chan struct{}
	logger logger.Logger

	onProcessed func(err error)
}

// NewInMemoryWorker creates a new worker.
func NewInMemoryWorker(queue Queue, sender Sender, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:  queue,
		sender: sender,
		name:   "worker",
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run processes events until the queue is drained and closed or ctx ends.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	for event := range w.queue.Dequeue(ctx) {
		err := w.process(ctx, event)
		if w.onProcessed != nil {
			w.onProcessed(err)
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

// process sends one event, converting panics in the sender into errors so a
// misbehaving endpoint never takes the worker down.
func (w *InMemoryWorker) process(ctx context.Context, event Event) (err error) { //nolint:gocritic // hugeParam: value semantics for channel
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
		}
		if err != nil {
			metrics.RecordWorkerError()
			w.logger.Warn(ctx, "pixel dispatch failed",
				logger.String("event_id", event.EventID),
				logger.String("route", event.Route),
				logger.Error(err),
			)
		}
	}()
	return w.sender.Send(ctx, event)
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	processed atomic.Int64
	failed    atomic.Int64
	startOnce sync.Once

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers.
func NewPool(workerCount int, queue Queue, sender Sender, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		workerOpts = append(workerOpts, withOnProcessed(p.record))
		p.workers[i] = NewInMemoryWorker(queue, sender, workerOpts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

func (p *Pool) record(err error) {
	if err != nil {
		p.failed.Add(1)
		return
	}
	p.processed.Add(1)
}

// Start starts all workers. Calling it again has no effect.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for _, w := range p.workers {
			go w.Run(ctx)
		}
	})
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of events delivered without error.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Failed returns the number of events whose delivery failed.
func (p *Pool) Failed() int64 { return p.failed.Load() }

// Shutdown closes the queue and waits for workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("shutdown timed out: %w", ctx.Err())
		}
	}
	return nil
}

// ShutdownTimeout is Shutdown bounded by d.
func (p *Pool) ShutdownTimeout(d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return p.Shutdown(ctx)
}
