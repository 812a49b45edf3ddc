// Package notify implements the subscriber side of stateful components:
// consumers register a callback and re-read the slice of state they care
// about whenever the owner publishes a change.
package notify

import (
	"slices"
	"sync"
)

// Hub fans a published value out to every current subscriber.
type Hub[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func(T)
}

// Subscribe registers fn and returns a function that removes it.
// Calling the returned function more than once is harmless.
func (h *Hub[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	h.mu.Lock()
	if h.subs == nil {
		h.subs = make(map[uint64]func(T))
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Publish delivers v to every subscriber in registration order.
// Subscribers run synchronously on the publisher's goroutine.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	ids := make([]uint64, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	fns := make(map[uint64]func(T), len(h.subs))
	for id, fn := range h.subs {
		fns[id] = fn
	}
	h.mu.RUnlock()

	slices.Sort(ids)
	for _, id := range ids {
		fns[id](v)
	}
}

// Len returns the number of active subscribers.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
