// Package history models the visitor's current location and session history,
// the host side of client-side routing: pushes add entries, replaces rewrite
// the current one in place.
package history

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/okian/funnel/pkg/notify"
)

// History holds the location stack of one page session.
type History struct {
	mu      sync.RWMutex
	entries []*url.URL
	routes  map[string]struct{}
	changes notify.Hub[url.URL]
}

// Option configures a History.
type Option func(*History)

// WithRoutes restricts Push to the given paths. Without it any absolute path
// is accepted.
func WithRoutes(paths ...string) Option {
	return func(h *History) {
		if len(paths) == 0 {
			return
		}
		h.routes = make(map[string]struct{}, len(paths))
		for _, p := range paths {
			h.routes[p] = struct{}{}
		}
	}
}

// New creates a history whose first entry is initial, either an absolute
// URL or an absolute path with optional query and fragment.
func New(initial string, opts ...Option) (*History, error) {
	u, err := url.Parse(initial)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	if !strings.HasPrefix(u.Path, "/") {
		return nil, fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, initial)
	}
	h := &History{entries: []*url.URL{u}}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Location returns a copy of the current location.
func (h *History) Location() url.URL {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return *h.current()
}

// Push resolves target against the current location, checks it against the
// route table and appends it as a new entry.
func (h *History) Push(target string) error {
	h.mu.Lock()
	next, err := h.resolve(target)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	if h.routes != nil {
		if _, ok := h.routes[next.Path]; !ok {
			h.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrUnknownRoute, next.Path)
		}
	}
	h.entries = append(h.entries, next)
	loc := *next
	h.mu.Unlock()

	h.changes.Publish(loc)
	return nil
}

// Replace rewrites the current entry in place without adding history.
func (h *History) Replace(target string) error {
	h.mu.Lock()
	next, err := h.resolve(target)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	h.entries[len(h.entries)-1] = next
	loc := *next
	h.mu.Unlock()

	h.changes.Publish(loc)
	return nil
}

// Len returns the number of history entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Entries returns every entry as a path with query and fragment.
func (h *History) Entries() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.entries))
	for i, e := range h.entries {
		out[i] = PathOf(e)
	}
	return out
}

// Subscribe registers fn for location changes.
func (h *History) Subscribe(fn func(url.URL)) func() {
	return h.changes.Subscribe(fn)
}

func (h *History) current() *url.URL {
	return h.entries[len(h.entries)-1]
}

// resolve must be called with h.mu held.
func (h *History) resolve(target string) (*url.URL, error) {
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("%w: empty target", ErrInvalidURL)
	}
	ref, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	base := h.current()
	next := base.ResolveReference(ref)
	if next.Host != base.Host || next.Scheme != base.Scheme {
		return nil, fmt.Errorf("%w: %s leaves the site", ErrInvalidURL, target)
	}
	return next, nil
}

// PathOf renders u without scheme and host.
func PathOf(u *url.URL) string {
	var b strings.Builder
	b.WriteString(u.EscapedPath())
	if u.RawQuery != "" || u.ForceQuery {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.EscapedFragment())
	}
	return b.String()
}
