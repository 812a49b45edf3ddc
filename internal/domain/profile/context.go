package profile

import "context"

type ctxKey struct{}

// NewContext returns a copy of ctx that provides s to everything below it.
func NewContext(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// Lookup returns the store provided by ctx, if any.
func Lookup(ctx context.Context) (*Store, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(ctxKey{}).(*Store)
	return s, ok && s != nil
}

// FromContext returns the store provided by ctx. Reaching for the profile
// where none was provided is a wiring bug, so it panics.
func FromContext(ctx context.Context) *Store {
	s, ok := Lookup(ctx)
	if !ok {
		panic("profile: store accessed outside its provider")
	}
	return s
}
