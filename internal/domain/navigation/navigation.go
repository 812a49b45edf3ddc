// Package navigation is the single choke-point through which the funnel
// moves between routes. Every target leaves with the campaign parameters of
// the current location attached.
package navigation

import (
	"context"
	"fmt"

	"github.com/okian/funnel/internal/domain/attribution"
	"github.com/okian/funnel/pkg/logger"
	"github.com/okian/funnel/pkg/metrics"
)

// Router performs a client-side route change.
type Router interface {
	Push(target string) error
}

// ParamSource yields the campaign parameters to carry along.
type ParamSource interface {
	Params() []attribution.Param
}

// Navigator composes campaign parameters onto targets before routing.
type Navigator struct {
	router Router
	params ParamSource
	logger logger.Logger
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithLogger sets the navigator logger.
func WithLogger(l logger.Logger) Option {
	return func(n *Navigator) {
		if l != nil {
			n.logger = l
		}
	}
}

// New creates a Navigator. A missing router or parameter source means the
// host environment is broken and is reported as ErrNoRouter.
func New(router Router, params ParamSource, opts ...Option) (*Navigator, error) {
	if router == nil {
		return nil, fmt.Errorf("%w: router is nil", ErrNoRouter)
	}
	if params == nil {
		return nil, fmt.Errorf("%w: parameter source is nil", ErrNoRouter)
	}
	n := &Navigator{router: router, params: params}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = logger.Get().Named("navigation")
	}
	return n, nil
}

// MustNew is like New but panics on a broken host environment.
func MustNew(router Router, params ParamSource, opts ...Option) *Navigator {
	n, err := New(router, params, opts...)
	if err != nil {
		panic(err)
	}
	return n
}

// Navigate routes to target with the current campaign parameters appended.
// Parameters already on target are left alone. Router failures are returned
// as-is: they indicate a misconfigured route, not a runtime condition.
func (n *Navigator) Navigate(ctx context.Context, target string) error {
	dest := attribution.WithParams(target, n.params.Params())
	if err := n.router.Push(dest); err != nil {
		metrics.RecordNavigation("error")
		n.logger.Error(ctx, "navigation failed", logger.String("target", dest), logger.Error(err))
		return err
	}
	metrics.RecordNavigation("ok")
	n.logger.Debug(ctx, "navigated", logger.String("target", dest))
	return nil
}

// Href returns the target Navigate would route to, without routing.
func (n *Navigator) Href(target string) string {
	return attribution.WithParams(target, n.params.Params())
}
