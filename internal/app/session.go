package service

import (
	"context"
	"errors"
	"net/url"

	"github.com/okian/funnel/internal/adapters/history"
	"github.com/okian/funnel/internal/domain/attribution"
	"github.com/okian/funnel/internal/domain/navigation"
	"github.com/okian/funnel/internal/domain/profile"
	"github.com/okian/funnel/internal/domain/quiz"
	"github.com/okian/funnel/internal/domain/tracking"
)

// ErrNotStarted is returned when a session is requested before Start.
var ErrNotStarted = errors.New("service not started")

// Session is one visitor's page session: a location with history, the
// attribution and profile state bound to it, and navigation between pages.
type Session struct {
	svc         *Service
	history     *history.History
	attribution *attribution.Manager
	navigator   *navigation.Navigator
	profile     *profile.Store
}

// NewSession opens landing as the first page of a visitor. Attribution is
// initialized before anything else looks at the location. The returned
// context provides the visitor's profile store.
func (s *Service) NewSession(ctx context.Context, landing string) (context.Context, *Session, error) {
	s.mu.RLock()
	started, kv := s.started, s.kv
	s.mu.RUnlock()
	if !started {
		return ctx, nil, ErrNotStarted
	}

	h, err := history.New(landing, history.WithRoutes(s.routes.Entry, s.routes.Quiz, s.routes.PostQuiz))
	if err != nil {
		return ctx, nil, err
	}
	attr := attribution.New(kv, h, attribution.WithClock(s.now))
	attr.EnsureInitialized(ctx)

	nav, err := navigation.New(h, attr)
	if err != nil {
		return ctx, nil, err
	}

	store := profile.New(ctx, kv)
	sess := &Session{
		svc:         s,
		history:     h,
		attribution: attr,
		navigator:   nav,
		profile:     store,
	}
	return profile.NewContext(ctx, store), sess, nil
}

// Mount records a page view of the current location and returns the view.
// Call it once per page shown; re-tracking the returned view does nothing.
func (ss *Session) Mount(ctx context.Context) tracking.View {
	loc := ss.history.Location()
	view := tracking.View{
		ID:    tracking.NewViewID(),
		Route: loc.Path,
		URL:   loc.String(),
	}
	ss.TrackView(ctx, view)
	return view
}

// TrackView fires the pixel for view at most once.
func (ss *Session) TrackView(ctx context.Context, view tracking.View) {
	ss.svc.mu.RLock()
	tracker := ss.svc.tracker
	ss.svc.mu.RUnlock()
	if tracker != nil {
		tracker.TrackPageView(ctx, view)
	}
}

// Navigate goes to target keeping the visitor's campaign parameters.
func (ss *Session) Navigate(ctx context.Context, target string) error {
	return ss.navigator.Navigate(ctx, target)
}

// StartQuiz navigates to the quiz page and returns a fresh machine for it.
func (ss *Session) StartQuiz(ctx context.Context, opts ...quiz.MachineOption) (*quiz.Machine, error) {
	if err := ss.Navigate(ctx, ss.svc.routes.Quiz); err != nil {
		return nil, err
	}
	return quiz.New(ss.svc.catalog, ss.navigator, quiz.Routes{
		Entry:    ss.svc.routes.Entry,
		PostQuiz: ss.svc.routes.PostQuiz,
	}, opts...)
}

// Location returns the current location.
func (ss *Session) Location() url.URL {
	return ss.history.Location()
}

// History returns the visited entries, oldest first.
func (ss *Session) History() []string {
	return ss.history.Entries()
}

// Attribution returns the attribution manager of the session.
func (ss *Session) Attribution() *attribution.Manager {
	return ss.attribution
}

// Profile returns the profile store of the session.
func (ss *Session) Profile() *profile.Store {
	return ss.profile
}

// OnLocationChange registers fn for every location change.
func (ss *Session) OnLocationChange(fn func(url.URL)) func() {
	return ss.history.Subscribe(fn)
}
