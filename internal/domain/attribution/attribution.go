// Package attribution keeps the visitor's advertising-campaign parameters and
// first-access marker in place for the whole browser profile.
//
// On every page load the Manager makes sure a first-access timestamp exists
// and that the current location carries campaign parameters: either the ones
// the traffic source put there, which are never touched, or the default
// template when the visitor arrived without any.
package attribution

import (
	"context"
	"net/url"
	"time"

	"github.com/okian/funnel/internal/adapters/storage"
	"github.com/okian/funnel/pkg/logger"
	"github.com/okian/funnel/pkg/metrics"
	"github.com/okian/funnel/pkg/notify"
)

// TimestampLayout matches the output of JavaScript's Date.toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// DefaultTemplate is injected when the visitor arrives without any campaign
// parameter. The placeholders are resolved by the ad platform.
var DefaultTemplate = []Param{
	{Name: UTMSource, Value: "FB"},
	{Name: UTMCampaign, Value: "{{campaign.name}}|{{campaign.id}}"},
	{Name: UTMMedium, Value: "{{adset.name}}|{{adset.id}}"},
	{Name: UTMContent, Value: "{{ad.name}}|{{ad.id}}"},
	{Name: UTMTerm, Value: "{{placement}}"},
}

// Location is the current page location with in-place replacement.
type Location interface {
	Location() url.URL
	Replace(target string) error
}

// Record is the attribution state visible to subscribers.
type Record struct {
	FirstAccessTimestamp string
	CampaignParams       []Param
}

// Manager owns the first-access marker and the campaign parameters.
type Manager struct {
	kv       storage.KV
	location Location
	now      func() time.Time
	template []Param
	logger   logger.Logger
	changes  notify.Hub[Record]
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock used for the first-access timestamp.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithTemplate replaces the default template.
func WithTemplate(params []Param) Option {
	return func(m *Manager) {
		if len(params) > 0 {
			m.template = append([]Param(nil), params...)
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Manager. A nil location disables the URL half of
// initialization; the timestamp half still runs.
func New(kv storage.KV, location Location, opts ...Option) *Manager {
	m := &Manager{
		kv:       kv,
		location: location,
		now:      time.Now,
		template: DefaultTemplate,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logger.Get().Named("attribution")
	}
	return m
}

// EnsureInitialized writes the first-access timestamp when missing and
// injects the default template into the current location when it carries no
// campaign parameter. It is idempotent and never fails.
func (m *Manager) EnsureInitialized(ctx context.Context) {
	m.ensureFirstAccess(ctx)
	if m.ensureCampaign(ctx) {
		m.changes.Publish(m.Record(ctx))
	}
}

func (m *Manager) ensureFirstAccess(ctx context.Context) {
	if m.kv == nil {
		return
	}
	if _, ok := m.kv.Get(ctx, storage.KeyFirstAccessTimestamp); ok {
		return
	}
	ts := m.now().UTC().Format(TimestampLayout)
	if m.kv.Set(ctx, storage.KeyFirstAccessTimestamp, ts) {
		metrics.RecordFirstAccessWrite()
		m.logger.Debug(ctx, "first access recorded", logger.String("timestamp", ts))
	}
}

// ensureCampaign reports whether the location was rewritten.
func (m *Manager) ensureCampaign(ctx context.Context) bool {
	if m.location == nil {
		return false
	}
	loc := m.location.Location()
	if HasAny(loc.RawQuery) {
		return false
	}

	present := make(map[string]struct{})
	for _, p := range ParseQuery(loc.RawQuery) {
		present[p.Name] = struct{}{}
	}
	missing := make([]Param, 0, len(m.template))
	for _, p := range m.template {
		if _, ok := present[p.Name]; !ok {
			missing = append(missing, p)
		}
	}

	next := loc
	next.RawQuery = AppendQuery(loc.RawQuery, missing)
	next.ForceQuery = false
	target := next.EscapedPath()
	if next.RawQuery != "" {
		target += "?" + next.RawQuery
	}
	if loc.Fragment != "" {
		target += "#" + loc.EscapedFragment()
	}

	if err := m.location.Replace(target); err != nil {
		m.logger.Warn(ctx, "could not rewrite location with campaign template", logger.Error(err))
		return false
	}
	metrics.RecordAttributionInjection()
	m.logger.Info(ctx, "campaign template injected", logger.String("path", loc.Path))
	return true
}

// Params returns the campaign parameters on the current location.
func (m *Manager) Params() []Param {
	if m.location == nil {
		return nil
	}
	loc := m.location.Location()
	return Campaign(loc.RawQuery)
}

// FirstAccess returns the stored first-access timestamp.
func (m *Manager) FirstAccess(ctx context.Context) (string, bool) {
	if m.kv == nil {
		return "", false
	}
	return m.kv.Get(ctx, storage.KeyFirstAccessTimestamp)
}

// Record returns the current attribution state.
func (m *Manager) Record(ctx context.Context) Record {
	ts, _ := m.FirstAccess(ctx)
	return Record{FirstAccessTimestamp: ts, CampaignParams: m.Params()}
}

// Subscribe registers fn for attribution changes.
func (m *Manager) Subscribe(fn func(Record)) func() {
	return m.changes.Subscribe(fn)
}
