// Package pixel sends page-view events to ad/analytics pixel endpoints.
package pixel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/okian/funnel/internal/domain/model"
	"github.com/okian/funnel/pkg/logger"
	"github.com/okian/funnel/pkg/metrics"
)

const (
	defaultTimeout = 3 * time.Second
	eventName      = "PageView"

	// bodyDrainLimit bounds how much of a response we read before closing it.
	bodyDrainLimit = 4 << 10
)

// Sender issues one GET per configured endpoint for every page view.
type Sender struct {
	endpoints []string
	pixelID   string
	client    *http.Client
	timeout   time.Duration
	logger    logger.Logger
}

// New creates a pixel sender. Endpoints must be absolute http(s) URLs.
func New(endpoints []string, opts ...Option) (*Sender, error) {
	s := &Sender{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	for _, ep := range endpoints {
		u, err := url.Parse(ep)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, ep)
		}
		s.endpoints = append(s.endpoints, ep)
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: s.timeout}
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("pixel")
	}
	return s, nil
}

// Endpoints returns the configured endpoint list.
func (s *Sender) Endpoints() []string {
	return slices.Clone(s.endpoints)
}

// Send fires the event at every endpoint. All endpoints are attempted; the
// returned error joins every failure.
func (s *Sender) Send(ctx context.Context, e model.PageView) error { //nolint:gocritic // hugeParam: value semantics for queue events
	var errs []error
	for _, ep := range s.endpoints {
		if err := s.sendOne(ctx, ep, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Sender) sendOne(ctx context.Context, endpoint string, e model.PageView) error { //nolint:gocritic // hugeParam: value semantics for queue events
	target, err := s.requestURL(endpoint, e)
	if err != nil {
		metrics.RecordPixelFailed("request")
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		metrics.RecordPixelFailed("request")
		return fmt.Errorf("build pixel request: %w", err)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	metrics.RecordPixelSendLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordPixelFailed("network")
		return fmt.Errorf("%w: %s: %w", ErrSendFailed, endpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, bodyDrainLimit))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordPixelFailed("status")
		return fmt.Errorf("%w: %s returned %s", ErrSendFailed, endpoint, resp.Status)
	}

	metrics.RecordPixelSent()
	s.logger.Debug(ctx, "pixel sent",
		logger.String("endpoint", endpoint),
		logger.String("event_id", e.EventID),
		logger.String("route", e.Route),
	)
	return nil
}

// requestURL merges the event fields into the endpoint's own query.
func (s *Sender) requestURL(endpoint string, e model.PageView) (string, error) { //nolint:gocritic // hugeParam: value semantics for queue events
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}
	q := u.Query()
	if s.pixelID != "" {
		q.Set("id", s.pixelID)
	}
	q.Set("ev", eventName)
	q.Set("eid", e.EventID)
	q.Set("dl", e.URL)
	q.Set("rt", e.Route)
	if !e.TS.IsZero() {
		q.Set("ts", strconv.FormatInt(e.TS.UnixMilli(), 10))
	}
	for name, value := range e.Params {
		q.Set(name, value)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
