// Package model contains the values passed between the tracking layers.
package model

import "time"

// PageView is one page-view pixel event, produced when a page instance
// mounts and consumed by the dispatch workers.
type PageView struct {
	EventID string            // unique id of this pixel event
	ViewID  string            // id of the mounted page instance; the dedupe key
	Route   string            // route path of the page, e.g. "/quiz"
	URL     string            // full location at mount, query included
	Params  map[string]string // campaign parameters on the location
	TS      time.Time         // mount time
}
