package attribution

import (
	"net/url"
	"slices"
	"strings"
)

// Campaign parameter names recognized by the funnel, in template order.
const (
	UTMSource   = "utm_source"
	UTMCampaign = "utm_campaign"
	UTMMedium   = "utm_medium"
	UTMContent  = "utm_content"
	UTMTerm     = "utm_term"
)

// Names lists the recognized campaign parameter names.
var Names = []string{UTMSource, UTMCampaign, UTMMedium, UTMContent, UTMTerm}

// Param is one decoded query parameter.
type Param struct {
	Name  string
	Value string
}

// IsRecognized reports whether name is a campaign parameter name.
func IsRecognized(name string) bool {
	return slices.Contains(Names, name)
}

// ParseQuery decodes a raw query string keeping the order of appearance.
// Segments that fail to decode are kept verbatim.
func ParseQuery(raw string) []Param {
	raw = strings.TrimPrefix(raw, "?")
	if raw == "" {
		return nil
	}
	var out []Param
	for _, seg := range strings.Split(raw, "&") {
		if seg == "" {
			continue
		}
		name, value, _ := strings.Cut(seg, "=")
		out = append(out, Param{Name: unescape(name), Value: unescape(value)})
	}
	return out
}

// Campaign returns the recognized parameters of raw, first occurrence per
// name, in order of appearance.
func Campaign(raw string) []Param {
	var out []Param
	seen := make(map[string]struct{}, len(Names))
	for _, p := range ParseQuery(raw) {
		if !IsRecognized(p.Name) {
			continue
		}
		if _, dup := seen[p.Name]; dup {
			continue
		}
		seen[p.Name] = struct{}{}
		out = append(out, p)
	}
	return out
}

// HasAny reports whether raw carries at least one recognized parameter.
func HasAny(raw string) bool {
	for _, p := range ParseQuery(raw) {
		if IsRecognized(p.Name) {
			return true
		}
	}
	return false
}

// AppendQuery appends params to raw without touching the existing segments.
func AppendQuery(raw string, params []Param) string {
	if len(params) == 0 {
		return raw
	}
	var b strings.Builder
	b.WriteString(raw)
	for _, p := range params {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// WithParams returns target with every param whose name is not already in
// target's query appended before the fragment.
func WithParams(target string, params []Param) string {
	rest, fragment, hasFragment := strings.Cut(target, "#")
	path, query, _ := strings.Cut(rest, "?")

	present := make(map[string]struct{})
	for _, p := range ParseQuery(query) {
		present[p.Name] = struct{}{}
	}
	missing := make([]Param, 0, len(params))
	for _, p := range params {
		if _, ok := present[p.Name]; ok {
			continue
		}
		present[p.Name] = struct{}{}
		missing = append(missing, p)
	}

	query = AppendQuery(query, missing)
	var b strings.Builder
	b.WriteString(path)
	if query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	if hasFragment {
		b.WriteByte('#')
		b.WriteString(fragment)
	}
	return b.String()
}

func unescape(s string) string {
	v, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return v
}
