package normalize

import (
	"strings"

	"cexintel/internal/intel"
)

// URLFilter suppresses low-value source links before they reach
// storage. Only exact homepage matches against the configured bare
// domains are rejected; deep links on the same domain are kept.
type URLFilter struct {
	homepages map[string]struct{}
}

// schemes are the homepage prefixes a bare domain is matched under.
var schemes = []string{"https://", "http://", "https://www.", "http://www."}

// NewURLFilter builds a filter from a list of bare domains (exchange
// homepages, generic social/news domains).
func NewURLFilter(domains []string) *URLFilter {
	f := &URLFilter{homepages: make(map[string]struct{}, len(domains)*len(schemes))}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		for _, scheme := range schemes {
			f.homepages[scheme+d] = struct{}{}
		}
	}
	return f
}

// Clean returns the URL unchanged when it points at a specific article,
// or the empty string when it is a rejected generic homepage. Cleaning
// is idempotent: Clean(Clean(u)) == Clean(u).
func (f *URLFilter) Clean(raw string) string {
	url := strings.ToLower(strings.TrimSpace(raw))
	url = strings.TrimSuffix(url, "/")
	if _, generic := f.homepages[url]; generic {
		return ""
	}
	return raw
}

// Apply cleans the URL of every alert in place and returns the slice
// for chaining.
func (f *URLFilter) Apply(alerts []intel.Alert) []intel.Alert {
	for i := range alerts {
		alerts[i].URL = f.Clean(alerts[i].URL)
	}
	return alerts
}
