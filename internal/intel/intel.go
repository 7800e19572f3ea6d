package intel

import (
	"fmt"
	"strings"
	"time"
)

// Severity is the closed severity taxonomy used across the pipeline.
// The ordering critical > high > medium > low drives sorting and scoring.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank returns the numeric weight of a severity, highest first.
// Unknown values rank below low so they never displace real tiers.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// ParseSeverity coerces a free-form severity string to the taxonomy.
// Unrecognized input maps to low rather than failing, keeping the
// pipeline append-only regardless of upstream data quality.
func ParseSeverity(raw string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(raw))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	case SeverityLow:
		return SeverityLow
	}
	return SeverityLow
}

// Category is the closed intelligence category taxonomy.
type Category string

const (
	CategorySecurityAttack    Category = "security_attack"
	CategoryDisputeCompliance Category = "dispute_compliance"
	CategoryOperationalRisk   Category = "operational_risk"
)

// Categories lists the taxonomy in its fixed evaluation order.
var Categories = []Category{
	CategorySecurityAttack,
	CategoryDisputeCompliance,
	CategoryOperationalRisk,
}

// ParseCategory returns the canonical category for a free-form string.
// The second return reports whether the input named a known category;
// unknown and empty inputs return an empty Category so the classifier
// can fill them in later.
func ParseCategory(raw string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategorySecurityAttack:
		return CategorySecurityAttack, true
	case CategoryDisputeCompliance:
		return CategoryDisputeCompliance, true
	case CategoryOperationalRisk:
		return CategoryOperationalRisk, true
	}
	return "", false
}

// Alert is one normalized intelligence item about one exchange.
type Alert struct {
	Exchange    string   `json:"exchange"`
	Category    Category `json:"category"`
	Subcategory string   `json:"subcategory,omitempty"`
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	// EventDate is the best-effort calendar date the underlying event
	// occurred. The upstream model sometimes returns approximations, so
	// it stays a string rather than a parsed time.
	EventDate    string    `json:"event_date,omitempty"`
	Source       string    `json:"source"`
	URL          string    `json:"url"`
	DiscoveredAt time.Time `json:"discovered_at"`
	Tags         []string  `json:"tags,omitempty"`
	// UnknownExchange flags alerts whose exchange name is not on the
	// canonical monitored list. The name is kept as free text.
	UnknownExchange bool `json:"unknown_exchange,omitempty"`
}

// fingerprintDescriptionLen is the number of leading description
// characters that participate in the dedup fingerprint.
const fingerprintDescriptionLen = 50

// Fingerprint is the cross-day deduplication key: exchange, title and
// the first 50 characters of the description. Re-collecting the same
// real-world event collapses to one logical item across days. The key
// is heuristic: identical titles for distinct events over-merge, and
// paraphrased titles for the same event under-merge.
func (a Alert) Fingerprint() string {
	desc := a.Description
	if runes := []rune(desc); len(runes) > fingerprintDescriptionLen {
		desc = string(runes[:fingerprintDescriptionLen])
	}
	return fmt.Sprintf("%s:%s:%s", a.Exchange, a.Title, desc)
}

// FingerprintSet builds the fingerprint lookup for a list of alerts.
func FingerprintSet(alerts []Alert) map[string]struct{} {
	set := make(map[string]struct{}, len(alerts))
	for _, a := range alerts {
		set[a.Fingerprint()] = struct{}{}
	}
	return set
}

// DayRecord is the full set of alerts and derived summary for one
// calendar date. It is written once per collection run; re-collecting
// the same day fully replaces the previous record.
type DayRecord struct {
	Date               string           `json:"date"`
	CollectedAt        time.Time        `json:"collected_at"`
	ExchangesMonitored []string         `json:"exchanges_monitored"`
	Alerts             []Alert          `json:"alerts"`
	Summary            string           `json:"summary"`
	CategoryCounts     map[Category]int `json:"category_counts,omitempty"`
}

// AlertsFor returns the record's alerts for one exchange, in collection
// order. Matching is case-insensitive since the model is not consistent
// about exchange name casing.
func (r DayRecord) AlertsFor(exchange string) []Alert {
	var out []Alert
	for _, a := range r.Alerts {
		if strings.EqualFold(a.Exchange, exchange) {
			out = append(out, a)
		}
	}
	return out
}

// SortBySeverity orders alerts by severity tier (critical first), then
// by event date descending, preserving input order within ties.
func SortBySeverity(alerts []Alert) []Alert {
	out := append([]Alert(nil), alerts...)
	// insertion sort keeps the sort stable without pulling in sort.SliceStable
	// semantics on a copy; alert lists are small.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func less(a, b Alert) bool {
	if a.Severity.Rank() != b.Severity.Rank() {
		return a.Severity.Rank() > b.Severity.Rank()
	}
	return a.EventDate > b.EventDate
}
