// Merges the normalized alerts from all collection batches of one run
// into a single day record with a deterministic summary sentence.
package aggregate

import (
	"fmt"
	"strings"
	"time"

	"cexintel/internal/intel"
)

// noIncidentSummary is the fixed sentence emitted for a quiet day.
const noIncidentSummary = "No incidents reported across monitored exchanges."

// BuildDayRecord concatenates the per-batch alert lists in collection
// order into one record for the run's date. Same-day duplicates from
// overlapping searches are kept as-is; deduplication happens cross-day
// in the differ. Exchanges with zero alerts stay on the monitored list,
// absence of alerts reads as normal.
func BuildDayRecord(date string, collectedAt time.Time, exchanges []string, batches ...[]intel.Alert) intel.DayRecord {
	var alerts []intel.Alert
	for _, batch := range batches {
		alerts = append(alerts, batch...)
	}

	counts := make(map[intel.Category]int, len(intel.Categories))
	for _, c := range intel.Categories {
		counts[c] = 0
	}
	for _, a := range alerts {
		if _, known := intel.ParseCategory(string(a.Category)); known {
			counts[a.Category]++
		} else {
			// uncategorized leftovers land in the catch-all bucket
			counts[intel.CategoryDisputeCompliance]++
		}
	}

	return intel.DayRecord{
		Date:               date,
		CollectedAt:        collectedAt,
		ExchangesMonitored: append([]string(nil), exchanges...),
		Alerts:             alerts,
		Summary:            Summary(alerts),
		CategoryCounts:     counts,
	}
}

// Summary derives the one-line summary: the dominant severity tier
// present, its alert count, and up to three distinct exchange names
// from that tier in first-seen order.
func Summary(alerts []intel.Alert) string {
	if len(alerts) == 0 {
		return noIncidentSummary
	}

	dominant := intel.SeverityLow
	for _, a := range alerts {
		if a.Severity.Rank() > dominant.Rank() {
			dominant = a.Severity
		}
	}

	count := 0
	var exchanges []string
	seen := make(map[string]struct{})
	for _, a := range alerts {
		if a.Severity != dominant {
			continue
		}
		count++
		key := strings.ToLower(a.Exchange)
		if _, dup := seen[key]; dup || len(exchanges) >= 3 {
			continue
		}
		seen[key] = struct{}{}
		exchanges = append(exchanges, a.Exchange)
	}

	noun := "alerts"
	if count == 1 {
		noun = "alert"
	}
	return fmt.Sprintf("%d %s-severity %s involving %s.", count, dominant, noun, joinNames(exchanges))
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return "unnamed exchanges"
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}
