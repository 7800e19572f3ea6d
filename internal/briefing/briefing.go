// Package briefing renders a day record, its day-over-day diff and the
// per-exchange risk stats into a plain-text daily briefing.
package briefing

import (
	"fmt"
	"sort"
	"strings"

	"cexintel/internal/diff"
	"cexintel/internal/intel"
	"cexintel/internal/score"
)

const (
	rule             = "============================================================"
	maxHighAlerts    = 3
	maxPerExchange   = 3
	descriptionLimit = 100
)

// Render produces the daily briefing text. Output is deterministic for
// identical inputs: exchange groups are printed in alphabetical order.
func Render(rec intel.DayRecord, d diff.Result, stats map[string]score.Stats) string {
	var b strings.Builder

	b.WriteString(rule + "\n")
	b.WriteString("CEX Intelligence Daily Briefing\n")
	fmt.Fprintf(&b, "Date: %s\n", rec.Date)
	fmt.Fprintf(&b, "Collected: %s\n", rec.CollectedAt.Format("2006-01-02 15:04:05"))
	b.WriteString(rule + "\n")

	writeAlertTiers(&b, rec.Alerts)
	writeNewItems(&b, d)
	writeStatusOverview(&b, rec, stats)
	writeExposure(&b, rec.Alerts)

	if rec.Summary != "" {
		fmt.Fprintf(&b, "\nSummary: %s\n", rec.Summary)
	}

	b.WriteString("\n" + rule + "\n")
	return b.String()
}

func writeAlertTiers(b *strings.Builder, alerts []intel.Alert) {
	var critical, high []intel.Alert
	for _, a := range alerts {
		switch a.Severity {
		case intel.SeverityCritical:
			critical = append(critical, a)
		case intel.SeverityHigh:
			high = append(high, a)
		}
	}
	if len(critical) == 0 && len(high) == 0 {
		return
	}

	b.WriteString("\nPriority Alerts\n")
	for _, a := range critical {
		fmt.Fprintf(b, "  [CRITICAL] [%s] %s\n", a.Exchange, a.Title)
		if a.Description != "" {
			fmt.Fprintf(b, "             %s\n", truncate(a.Description, descriptionLimit))
		}
	}
	for i, a := range high {
		if i == maxHighAlerts {
			break
		}
		fmt.Fprintf(b, "  [HIGH]     [%s] %s\n", a.Exchange, a.Title)
	}
}

func writeNewItems(b *strings.Builder, d diff.Result) {
	if d.IsFirstRun {
		fmt.Fprintf(b, "\nFirst run: %d alerts recorded as baseline, no comparison available.\n", len(d.NewItems))
		return
	}
	if len(d.NewItems) == 0 {
		b.WriteString("\nNew since yesterday: none\n")
	} else {
		fmt.Fprintf(b, "\nNew since yesterday (%d)\n", len(d.NewItems))

		byExchange := make(map[string][]intel.Alert)
		for _, a := range d.NewItems {
			byExchange[a.Exchange] = append(byExchange[a.Exchange], a)
		}
		for _, ex := range sortedKeys(byExchange) {
			items := byExchange[ex]
			fmt.Fprintf(b, "  %s (%d)\n", ex, len(items))
			for i, a := range items {
				if i == maxPerExchange {
					break
				}
				category := string(a.Category)
				if category == "" {
					category = "general"
				}
				fmt.Fprintf(b, "    [%s] [%s] %s\n", strings.ToUpper(string(a.Severity)), category, a.Title)
			}
		}
	}
	if n := len(d.ResolvedItems); n > 0 {
		fmt.Fprintf(b, "Resolved since yesterday: %d\n", n)
	}
}

func writeStatusOverview(b *strings.Builder, rec intel.DayRecord, stats map[string]score.Stats) {
	if len(stats) == 0 {
		return
	}
	b.WriteString("\nExchange Status\n")
	for _, ex := range sortedKeys(stats) {
		s := stats[ex]
		count := len(rec.AlertsFor(ex))
		if count == 0 {
			fmt.Fprintf(b, "  [%s] %s: quiet (score %d)\n", statusLabel(s.Status), ex, s.Score)
		} else {
			fmt.Fprintf(b, "  [%s] %s: %d alerts today (score %d)\n", statusLabel(s.Status), ex, count, s.Score)
		}
	}
}

func writeExposure(b *strings.Builder, alerts []intel.Alert) {
	n := 0
	for _, a := range alerts {
		if a.Source == "fintelegram" {
			n++
		}
	}
	if n > 0 {
		fmt.Fprintf(b, "\nFinTelegram exposure sweep: %d mentions\n", n)
	}
}

func statusLabel(s score.Status) string {
	switch s {
	case score.StatusCritical:
		return "CRIT"
	case score.StatusWarning:
		return "WARN"
	default:
		return " OK "
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
