// Risk scoring over a trailing window of day records. Pure and
// stateless: identical input records always produce identical output.
package score

import (
	"strings"

	"cexintel/internal/intel"
)

// Status is the tri-state health label derived from an exchange's
// recent alert history.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// deductions per qualifying alert, keyed by severity.
var deductions = map[intel.Severity]int{
	intel.SeverityCritical: 25,
	intel.SeverityHigh:     15,
	intel.SeverityMedium:   5,
	intel.SeverityLow:      2,
}

// Stats is the derived risk projection for one exchange.
type Stats struct {
	Exchange    string `json:"exchange"`
	TotalAlerts int    `json:"total_alerts"`
	Critical    int    `json:"critical"`
	High        int    `json:"high"`
	Medium      int    `json:"medium"`
	Low         int    `json:"low"`
	Score       int    `json:"score"`
	Status      Status `json:"status"`
}

// Compute scores one exchange from its in-window alerts: start at 100,
// subtract per alert by severity, floor at 0. Status is critical when
// any critical alert exists or the score drops below 60, warning when
// any high alert exists or the score drops below 80.
func Compute(exchange string, alerts []intel.Alert) Stats {
	s := Stats{Exchange: exchange}
	deduction := 0
	for _, a := range alerts {
		s.TotalAlerts++
		deduction += deductions[a.Severity]
		switch a.Severity {
		case intel.SeverityCritical:
			s.Critical++
		case intel.SeverityHigh:
			s.High++
		case intel.SeverityMedium:
			s.Medium++
		case intel.SeverityLow:
			s.Low++
		}
	}

	s.Score = 100 - deduction
	if s.Score < 0 {
		s.Score = 0
	}

	switch {
	case s.Critical > 0 || s.Score < 60:
		s.Status = StatusCritical
	case s.High > 0 || s.Score < 80:
		s.Status = StatusWarning
	default:
		s.Status = StatusNormal
	}
	return s
}

// Window scores every exchange appearing in the supplied records or
// seed set, plus the monitored lists, so quiet exchanges still report
// a full score of 100 and normal status. The seed is the optional
// bulk-imported historical alert set.
func Window(records []intel.DayRecord, seed []intel.Alert, monitored []string) map[string]Stats {
	byExchange := make(map[string][]intel.Alert)
	canon := make(map[string]string)

	name := func(raw string) string {
		key := strings.ToLower(strings.TrimSpace(raw))
		if existing, ok := canon[key]; ok {
			return existing
		}
		canon[key] = raw
		return raw
	}

	for _, ex := range monitored {
		byExchange[name(ex)] = byExchange[name(ex)]
	}
	for _, rec := range records {
		for _, ex := range rec.ExchangesMonitored {
			byExchange[name(ex)] = byExchange[name(ex)]
		}
		for _, a := range rec.Alerts {
			ex := name(a.Exchange)
			byExchange[ex] = append(byExchange[ex], a)
		}
	}
	for _, a := range seed {
		ex := name(a.Exchange)
		byExchange[ex] = append(byExchange[ex], a)
	}

	out := make(map[string]Stats, len(byExchange))
	for ex, alerts := range byExchange {
		out[ex] = Compute(ex, alerts)
	}
	return out
}
