package briefing

import (
	"strings"
	"testing"
	"time"

	"cexintel/internal/diff"
	"cexintel/internal/intel"
	"cexintel/internal/score"
)

func sampleRecord() intel.DayRecord {
	return intel.DayRecord{
		Date:        "2026-08-29",
		CollectedAt: time.Date(2026, 8, 29, 6, 30, 0, 0, time.UTC),
		Alerts: []intel.Alert{
			{
				Exchange:    "Kraken",
				Severity:    intel.SeverityCritical,
				Category:    intel.CategorySecurityAttack,
				Title:       "Hot wallet drained",
				Description: "Attackers moved funds out of the exchange hot wallet overnight.",
			},
			{
				Exchange: "OKX",
				Severity: intel.SeverityHigh,
				Category: intel.CategoryOperationalRisk,
				Title:    "Withdrawals suspended",
			},
		},
	}
}

func TestRenderHeader(t *testing.T) {
	out := Render(sampleRecord(), diff.Result{}, nil)

	for _, want := range []string{
		"CEX Intelligence Daily Briefing",
		"Date: 2026-08-29",
		"Collected: 2026-08-29 06:30:00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("briefing missing %q:\n%s", want, out)
		}
	}
}

func TestRenderPriorityTiers(t *testing.T) {
	out := Render(sampleRecord(), diff.Result{}, nil)

	if !strings.Contains(out, "[CRITICAL] [Kraken] Hot wallet drained") {
		t.Errorf("missing critical line:\n%s", out)
	}
	if !strings.Contains(out, "[HIGH]     [OKX] Withdrawals suspended") {
		t.Errorf("missing high line:\n%s", out)
	}
	if !strings.Contains(out, "Attackers moved funds") {
		t.Errorf("critical description not included:\n%s", out)
	}
}

func TestRenderCapsHighAlerts(t *testing.T) {
	rec := intel.DayRecord{Date: "2026-08-29"}
	for _, title := range []string{"one", "two", "three", "four", "five"} {
		rec.Alerts = append(rec.Alerts, intel.Alert{
			Exchange: "Bybit", Severity: intel.SeverityHigh, Title: title,
		})
	}
	out := Render(rec, diff.Result{}, nil)

	if got := strings.Count(out, "[HIGH]"); got != maxHighAlerts {
		t.Errorf("rendered %d high lines, want %d", got, maxHighAlerts)
	}
	if strings.Contains(out, "four") || strings.Contains(out, "five") {
		t.Errorf("high alerts past the cap leaked into output:\n%s", out)
	}
}

func TestRenderFirstRun(t *testing.T) {
	d := diff.Result{
		NewItems:   sampleRecord().Alerts,
		IsFirstRun: true,
	}
	out := Render(sampleRecord(), d, nil)

	if !strings.Contains(out, "First run: 2 alerts recorded as baseline") {
		t.Errorf("missing first-run baseline note:\n%s", out)
	}
	if strings.Contains(out, "New since yesterday") {
		t.Errorf("first run must not render a comparison section:\n%s", out)
	}
}

func TestRenderNewItemsGroupedByExchange(t *testing.T) {
	d := diff.Result{
		NewItems: []intel.Alert{
			{Exchange: "OKX", Severity: intel.SeverityHigh, Category: intel.CategoryOperationalRisk, Title: "outage"},
			{Exchange: "Binance", Severity: intel.SeverityLow, Title: "minor complaint"},
			{Exchange: "OKX", Severity: intel.SeverityMedium, Category: intel.CategoryDisputeCompliance, Title: "fine"},
		},
		ResolvedItems: []intel.Alert{{Exchange: "Kraken", Title: "stale"}},
	}
	out := Render(intel.DayRecord{Date: "2026-08-29"}, d, nil)

	if !strings.Contains(out, "New since yesterday (3)") {
		t.Errorf("missing new-items count:\n%s", out)
	}
	// alphabetical group order
	binance := strings.Index(out, "Binance (1)")
	okx := strings.Index(out, "OKX (2)")
	if binance < 0 || okx < 0 || binance > okx {
		t.Errorf("exchange groups missing or out of order:\n%s", out)
	}
	if !strings.Contains(out, "[LOW] [general] minor complaint") {
		t.Errorf("uncategorized alert should render as general:\n%s", out)
	}
	if !strings.Contains(out, "Resolved since yesterday: 1") {
		t.Errorf("missing resolved count:\n%s", out)
	}
}

func TestRenderNoNewItems(t *testing.T) {
	out := Render(intel.DayRecord{Date: "2026-08-29"}, diff.Result{}, nil)
	if !strings.Contains(out, "New since yesterday: none") {
		t.Errorf("missing empty-diff line:\n%s", out)
	}
}

func TestRenderStatusOverview(t *testing.T) {
	rec := sampleRecord()
	stats := map[string]score.Stats{
		"Kraken":  {Exchange: "Kraken", Score: 73, Status: score.StatusCritical},
		"OKX":     {Exchange: "OKX", Score: 85, Status: score.StatusWarning},
		"Binance": {Exchange: "Binance", Score: 100, Status: score.StatusNormal},
	}
	out := Render(rec, diff.Result{}, stats)

	if !strings.Contains(out, "[CRIT] Kraken: 1 alerts today (score 73)") {
		t.Errorf("missing Kraken status line:\n%s", out)
	}
	if !strings.Contains(out, "[ OK ] Binance: quiet (score 100)") {
		t.Errorf("missing quiet exchange line:\n%s", out)
	}
	// alphabetical status order
	if strings.Index(out, "Binance: quiet") > strings.Index(out, "Kraken: 1 alerts") {
		t.Errorf("status lines out of order:\n%s", out)
	}
}

func TestRenderExposureSweep(t *testing.T) {
	rec := intel.DayRecord{
		Date: "2026-08-29",
		Alerts: []intel.Alert{
			{Exchange: "Bitget", Source: "fintelegram", Severity: intel.SeverityMedium, Title: "exposure report"},
			{Exchange: "Bitget", Source: "web", Severity: intel.SeverityLow, Title: "other"},
		},
	}
	out := Render(rec, diff.Result{}, nil)
	if !strings.Contains(out, "FinTelegram exposure sweep: 1 mentions") {
		t.Errorf("missing exposure sweep line:\n%s", out)
	}
}

func TestRenderDeterministic(t *testing.T) {
	rec := sampleRecord()
	d := diff.Result{NewItems: rec.Alerts}
	stats := map[string]score.Stats{
		"Kraken": {Score: 73, Status: score.StatusCritical},
		"OKX":    {Score: 85, Status: score.StatusWarning},
	}
	first := Render(rec, d, stats)
	for i := 0; i < 5; i++ {
		if got := Render(rec, d, stats); got != first {
			t.Fatal("Render output changed between identical calls")
		}
	}
}
