package classify

import (
	"testing"

	"cexintel/internal/intel"
)

func TestClassifyKeywords(t *testing.T) {
	cases := []struct {
		title, description string
		want               intel.Category
	}{
		{"Exchange hacked", "hot wallet drained overnight", intel.CategorySecurityAttack},
		{"DDoS attack", "platform unreachable for users", intel.CategorySecurityAttack},
		{"CEO arrested at airport", "pending investigation", intel.CategoryOperationalRisk},
		{"Bankruptcy filing", "insolvency proceedings started", intel.CategoryOperationalRisk},
		{"Fined by regulator", "penalty for AML violations", intel.CategoryDisputeCompliance},
		{"Mysterious event", "nothing matches any keyword here", intel.CategoryDisputeCompliance},
	}
	for _, c := range cases {
		if got := Classify(c.title, c.description); got != c.want {
			t.Errorf("Classify(%q, %q) = %q, want %q", c.title, c.description, got, c.want)
		}
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	// matches both "hack" (security) and "lawsuit" (compliance);
	// security_attack is evaluated first.
	got := Classify("Lawsuit over hack", "users sue after funds stolen")
	if got != intel.CategorySecurityAttack {
		t.Fatalf("Classify = %q, want security_attack", got)
	}
}

func TestFillAssignsExactlyOneCategory(t *testing.T) {
	alerts := []intel.Alert{
		{Title: "Exploit found", Description: "api vulnerability"},
		{Title: "Outage", Description: "system down for 4 hours"},
		{Title: "General chatter", Description: "no signal"},
	}
	out := Fill(alerts)
	for i, a := range out {
		known := false
		for _, c := range intel.Categories {
			if a.Category == c {
				known = true
			}
		}
		if !known {
			t.Errorf("alert %d got unknown category %q", i, a.Category)
		}
	}
}

func TestFillNeverOverwrites(t *testing.T) {
	alerts := []intel.Alert{
		{Title: "Exchange hacked", Description: "funds stolen", Category: intel.CategoryDisputeCompliance},
	}
	out := Fill(alerts)
	if out[0].Category != intel.CategoryDisputeCompliance {
		t.Fatalf("Fill overwrote an existing category: %q", out[0].Category)
	}
	// re-running changes nothing
	again := Fill(out)
	if again[0].Category != intel.CategoryDisputeCompliance {
		t.Fatalf("Fill not idempotent on categorized alerts")
	}
}

func TestMigrateRecord(t *testing.T) {
	rec := intel.DayRecord{
		Date: "2026-08-28",
		Alerts: []intel.Alert{
			{Title: "Breach disclosed", Description: "wallet compromised"},
			{Title: "Already set", Category: intel.CategoryOperationalRisk},
		},
	}
	if !MigrateRecord(&rec) {
		t.Fatal("expected migration to report a change")
	}
	if rec.Alerts[0].Category != intel.CategorySecurityAttack {
		t.Errorf("alert 0 category = %q", rec.Alerts[0].Category)
	}
	if rec.Alerts[1].Category != intel.CategoryOperationalRisk {
		t.Errorf("alert 1 category overwritten: %q", rec.Alerts[1].Category)
	}
	if MigrateRecord(&rec) {
		t.Fatal("second migration run must be a no-op")
	}
}
