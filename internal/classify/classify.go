// Keyword fallback categorizer for alerts the model returned without a
// category. The rule table is evaluated in fixed order; the first
// category with a matching keyword wins.
package classify

import (
	"strings"

	"cexintel/internal/intel"
)

type rule struct {
	category intel.Category
	keywords []string
}

// rules are evaluated top to bottom: an alert matching both a security
// keyword and a compliance keyword classifies as security_attack.
var rules = []rule{
	{intel.CategorySecurityAttack, []string{
		"hack", "hacked", "breach", "exploit", "stolen", "drain", "theft",
		"ddos", "ransomware", "malware", "phishing",
		"vulnerability", "bug", "glitch",
		"unauthorized access", "private key", "wallet compromised",
	}},
	{intel.CategoryOperationalRisk, []string{
		"ceo arrested", "founder detained", "executive arrested",
		"bankruptcy", "insolvency", "liquidation",
		"withdrawal suspended", "liquidity crisis", "run on",
		"massive layoff", "office closed", "shutdown",
		"system down", "maintenance", "outage",
	}},
	{intel.CategoryDisputeCompliance, []string{
		"regulatory", "compliance", "fine", "penalty", "sanction",
		"license revoked", "suspended", "banned", "blacklist",
		"aml", "kyc", "money laundering",
		"frozen", "seized", "confiscated",
		"lawsuit", "legal action", "investigation",
		"user complaint", "controversy", "fud",
	}},
}

// Classify returns the category for an alert's title and description
// using case-insensitive substring matching. Alerts matching nothing
// fall into dispute_compliance, the catch-all bucket for ambiguous or
// general controversy.
func Classify(title, description string) intel.Category {
	text := strings.ToLower(title + " " + description)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return r.category
			}
		}
	}
	return intel.CategoryDisputeCompliance
}

// Fill assigns a category to every alert lacking one. Already-set
// categories are never overwritten, so Fill is safe to re-run as a
// migration over previously stored alerts.
func Fill(alerts []intel.Alert) []intel.Alert {
	for i := range alerts {
		if alerts[i].Category == "" {
			alerts[i].Category = Classify(alerts[i].Title, alerts[i].Description)
		}
	}
	return alerts
}

// MigrateRecord runs Fill over a stored day record and reports whether
// anything changed.
func MigrateRecord(rec *intel.DayRecord) bool {
	changed := false
	for i := range rec.Alerts {
		if rec.Alerts[i].Category == "" {
			rec.Alerts[i].Category = Classify(rec.Alerts[i].Title, rec.Alerts[i].Description)
			changed = true
		}
	}
	return changed
}
