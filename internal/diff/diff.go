// Day-over-day comparison of two day records by content fingerprint.
// Pure computation: loading yesterday's record is the caller's job.
package diff

import "cexintel/internal/intel"

// Result is the outcome of comparing today's record against the prior
// day's.
type Result struct {
	// NewItems are today's alerts whose fingerprint was absent
	// yesterday.
	NewItems []intel.Alert `json:"new_items"`
	// ResolvedItems are yesterday's alerts whose fingerprint is absent
	// today.
	ResolvedItems []intel.Alert `json:"resolved_items"`
	// IsFirstRun is set when no prior-day record exists; everything is
	// then new and downstream rendering explains the missing baseline.
	IsFirstRun bool `json:"is_first_run"`
}

// Compare diffs today's record against yesterday's. Pass a nil
// yesterday when no prior record exists.
func Compare(today intel.DayRecord, yesterday *intel.DayRecord) Result {
	if yesterday == nil {
		return Result{
			NewItems:      append([]intel.Alert(nil), today.Alerts...),
			ResolvedItems: []intel.Alert{},
			IsFirstRun:    true,
		}
	}

	prior := intel.FingerprintSet(yesterday.Alerts)
	current := intel.FingerprintSet(today.Alerts)

	res := Result{NewItems: []intel.Alert{}, ResolvedItems: []intel.Alert{}}
	for _, a := range today.Alerts {
		if _, seen := prior[a.Fingerprint()]; !seen {
			res.NewItems = append(res.NewItems, a)
		}
	}
	for _, a := range yesterday.Alerts {
		if _, seen := current[a.Fingerprint()]; !seen {
			res.ResolvedItems = append(res.ResolvedItems, a)
		}
	}
	return res
}
