// Converts one model reply (variable shape, possibly malformed) into
// canonical alerts for one exchange/source. Parse failures degrade to an
// empty list so a bad batch never aborts the run.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cexintel/internal/intel"
)

// Options carries the request context the reply was produced for.
type Options struct {
	// Exchange the request targeted. Items carrying their own exchange
	// field (e.g. the exposure-site sweep) override it.
	Exchange string
	// Source label recorded as provenance when an item names none.
	Source string
	// Now stamps DiscoveredAt on every produced alert.
	Now time.Time
	// Canonical is the monitored exchange list; alerts naming an
	// exchange outside it keep the free-text name but are flagged.
	Canonical []string
	// Tags are appended to every produced alert (source channel labels).
	Tags []string
}

// Alerts normalizes a raw model reply into a list of alerts, one per
// input item. A non-nil error reports an unusable payload; the returned
// list is then empty and the caller counts the failure. Missing fields
// map to safe defaults: severity low, category unset for the
// classifier, empty strings for text.
func Alerts(payload []byte, opts Options) ([]intel.Alert, error) {
	items, err := decodeItems(payload)
	if err != nil {
		return nil, err
	}

	alerts := make([]intel.Alert, 0, len(items))
	for _, item := range items {
		alerts = append(alerts, fromItem(item, opts))
	}
	return alerts, nil
}

// decodeItems accepts the shapes the model has been observed to return:
// a bare array of items, or an object wrapping the array under one of
// the known keys.
func decodeItems(payload []byte) ([]map[string]json.RawMessage, error) {
	payload = []byte(strings.TrimSpace(string(payload)))
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	// Models wrap JSON in markdown fences often enough to handle here.
	payload = stripFences(payload)

	var arr []map[string]json.RawMessage
	if err := json.Unmarshal(payload, &arr); err == nil {
		return arr, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, fmt.Errorf("payload is neither array nor object: %w", err)
	}
	for _, key := range []string{"alerts", "all_alerts", "items", "findings"} {
		raw, ok := lookup(obj, key)
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &arr); err != nil {
			return nil, fmt.Errorf("field %q is not an alert array: %w", key, err)
		}
		return arr, nil
	}
	return nil, fmt.Errorf("no alert array found in object payload")
}

func stripFences(payload []byte) []byte {
	s := strings.TrimSpace(string(payload))
	if !strings.HasPrefix(s, "```") {
		return payload
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return []byte(strings.TrimSpace(s))
}

func fromItem(item map[string]json.RawMessage, opts Options) intel.Alert {
	a := intel.Alert{
		Exchange:     opts.Exchange,
		Source:       opts.Source,
		DiscoveredAt: opts.Now,
		Tags:         append([]string(nil), opts.Tags...),
	}

	if v := text(item, "exchange_targeted", "exchange"); v != "" {
		a.Exchange = v
	}
	a.Title = text(item, "title")
	a.Description = text(item, "description", "summary", "content")
	a.URL = text(item, "url")
	a.Subcategory = text(item, "subcategory")
	a.EventDate = text(item, "event_date", "date")
	if v := text(item, "source", "source_name"); v != "" {
		a.Source = v
	}

	a.Severity = intel.ParseSeverity(text(item, "severity"))
	if cat, ok := intel.ParseCategory(text(item, "category")); ok {
		a.Category = cat
	}

	a.UnknownExchange = !onList(a.Exchange, opts.Canonical)
	return a
}

// text returns the first non-empty string value among the named keys,
// matched case-insensitively.
func text(item map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := lookup(item, key)
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func lookup(item map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	if raw, ok := item[key]; ok {
		return raw, true
	}
	for k, raw := range item {
		if strings.EqualFold(k, key) {
			return raw, true
		}
	}
	return nil, false
}

func onList(exchange string, canonical []string) bool {
	for _, c := range canonical {
		if strings.EqualFold(c, exchange) {
			return true
		}
	}
	return false
}
