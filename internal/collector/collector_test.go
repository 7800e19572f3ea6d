package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appconfig "cexintel/config"
	"cexintel/internal/intel"
	"cexintel/internal/normalize"
	"cexintel/logger"
)

func testClock() func() time.Time {
	now := time.Date(2026, 8, 29, 6, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func newTestCollector(q querier, cfg appconfig.CollectorConfig, domains []string) *Collector {
	return &Collector{
		client: q,
		cfg:    cfg,
		filter: normalize.NewURLFilter(domains),
		log:    logger.GetLogger().WithComponent("collector"),
		now:    testClock(),
	}
}

// fakeQuerier returns canned replies keyed by a substring of the prompt.
type fakeQuerier struct {
	replies map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeQuerier) Query(_ context.Context, prompt string, _ []string) (string, error) {
	f.calls = append(f.calls, prompt)
	for key, err := range f.errs {
		if strings.Contains(prompt, key) {
			return "", err
		}
	}
	for key, reply := range f.replies {
		if strings.Contains(prompt, key) {
			return reply, nil
		}
	}
	return "[]", nil
}

func TestClientQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("content type = %q", got)
		}

		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["model"] != "grok-4-1-fast-reasoning" {
			t.Errorf("model = %v", req["model"])
		}
		tools := req["tools"].([]interface{})
		if len(tools) != 2 {
			t.Errorf("tools = %v", tools)
		}

		fmt.Fprint(w, `{"output":[{"type":"message","role":"assistant","content":[{"type":"text","text":"[{\"title\":\"t\"}]"}]}]}`)
	}))
	defer srv.Close()

	c := NewClient(appconfig.CollectorConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "grok-4-1-fast-reasoning",
		Timeout: 5 * time.Second,
	})
	text, err := c.Query(context.Background(), "prompt", []string{"web_search", "x_search"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if text != `[{"title":"t"}]` {
		t.Errorf("text = %q", text)
	}
}

func TestClientQueryOutputTextVariant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"output":[{"type":"reasoning"},{"type":"message","content":[{"type":"output_text","text":"[]"}]}]}`)
	}))
	defer srv.Close()

	c := NewClient(appconfig.CollectorConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})
	text, err := c.Query(context.Background(), "p", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if text != "[]" {
		t.Errorf("text = %q, want []", text)
	}
}

func TestClientQueryHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(appconfig.CollectorConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})
	if _, err := c.Query(context.Background(), "p", nil); err == nil {
		t.Fatal("expected error on 503 response")
	}
}

func TestClientQueryAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"error":{"message":"invalid api key","code":"auth"}}`)
	}))
	defer srv.Close()

	c := NewClient(appconfig.CollectorConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})
	if _, err := c.Query(context.Background(), "p", nil); err == nil {
		t.Fatal("expected error from API error field")
	}
}

func TestRunAssemblesDayRecord(t *testing.T) {
	q := &fakeQuerier{replies: map[string]string{
		"Kraken": `[{"severity":"high","title":"Withdrawals stuck","description":"Users report frozen withdrawals","source":"coindesk","url":"https://coindesk.com/a/1"}]`,
	}}
	cfg := appconfig.CollectorConfig{
		Exchanges: []string{"Kraken", "OKX"},
		BatchSize: 1,
	}
	c := newTestCollector(q, cfg, nil)

	rec, report, err := c.Run(context.Background(), "2026-08-29", cfg.Exchanges)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Batches != 2 || report.FailedBatches != 0 || report.ParseFailures != 0 {
		t.Errorf("report = %+v", report)
	}
	if report.RunID == "" {
		t.Error("missing run id")
	}
	if rec.Date != "2026-08-29" || len(rec.Alerts) != 1 {
		t.Fatalf("record = %+v", rec)
	}

	a := rec.Alerts[0]
	if a.Exchange != "Kraken" || a.Severity != intel.SeverityHigh {
		t.Errorf("alert = %+v", a)
	}
	// "frozen" is a compliance keyword, filled during the run
	if a.Category != intel.CategoryDisputeCompliance {
		t.Errorf("category = %q, want dispute_compliance", a.Category)
	}
	if len(rec.ExchangesMonitored) != 2 {
		t.Errorf("monitored = %v", rec.ExchangesMonitored)
	}
}

func TestRunDegradesOnBatchFailure(t *testing.T) {
	q := &fakeQuerier{
		replies: map[string]string{"OKX": `[{"severity":"low","title":"minor"}]`},
		errs:    map[string]error{"Kraken": fmt.Errorf("timeout")},
	}
	cfg := appconfig.CollectorConfig{Exchanges: []string{"Kraken", "OKX"}, BatchSize: 1}
	c := newTestCollector(q, cfg, nil)

	rec, report, err := c.Run(context.Background(), "2026-08-29", cfg.Exchanges)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.FailedBatches != 1 {
		t.Errorf("failed batches = %d, want 1", report.FailedBatches)
	}
	if len(rec.Alerts) != 1 || rec.Alerts[0].Exchange != "OKX" {
		t.Errorf("alerts = %+v", rec.Alerts)
	}
}

func TestRunCountsParseFailures(t *testing.T) {
	q := &fakeQuerier{replies: map[string]string{
		"Kraken": `I could not find any structured data today.`,
	}}
	cfg := appconfig.CollectorConfig{Exchanges: []string{"Kraken"}, BatchSize: 1}
	c := newTestCollector(q, cfg, nil)

	rec, report, err := c.Run(context.Background(), "2026-08-29", cfg.Exchanges)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ParseFailures != 1 {
		t.Errorf("parse failures = %d, want 1", report.ParseFailures)
	}
	if len(rec.Alerts) != 0 {
		t.Errorf("alerts = %+v", rec.Alerts)
	}
}

func TestRunExposureSweepDedupes(t *testing.T) {
	q := &fakeQuerier{replies: map[string]string{
		"Kraken":          `[{"severity":"medium","title":"outage","description":"system down"}]`,
		"FinTelegram.com": `[{"exchange_targeted":"Kraken","severity":"high","title":"dup"},{"exchange_targeted":"ShadyEx","severity":"high","title":"exit scam warning","description":"regulatory warning issued"}]`,
	}}
	cfg := appconfig.CollectorConfig{
		Exchanges:     []string{"Kraken"},
		BatchSize:     1,
		ExposureSweep: true,
	}
	c := newTestCollector(q, cfg, nil)

	rec, report, err := c.Run(context.Background(), "2026-08-29", cfg.Exchanges)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Batches != 2 {
		t.Errorf("batches = %d, want 2 (1 exchange + exposure)", report.Batches)
	}
	if len(rec.Alerts) != 2 {
		t.Fatalf("alerts = %+v", rec.Alerts)
	}

	var exposure *intel.Alert
	for i := range rec.Alerts {
		if rec.Alerts[i].Exchange == "ShadyEx" {
			exposure = &rec.Alerts[i]
		}
		if rec.Alerts[i].Title == "dup" {
			t.Errorf("exposure finding for already-covered exchange kept: %+v", rec.Alerts[i])
		}
	}
	if exposure == nil {
		t.Fatal("exposure finding for uncovered exchange missing")
	}
	if exposure.Source != "fintelegram" {
		t.Errorf("exposure source = %q", exposure.Source)
	}
	if !exposure.UnknownExchange {
		t.Error("off-list exchange not flagged")
	}
}

func TestRunStripsHomepageURLs(t *testing.T) {
	q := &fakeQuerier{replies: map[string]string{
		"Kraken": `[{"severity":"low","title":"a","url":"https://www.coindesk.com/"},{"severity":"low","title":"b","url":"https://coindesk.com/article/42"}]`,
	}}
	cfg := appconfig.CollectorConfig{Exchanges: []string{"Kraken"}, BatchSize: 1}
	c := newTestCollector(q, cfg, []string{"coindesk.com"})

	rec, _, err := c.Run(context.Background(), "2026-08-29", cfg.Exchanges)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, a := range rec.Alerts {
		switch a.Title {
		case "a":
			if a.URL != "" {
				t.Errorf("homepage URL not stripped: %q", a.URL)
			}
		case "b":
			if a.URL != "https://coindesk.com/article/42" {
				t.Errorf("deep link altered: %q", a.URL)
			}
		}
	}
}

func TestBatchesChunking(t *testing.T) {
	c := newTestCollector(nil, appconfig.CollectorConfig{BatchSize: 3}, nil)
	got := c.batches([]string{"a", "b", "c", "d", "e", "f", "g"})
	if len(got) != 3 {
		t.Fatalf("batches = %v", got)
	}
	if len(got[0]) != 3 || len(got[2]) != 1 {
		t.Errorf("chunk sizes wrong: %v", got)
	}
}

func TestRunHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := &fakeQuerier{}
	cfg := appconfig.CollectorConfig{Exchanges: []string{"Kraken"}, BatchSize: 1}
	c := newTestCollector(q, cfg, nil)

	if _, _, err := c.Run(ctx, "2026-08-29", cfg.Exchanges); err == nil {
		t.Fatal("expected context error")
	}
	if len(q.calls) != 0 {
		t.Errorf("queries issued after cancel: %d", len(q.calls))
	}
}
