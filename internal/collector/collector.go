// Package collector drives the daily intelligence sweep: one model
// query per exchange batch, an optional exposure-site sweep, then
// normalization, URL filtering and keyword classification into a
// finished day record.
package collector

import (
	"context"
	"strings"
	"time"

	appconfig "cexintel/config"
	"cexintel/internal/aggregate"
	"cexintel/internal/classify"
	"cexintel/internal/intel"
	"cexintel/internal/normalize"
	"cexintel/logger"

	"github.com/google/uuid"
)

const exposureSource = "fintelegram"

// querier is the model-call seam; *Client satisfies it.
type querier interface {
	Query(ctx context.Context, prompt string, tools []string) (string, error)
}

// Collector owns one collection run end to end.
type Collector struct {
	client querier
	cfg    appconfig.CollectorConfig
	filter *normalize.URLFilter
	log    *logger.Entry
	now    func() time.Time
}

// RunReport summarizes a collection run for logging and metrics.
type RunReport struct {
	RunID         string        `json:"run_id"`
	Date          string        `json:"date"`
	Batches       int           `json:"batches"`
	FailedBatches int           `json:"failed_batches"`
	ParseFailures int           `json:"parse_failures"`
	AlertCount    int           `json:"alert_count"`
	Duration      time.Duration `json:"duration"`
}

// New wires a collector from the application config.
func New(cfg appconfig.CollectorConfig, filterCfg appconfig.FilterConfig) *Collector {
	return &Collector{
		client: NewClient(cfg),
		cfg:    cfg,
		filter: normalize.NewURLFilter(filterCfg.GenericDomains),
		log:    logger.GetLogger().WithComponent("collector"),
		now:    time.Now,
	}
}

// Run performs the sweep for one date over the given exchanges and
// returns the assembled day record. Batch failures and unparseable
// replies degrade to empty and are counted in the report; Run only
// returns an error when the context is cancelled.
func (c *Collector) Run(ctx context.Context, date string, exchanges []string) (intel.DayRecord, RunReport, error) {
	report := RunReport{
		RunID: uuid.NewString(),
		Date:  date,
	}
	start := c.now()
	log := c.log.WithFields(logger.Fields{"run_id": report.RunID, "date": date})
	log.WithFields(logger.Fields{"exchanges": len(exchanges)}).Info("collection run started")

	var batches [][]intel.Alert
	for _, batch := range c.batches(exchanges) {
		if err := ctx.Err(); err != nil {
			return intel.DayRecord{}, report, err
		}
		report.Batches++

		alerts, ok := c.sweepBatch(ctx, log, batch, &report)
		if !ok {
			continue
		}
		batches = append(batches, alerts)
	}

	if c.cfg.ExposureSweep {
		if err := ctx.Err(); err != nil {
			return intel.DayRecord{}, report, err
		}
		report.Batches++
		if alerts, ok := c.sweepExposure(ctx, log, exchanges, batches, &report); ok {
			batches = append(batches, alerts)
		}
	}

	// filter and classify before aggregation so the category counts in
	// the record reflect the filled-in categories
	for i := range batches {
		batches[i] = c.filter.Apply(batches[i])
		batches[i] = classify.Fill(batches[i])
	}

	rec := aggregate.BuildDayRecord(date, c.now(), exchanges, batches...)
	report.AlertCount = len(rec.Alerts)
	report.Duration = c.now().Sub(start)

	log.WithFields(logger.Fields{
		"alerts":         report.AlertCount,
		"failed_batches": report.FailedBatches,
		"parse_failures": report.ParseFailures,
		"duration_ms":    report.Duration.Milliseconds(),
	}).Info("collection run finished")
	return rec, report, nil
}

// sweepBatch queries one exchange batch and normalizes the reply.
func (c *Collector) sweepBatch(ctx context.Context, log *logger.Entry, batch []string, report *RunReport) ([]intel.Alert, bool) {
	text, err := c.client.Query(ctx, exchangePrompt(batch), c.cfg.Tools)
	if err != nil {
		report.FailedBatches++
		log.WithError(err).WithFields(logger.Fields{"batch": batch}).Warn("batch query failed")
		return nil, false
	}

	alerts, err := normalize.Alerts([]byte(text), normalize.Options{
		Exchange:  batch[0],
		Source:    "grok",
		Now:       c.now(),
		Canonical: c.cfg.Exchanges,
	})
	if err != nil {
		report.ParseFailures++
		log.WithError(err).WithFields(logger.Fields{"batch": batch}).Warn("batch reply unusable")
		return nil, false
	}
	log.WithFields(logger.Fields{"batch": batch, "alerts": len(alerts)}).Debug("batch swept")
	return alerts, true
}

// sweepExposure runs the FinTelegram sweep and drops findings for
// exchanges the regular sweep already covered.
func (c *Collector) sweepExposure(ctx context.Context, log *logger.Entry, exchanges []string, collected [][]intel.Alert, report *RunReport) ([]intel.Alert, bool) {
	text, err := c.client.Query(ctx, exposurePrompt(), []string{"web_search"})
	if err != nil {
		report.FailedBatches++
		log.WithError(err).Warn("exposure sweep failed")
		return nil, false
	}

	alerts, err := normalize.Alerts([]byte(text), normalize.Options{
		Exchange:  "Unknown",
		Source:    exposureSource,
		Now:       c.now(),
		Canonical: exchanges,
		Tags:      []string{exposureSource},
	})
	if err != nil {
		report.ParseFailures++
		log.WithError(err).Warn("exposure reply unusable")
		return nil, false
	}

	covered := make(map[string]bool)
	for _, batch := range collected {
		for _, a := range batch {
			covered[strings.ToLower(a.Exchange)] = true
		}
	}
	kept := alerts[:0]
	for _, a := range alerts {
		if covered[strings.ToLower(a.Exchange)] {
			continue
		}
		a.Source = exposureSource
		kept = append(kept, a)
	}
	log.WithFields(logger.Fields{"alerts": len(kept)}).Debug("exposure sweep finished")
	return kept, true
}

// batches splits the exchange list into query groups of the configured
// size, preserving order.
func (c *Collector) batches(exchanges []string) [][]string {
	size := c.cfg.BatchSize
	if size <= 0 {
		size = 1
	}
	var out [][]string
	for start := 0; start < len(exchanges); start += size {
		end := start + size
		if end > len(exchanges) {
			end = len(exchanges)
		}
		out = append(out, exchanges[start:end])
	}
	return out
}
