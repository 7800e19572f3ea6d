package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	appconfig "cexintel/config"
	"cexintel/internal/collector"
	"cexintel/internal/intel"
	"cexintel/logger"
)

type captureAPI struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (c *captureAPI) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	c.inputs = append(c.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, c.err
}

func sampleRun() (intel.DayRecord, collector.RunReport) {
	rec := intel.DayRecord{
		Date: "2026-08-29",
		Alerts: []intel.Alert{
			{Exchange: "Kraken", Severity: intel.SeverityCritical},
			{Exchange: "OKX", Severity: intel.SeverityLow},
			{Exchange: "OKX", Severity: intel.SeverityLow},
		},
	}
	report := collector.RunReport{
		RunID:         "run-1",
		Date:          "2026-08-29",
		Batches:       3,
		FailedBatches: 1,
		ParseFailures: 0,
		AlertCount:    3,
		Duration:      42 * time.Second,
	}
	return rec, report
}

func TestNewPublisherDisabled(t *testing.T) {
	p := NewPublisher(appconfig.CloudWatchConfig{Enabled: false})
	if p.client != nil {
		t.Fatal("disabled config must not build a client")
	}
	// no-op, must not panic
	rec, report := sampleRun()
	p.PublishRun(context.Background(), rec, report)
}

func TestPublishRunEmitsCounters(t *testing.T) {
	api := &captureAPI{}
	p := &Publisher{client: api, namespace: "CEXIntel", log: logger.GetLogger().WithComponent("metrics")}

	rec, report := sampleRun()
	p.PublishRun(context.Background(), rec, report)

	if len(api.inputs) != 1 {
		t.Fatalf("PutMetricData calls = %d, want 1", len(api.inputs))
	}
	in := api.inputs[0]
	if *in.Namespace != "CEXIntel" {
		t.Errorf("namespace = %q", *in.Namespace)
	}

	values := map[string]float64{}
	for _, d := range in.MetricData {
		name := *d.MetricName
		if name == "AlertsBySeverity" {
			for _, dim := range d.Dimensions {
				if *dim.Name == "severity" {
					name = name + "/" + *dim.Value
				}
			}
		}
		values[name] = *d.Value
	}

	want := map[string]float64{
		"AlertsCollected":           3,
		"FailedBatches":             1,
		"ParseFailures":             0,
		"RunDuration":               42,
		"AlertsBySeverity/critical": 1,
		"AlertsBySeverity/low":      2,
	}
	for name, v := range want {
		if values[name] != v {
			t.Errorf("%s = %v, want %v", name, values[name], v)
		}
	}
}

func TestPublishRunSwallowsAPIFailure(t *testing.T) {
	api := &captureAPI{err: context.DeadlineExceeded}
	p := &Publisher{client: api, namespace: "CEXIntel", log: logger.GetLogger().WithComponent("metrics")}

	rec, report := sampleRun()
	// must not panic or propagate
	p.PublishRun(context.Background(), rec, report)
}
