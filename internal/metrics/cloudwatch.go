// Package metrics publishes per-run counters to CloudWatch. When the
// publisher is disabled or the AWS configuration cannot be loaded,
// publishing turns into a no-op and the run proceeds normally.
package metrics

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	appconfig "cexintel/config"
	"cexintel/internal/collector"
	"cexintel/internal/intel"
	"cexintel/logger"
)

const publishTimeout = 15 * time.Second

type cloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Publisher sends collection-run counters to one CloudWatch namespace.
type Publisher struct {
	client    cloudWatchAPI
	namespace string
	log       *logger.Entry
}

// NewPublisher builds a publisher from the metrics config. A disabled
// config or an AWS setup failure yields a publisher whose PublishRun
// does nothing.
func NewPublisher(cfg appconfig.CloudWatchConfig) *Publisher {
	log := logger.GetLogger().WithComponent("metrics")
	p := &Publisher{namespace: cfg.Namespace, log: log}
	if p.namespace == "" {
		p.namespace = "CEXIntel"
	}
	if !cfg.Enabled {
		return p
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return p
	}

	p.client = cloudwatch.NewFromConfig(awsCfg)
	log.WithFields(logger.Fields{
		"region":    awsCfg.Region,
		"namespace": p.namespace,
	}).Info("initialized CloudWatch client")
	return p
}

// PublishRun emits the run counters and per-severity alert counts.
// Publish failures are logged and swallowed.
func (p *Publisher) PublishRun(ctx context.Context, rec intel.DayRecord, report collector.RunReport) {
	if p.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	severities := map[intel.Severity]int{}
	for _, a := range rec.Alerts {
		severities[a.Severity]++
	}

	dims := []cwtypes.Dimension{{
		Name:  aws.String("component"),
		Value: aws.String("collector"),
	}}
	data := []cwtypes.MetricDatum{
		datum("AlertsCollected", float64(report.AlertCount), cwtypes.StandardUnitCount, dims),
		datum("FailedBatches", float64(report.FailedBatches), cwtypes.StandardUnitCount, dims),
		datum("ParseFailures", float64(report.ParseFailures), cwtypes.StandardUnitCount, dims),
		datum("RunDuration", report.Duration.Seconds(), cwtypes.StandardUnitSeconds, dims),
	}
	for sev, count := range severities {
		sevDims := append([]cwtypes.Dimension{{
			Name:  aws.String("severity"),
			Value: aws.String(string(sev)),
		}}, dims...)
		data = append(data, datum("AlertsBySeverity", float64(count), cwtypes.StandardUnitCount, sevDims))
	}

	if _, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(p.namespace),
		MetricData: data,
	}); err != nil {
		p.log.WithError(err).Warn("failed to publish CloudWatch metrics")
		return
	}
	p.log.WithFields(logger.Fields{
		"run_id":  report.RunID,
		"metrics": len(data),
	}).Debug("published metrics to CloudWatch")
}

func datum(name string, value float64, unit cwtypes.StandardUnit, dims []cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Dimensions: dims,
		Unit:       unit,
		Value:      aws.Float64(value),
	}
}
