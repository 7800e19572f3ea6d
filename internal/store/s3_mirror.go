package store

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "cexintel/config"
	"cexintel/internal/intel"
	"cexintel/logger"
)

const s3PutTimeout = 30 * time.Second

// S3Mirror uploads day-record bytes to an S3 bucket so a separate
// serving path can read them without access to the local store.
type S3Mirror struct {
	client *s3.Client
	bucket string
	prefix string
	log    *logger.Entry
}

// NewS3Mirror configures the AWS SDK from the storage config. Static
// credentials from the config take precedence; otherwise the default
// provider chain applies.
func NewS3Mirror(cfg appconfig.S3Config) (*S3Mirror, error) {
	log := logger.GetLogger().WithComponent("s3_mirror")
	ctx := context.Background()

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS configuration: %w", err)
	}
	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	log.WithFields(logger.Fields{
		"bucket": cfg.Bucket,
		"region": cfg.Region,
	}).Debug("s3 mirror initialized")

	return &S3Mirror{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		log:    log,
	}, nil
}

func (m *S3Mirror) Name() string { return "s3:" + m.bucket }

func (m *S3Mirror) Write(date string, _ intel.DayRecord, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), s3PutTimeout)
	defer cancel()

	key := path.Join(m.prefix, date+".json")
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", m.bucket, key, err)
	}

	m.log.WithFields(logger.Fields{"key": key, "bytes": len(data)}).Info("day record mirrored to s3")
	return nil
}
