// Package storage archives batch reports in S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	appbilling "github.com/antaeus/billing/internal/application/billing"
	"github.com/antaeus/billing/internal/infrastructure/config"
	"go.uber.org/zap"
)

const (
	defaultRegion = "us-east-1"
	defaultPrefix = "billing-reports"
)

// ObjectAPI is the subset of the S3 client used by the archive
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3ReportArchive writes every finished batch report as a JSON object.
// Works with AWS S3 and S3-compatible stores such as MinIO.
type S3ReportArchive struct {
	client ObjectAPI
	bucket string
	prefix string
	logger *zap.Logger
}

// ArchiveOption configures an S3ReportArchive
type ArchiveOption func(*S3ReportArchive)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ArchiveOption {
	return func(a *S3ReportArchive) {
		a.logger = logger
	}
}

// NewS3ReportArchive builds an S3 client from cfg. Without static keys the
// default AWS credential chain is used.
func NewS3ReportArchive(ctx context.Context, cfg config.StorageConfig, opts ...ArchiveOption) (*S3ReportArchive, error) {
	if cfg.Bucket == "" {
		return nil, ErrBucketRequired
	}

	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
			return nil, ErrIncompleteCredentials
		}
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return NewS3ReportArchiveWithClient(client, cfg.Bucket, cfg.Prefix, opts...), nil
}

// NewS3ReportArchiveWithClient creates an archive on an existing client
func NewS3ReportArchiveWithClient(client ObjectAPI, bucket, prefix string, opts ...ArchiveOption) *S3ReportArchive {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}
	a := &S3ReportArchive{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// EnsureBucket creates the bucket if it does not exist
func (a *S3ReportArchive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket %s: %w", a.bucket, err)
	}

	a.logger.Info("Creating report bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", a.bucket, err)
	}
	return nil
}

// Key returns the object key a report is stored under: prefix/YYYY/MM/DD/<batch id>.json
func (a *S3ReportArchive) Key(report appbilling.BatchReport) string {
	started := report.StartedAt.UTC()
	return path.Join(a.prefix, started.Format("2006/01/02"), report.BatchID.String()+".json")
}

// ReportBatch uploads the report
func (a *S3ReportArchive) ReportBatch(ctx context.Context, report appbilling.BatchReport) error {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal batch report: %w", err)
	}

	key := a.Key(report)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"batch-id": report.BatchID.String(),
			"total":    fmt.Sprint(report.Total),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload batch report %s: %w", key, err)
	}

	a.logger.Debug("Batch report archived", zap.String("bucket", a.bucket), zap.String("key", key))
	return nil
}

// Load reads back an archived report
func (a *S3ReportArchive) Load(ctx context.Context, key string) (appbilling.BatchReport, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return appbilling.BatchReport{}, fmt.Errorf("%w: %s", ErrReportNotFound, key)
		}
		return appbilling.BatchReport{}, fmt.Errorf("failed to download batch report %s: %w", key, err)
	}
	defer out.Body.Close()

	var report appbilling.BatchReport
	if err := json.NewDecoder(out.Body).Decode(&report); err != nil {
		return appbilling.BatchReport{}, fmt.Errorf("failed to decode batch report %s: %w", key, err)
	}
	return report, nil
}

// Bucket returns the bucket name
func (a *S3ReportArchive) Bucket() string {
	return a.bucket
}

var _ appbilling.BatchReporter = (*S3ReportArchive)(nil)
