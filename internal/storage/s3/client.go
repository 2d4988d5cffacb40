package s3

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsconfig "github.com/scttfrdmn/cargoship/pkg/aws/config"
	cargoships3 "github.com/scttfrdmn/cargoship/pkg/aws/s3"

	"github.com/cloudkit/cloudkit/internal/logging"
	"github.com/cloudkit/cloudkit/pkg/errors"
)

const (
	multipartThreshold = 32 * 1024 * 1024
	multipartChunkSize = 16 * 1024 * 1024
)

// S3Transport is the Transport backed by the AWS SDK, with uploads
// optionally routed through cargoship.
type S3Transport struct {
	client      *s3.Client
	presigner   *s3.PresignClient
	transporter *cargoships3.Transporter
	bucket      string
	logger      *slog.Logger
}

// NewS3Transport creates the S3 client for the configured bucket.
func NewS3Transport(ctx context.Context, cfg PluginConfiguration, options Options, logger *slog.Logger) (*S3Transport, error) {
	if cfg.Bucket() == "" {
		return nil, errors.Storage(errors.ErrCodeInvalidConfig,
			"bucket name cannot be empty",
			"Ensure the storage section of your configuration file contains a bucket_name.")
	}
	logger = logging.OrDefault(logger).With("component", "s3-transport", "bucket", cfg.Bucket())

	loadOptions := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region()),
	}
	if options.AccessKeyID != "" {
		loadOptions = append(loadOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(options.AccessKeyID, options.SecretAccessKey, options.SessionToken)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryStorage, errors.ErrCodeInvalidConfig,
			"failed to load AWS config").
			WithSuggestion("Check your AWS credentials and region settings.")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if options.Endpoint != "" {
			o.BaseEndpoint = aws.String(options.Endpoint)
		}
		if options.ForcePathStyle {
			o.UsePathStyle = true
		}
		if options.UseAccelerate {
			o.UseAccelerate = true
		}
	})

	t := &S3Transport{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket(),
		logger:    logger,
	}

	if options.TransferOptimization {
		concurrency := options.UploadConcurrency
		if concurrency <= 0 {
			concurrency = DefaultOptions().UploadConcurrency
		}
		t.transporter = cargoships3.NewTransporter(client, awsconfig.S3Config{
			Bucket:             cfg.Bucket(),
			StorageClass:       awsconfig.StorageClassStandard,
			MultipartThreshold: multipartThreshold,
			MultipartChunkSize: multipartChunkSize,
			Concurrency:        concurrency,
		})
		logger.Info("CargoShip transfer optimization enabled", "concurrency", concurrency)
	}

	return t, nil
}

// PutObject uploads data, preferring the cargoship transporter when enabled
// and falling back to a plain PutObject.
func (t *S3Transport) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	if t.transporter != nil {
		result, err := t.transporter.Upload(ctx, cargoships3.Archive{
			Key:          key,
			Reader:       bytes.NewReader(data),
			Size:         int64(len(data)),
			StorageClass: awsconfig.StorageClassStandard,
			Metadata: map[string]string{
				"content-type": contentType,
			},
		})
		if err == nil {
			t.logger.Debug("CargoShip upload completed",
				"key", key,
				"size", len(data),
				"throughput", result.Throughput,
				"duration", result.Duration)
			return nil
		}
		t.logger.Warn("CargoShip upload failed, falling back to standard S3", "key", key, "error", err)
	}

	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return translateError(err, "PutObject", t.bucket, key)
	}
	return nil
}

// DeleteObject removes the object. S3 reports success for missing keys.
func (t *S3Transport) DeleteObject(ctx context.Context, key string) error {
	_, err := t.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return translateError(err, "DeleteObject", t.bucket, key)
	}
	return nil
}

// PresignGetObject returns a presigned GET URL valid for expires.
func (t *S3Transport) PresignGetObject(ctx context.Context, key string, expires time.Duration) (string, error) {
	req, err := t.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", translateError(err, "PresignGetObject", t.bucket, key)
	}
	return req.URL, nil
}

// ListObjects returns one page of objects under prefix.
func (t *S3Transport) ListObjects(ctx context.Context, prefix string, limit int, token string) (ObjectPage, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(t.bucket),
		Prefix: aws.String(prefix),
	}
	if limit > 0 {
		if limit > 0x7FFFFFFF {
			limit = 0x7FFFFFFF
		}
		input.MaxKeys = aws.Int32(int32(limit))
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	result, err := t.client.ListObjectsV2(ctx, input)
	if err != nil {
		return ObjectPage{}, translateError(err, "ListObjects", t.bucket, prefix)
	}

	page := ObjectPage{
		Objects:   make([]Object, 0, len(result.Contents)),
		NextToken: aws.ToString(result.NextContinuationToken),
	}
	for _, obj := range result.Contents {
		page.Objects = append(page.Objects, Object{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
			ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
		})
	}
	return page, nil
}

// HealthCheck verifies the bucket is reachable with the current credentials.
func (t *S3Transport) HealthCheck(ctx context.Context) error {
	_, err := t.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(t.bucket),
	})
	if err != nil {
		return translateError(err, "HeadBucket", t.bucket, "")
	}
	return nil
}

func (t *S3Transport) String() string {
	return fmt.Sprintf("s3://%s", t.bucket)
}
