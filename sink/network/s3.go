package network

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/bitrise-io/go-utils/v2/log"
)

// ClientConfig ...
type ClientConfig struct {
	Bucket string
	Region string

	// Static credentials take precedence over CredentialsFile.
	// When neither is set, the SDK default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// CredentialsFile is a path to a pre-provisioned shared credentials file.
	// When set, the file must exist at client construction time.
	CredentialsFile string
}

type s3Client struct {
	client *s3.Client
	bucket string
	region string
	logger log.Logger
}

// NewClient builds an S3-backed API bound to a single bucket and region.
// Credential problems are construction-time errors, never per-upload errors.
func NewClient(ctx context.Context, config ClientConfig, logger log.Logger) (API, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket must not be empty")
	}

	cfg, err := loadAWSConfig(ctx, config, logger)
	if err != nil {
		return nil, fmt.Errorf("load aws credentials: %w", err)
	}

	return &s3Client{
		client: s3.NewFromConfig(*cfg),
		bucket: config.Bucket,
		region: config.Region,
		logger: logger,
	}, nil
}

func (c *s3Client) BucketExists(ctx context.Context) (bool, error) {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		var apiError smithy.APIError
		if errors.As(err, &apiError) {
			switch apiError.ErrorCode() {
			case "NotFound", "NoSuchBucket":
				return false, nil
			}
		}
		// Redirects (bucket owned in another region) and permission failures
		// end up here and are surfaced verbatim.
		return false, fmt.Errorf("head bucket: %w", err)
	}
	return true, nil
}

func (c *s3Client) CreateBucket(ctx context.Context) error {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(c.bucket),
	}
	// us-east-1 is the default location and must not be sent as a constraint.
	if c.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.region),
		}
	}

	_, err := c.client.CreateBucket(ctx, input)
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}

	c.logger.Debugf("Created bucket %s in %s", c.bucket, c.region)
	return nil
}

func (c *s3Client) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func loadAWSConfig(ctx context.Context, config ClientConfig, logger log.Logger) (*aws.Config, error) {
	if config.Region == "" {
		return nil, fmt.Errorf("region must not be empty")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
		awsconfig.WithHTTPClient(defaultHTTPClient()),
	}

	switch {
	case config.AccessKeyID != "" && config.SecretAccessKey != "":
		logger.Debugf("Using static AWS credentials")
		opts = append(opts,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, "")))
	case config.CredentialsFile != "":
		if _, err := os.Stat(config.CredentialsFile); err != nil {
			return nil, fmt.Errorf("credentials file %s: %w", config.CredentialsFile, err)
		}
		logger.Debugf("Using shared credentials file %s", config.CredentialsFile)
		opts = append(opts,
			awsconfig.WithSharedCredentialsFiles([]string{config.CredentialsFile}))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config, %v", err)
	}

	return &cfg, nil
}

// defaultHTTPClient is tuned for many concurrent, long-lived uploads.
// Per-request deadlines come from contexts, not a client-wide timeout.
func defaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 0,
		Transport: &http.Transport{
			MaxIdleConns:        50,
			MaxConnsPerHost:     20,
			IdleConnTimeout:     10 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
			Proxy:               http.ProxyFromEnvironment,
		},
	}
}
