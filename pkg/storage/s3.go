package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options configures an S3Storage
type S3Options struct {
	Bucket    string
	Region    string
	Prefix    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Storage implements Storage interface using AWS S3
type S3Storage struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Storage creates a new S3 storage instance and checks that the bucket
// is reachable
func NewS3Storage(ctx context.Context, opts S3Options) (*S3Storage, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}

	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "exports/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var cfg aws.Config
	var err error

	if opts.AccessKey != "" && opts.SecretKey != "" {
		cfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
		)
	} else {
		// Default credentials chain (IAM role, environment variables, etc.)
		cfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *s3.Client
	if opts.Endpoint != "" {
		// S3-compatible services
		client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		})
	} else {
		client = s3.NewFromConfig(cfg)
	}

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(opts.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access S3 bucket '%s': %w", opts.Bucket, err)
	}

	log.Printf("[STORAGE] S3 storage initialized: bucket=%s, region=%s, prefix=%s", opts.Bucket, region, prefix)

	return &S3Storage{
		client: client,
		bucket: opts.Bucket,
		prefix: prefix,
	}, nil
}

// Save uploads an export
func (s *S3Storage) Save(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.prefix + name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("failed to save export to S3: %w", err)
	}

	log.Printf("[STORAGE] Export uploaded: %s (%d bytes)", s.Location(name), len(data))
	return nil
}

// Load downloads an export
func (s *S3Storage) Load(ctx context.Context, name string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + name),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) || strings.Contains(err.Error(), "NotFound") {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load export from S3: %w", err)
	}
	defer func() {
		_ = result.Body.Close()
	}()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 response: %w", err)
	}
	return data, nil
}

// List returns the names of the CSV objects under the prefix
func (s *S3Storage) List(ctx context.Context) ([]string, error) {
	var names []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list S3 objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil || !strings.HasSuffix(*obj.Key, ".csv") {
				continue
			}
			name := strings.TrimPrefix(*obj.Key, s.prefix)
			if strings.Contains(name, "/") {
				continue
			}
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}

// Delete removes an export from S3
func (s *S3Storage) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + name),
	})
	if err != nil {
		return fmt.Errorf("failed to delete export from S3: %w", err)
	}
	return nil
}

// Location returns the s3:// URL of name
func (s *S3Storage) Location(name string) string {
	return "s3://" + s.bucket + "/" + s.prefix + name
}

// Close cleans up resources
func (s *S3Storage) Close() error {
	// S3 client doesn't require explicit cleanup
	return nil
}
