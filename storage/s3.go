package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"newbuild_scrooper/models"
)

// S3Config holds configuration for S3-compatible storage
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for DO Spaces, R2, MinIO
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// S3Exporter publishes parse results to S3-compatible storage
type S3Exporter struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Exporter(ctx context.Context, cfg S3Config) (*S3Exporter, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3Exporter{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// ResultKey is where a run's result is stored:
// {prefix}/{site}/{yyyy-mm-dd}/{run uuid}.json
func ResultKey(prefix, siteID string, result *models.ParseResult, runID uuid.UUID) string {
	day := result.GeneratedAt.UTC().Format("2006-01-02")
	return path.Join(strings.Trim(prefix, "/"), siteID, day, runID.String()+".json")
}

// MarshalResult renders the result the same way the -once mode prints it.
func MarshalResult(result any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Export uploads the result as JSON and returns its key.
func (e *S3Exporter) Export(ctx context.Context, siteID string, result *models.ParseResult, runID uuid.UUID) (string, error) {
	data, err := MarshalResult(result)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	key := ResultKey(e.prefix, siteID, result, runID)
	if err := e.upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return "", err
	}
	return key, nil
}

func (e *S3Exporter) upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	_, err := e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}
