// Package storage exports finished summaries as JSON objects to S3
// compatible storage.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/OFFIS-RIT/kiwi/graphsum/internal/config"
	loaders3 "github.com/OFFIS-RIT/kiwi/graphsum/pkg/loader/s3"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectAPI is the subset of the S3 client used for export.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Exporter writes JSON documents below a key prefix in one bucket.
type Exporter struct {
	api    ObjectAPI
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Client builds a path style client from the storage settings.
func NewS3Client(ctx context.Context, cfg config.StorageConfig) (*s3.Client, error) {
	return loaders3.NewClient(ctx, loaders3.NewS3LoaderParams{
		Bucket:    cfg.Bucket,
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
	})
}

// NewExporter creates an exporter on a real client. Presigned download
// links are only available this way.
func NewExporter(client *s3.Client, bucket, prefix string) *Exporter {
	return &Exporter{api: client, client: client, bucket: bucket, prefix: prefix}
}

// FromConfig builds an exporter for the configured bucket. It returns nil
// when no bucket is set.
func FromConfig(ctx context.Context, cfg config.StorageConfig) (*Exporter, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}
	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewExporter(client, cfg.Bucket, cfg.Prefix), nil
}

// NewExporterWithAPI creates an exporter on any ObjectAPI implementation.
func NewExporterWithAPI(api ObjectAPI, bucket, prefix string) *Exporter {
	return &Exporter{api: api, bucket: bucket, prefix: prefix}
}

// Key returns the object key for a job.
func (e *Exporter) Key(jobID string) string {
	return path.Join(e.prefix, jobID+".json")
}

// Export marshals v and stores it under the job key, returning the key.
func (e *Exporter) Export(ctx context.Context, jobID string, v any) (string, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode export: %w", err)
	}
	key := e.Key(jobID)
	_, err = e.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export to S3: %w", err)
	}
	return key, nil
}

// Delete removes an exported object.
func (e *Exporter) Delete(ctx context.Context, key string) error {
	_, err := e.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete export from S3: %w", err)
	}
	return nil
}

// DownloadLink presigns a GET for key valid for 15 minutes. When
// publicEndpoint is set the link is signed for that host, and its path
// is kept as a prefix.
func (e *Exporter) DownloadLink(ctx context.Context, key, publicEndpoint string) (string, error) {
	if e.client == nil {
		return "", fmt.Errorf("download links need an s3 client")
	}

	client := e.client
	var prefix string
	if publicEndpoint != "" {
		publicURL, err := url.Parse(publicEndpoint)
		if err != nil || publicURL.Scheme == "" || publicURL.Host == "" {
			return "", fmt.Errorf("invalid public endpoint: %s", publicEndpoint)
		}
		prefix = strings.TrimSuffix(publicURL.Path, "/")
		base := fmt.Sprintf("%s://%s", publicURL.Scheme, publicURL.Host)
		client = s3.NewFromConfig(
			aws.Config{
				Region:      e.client.Options().Region,
				Credentials: e.client.Options().Credentials,
				HTTPClient:  e.client.Options().HTTPClient,
			},
			func(o *s3.Options) {
				o.BaseEndpoint = aws.String(base)
				o.UsePathStyle = true
			},
		)
	}

	out, err := s3.NewPresignClient(client).PresignGetObject(
		ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(e.bucket),
			Key:    aws.String(key),
		},
		s3.WithPresignExpires(15*time.Minute),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate download link: %w", err)
	}

	if prefix == "" {
		return out.URL, nil
	}
	signed, err := url.Parse(out.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse presigned url: %w", err)
	}
	signed.Path = prefix + signed.Path
	return signed.String(), nil
}
