// Package s3 loads source documents from an S3 compatible object store.
package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/loader"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectGetter is the subset of the S3 client the loader needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Loader reads objects from one bucket. Locations may carry an s3://
// prefix, which is stripped to form the object key.
type S3Loader struct {
	bucket string
	client ObjectGetter
	cache  *loader.Cache
}

// NewS3LoaderWithClient creates a loader around an existing client.
func NewS3LoaderWithClient(bucket string, client ObjectGetter) *S3Loader {
	return &S3Loader{
		bucket: bucket,
		client: client,
		cache:  loader.NewCache(),
	}
}

// NewS3LoaderParams configures NewS3Loader. Endpoint overrides the S3
// endpoint for compatible stores such as MinIO.
type NewS3LoaderParams struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3Loader creates a loader with static credentials.
//
// Example:
//
//	l, err := s3.NewS3Loader(ctx, s3.NewS3LoaderParams{
//		Bucket:    "articles",
//		Endpoint:  "http://localhost:9000",
//		Region:    "us-east-1",
//		AccessKey: os.Getenv("AWS_ACCESS_KEY"),
//		SecretKey: os.Getenv("AWS_SECRET_KEY"),
//	})
//	src := loader.NewSource("1", "s3://2024/report.txt", l)
//	text, err := src.Text(ctx)
func NewS3Loader(ctx context.Context, params NewS3LoaderParams) (*S3Loader, error) {
	client, err := NewClient(ctx, params)
	if err != nil {
		return nil, err
	}
	return NewS3LoaderWithClient(params.Bucket, client), nil
}

// NewClient builds an S3 client with path style addressing.
func NewClient(ctx context.Context, params NewS3LoaderParams) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(params.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			params.AccessKey,
			params.SecretKey,
			"",
		)),
	}
	if params.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(params.Endpoint))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	}), nil
}

// GetText downloads the object. Results are cached.
func (l *S3Loader) GetText(ctx context.Context, src loader.Source) ([]byte, error) {
	return l.cache.Get(loader.CacheKey(src), func() ([]byte, error) {
		key := loader.ObjectKey(src.Location)
		out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(l.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get object %s: %w", key, err)
		}
		defer out.Body.Close()

		b, err := io.ReadAll(out.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read object %s: %w", key, err)
		}
		return b, nil
	})
}
