// Package s3 provides an S3-compatible storage backend for s3:// references.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/VintageWander/filey/internal/logging"
	"github.com/VintageWander/filey/internal/storage"
)

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string // empty uses AWS
	Bucket    string // default bucket for s3:///key references
	AccessKey string
	SecretKey string
	Region    string
}

// Backend implements storage.Backend on S3 or MinIO.
type Backend struct {
	client *s3.Client
	bucket string
}

// New creates an S3 backend. Without static keys the default AWS credential
// chain is used.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logging.Info("s3 backend ready",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("default_bucket", cfg.Bucket))

	return &Backend{client: client, bucket: cfg.Bucket}, nil
}

// splitKey parses "bucket/key". An empty bucket selects the default one.
func (b *Backend) splitKey(ref string) (bucket, key string, err error) {
	bucket, key, ok := strings.Cut(ref, "/")
	if !ok || key == "" {
		return "", "", fmt.Errorf("s3 reference %q has no object key", ref)
	}
	if bucket == "" {
		bucket = b.bucket
	}
	if bucket == "" {
		return "", "", fmt.Errorf("s3 reference %q has no bucket and no default is configured", ref)
	}
	return bucket, key, nil
}

// Open retrieves an object with range support.
func (b *Backend) Open(ctx context.Context, ref string, offset, length int64) (io.ReadCloser, error) {
	bucket, key, err := b.splitKey(ref)
	if err != nil {
		return nil, err
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if offset > 0 || length > 0 {
		if length > 0 {
			input.Range = aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
		} else {
			input.Range = aws.String(fmt.Sprintf("bytes=%d-", offset))
		}
	}

	out, err := b.client.GetObject(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, mapNotFound(err))
	}
	return out.Body, nil
}

// Stat issues a HEAD request for the object.
func (b *Backend) Stat(ctx context.Context, ref string) (storage.Info, error) {
	bucket, key, err := b.splitKey(ref)
	if err != nil {
		return storage.Info{}, err
	}

	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return storage.Info{}, fmt.Errorf("head object %s/%s: %w", bucket, key, mapNotFound(err))
	}

	info := storage.Info{Size: aws.ToInt64(out.ContentLength)}
	if out.LastModified != nil {
		info.ModTime = *out.LastModified
	}
	return info, nil
}

// Type returns "s3".
func (b *Backend) Type() string { return "s3" }

// Close is a no-op for S3 backends.
func (b *Backend) Close() error { return nil }

type notFound struct{ err error }

func (e notFound) Error() string { return e.err.Error() }

func (e notFound) Unwrap() []error { return []error{e.err, fs.ErrNotExist} }

// mapNotFound makes missing objects match fs.ErrNotExist.
func mapNotFound(err error) error {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	var re *awshttp.ResponseError
	if errors.As(err, &nsk) || errors.As(err, &nf) ||
		(errors.As(err, &re) && re.HTTPStatusCode() == 404) {
		return notFound{err: err}
	}
	return err
}
