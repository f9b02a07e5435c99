// Package s3 implements the registry storage backend on Amazon S3 or any
// S3-compatible object store.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"

	"github.com/couchcryptid/climate-data-monitor/internal/registry"
)

// Config selects the bucket and how to reach it.
type Config struct {
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Endpoint        string // for S3-compatible stores such as MinIO
	ForcePathStyle  bool
	// SkipAccessCheck disables the HeadBucket pre-flight.
	SkipAccessCheck bool
}

// Backend stores registry objects in an S3 bucket under an optional prefix.
type Backend struct {
	client   s3iface.S3API
	uploader s3manageriface.UploaderAPI
	bucket   string
	prefix   string
	logger   *slog.Logger
}

// NewBackend opens an AWS session and, unless SkipAccessCheck is set, checks
// bucket access with HeadBucket.
// Missing credentials fall through to the SDK's default chain.
func NewBackend(ctx context.Context, cfg Config, logger *slog.Logger) (*Backend, error) {
	if err := registry.ValidateBucketName(cfg.Bucket); err != nil {
		return nil, err
	}

	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(cfg.ForcePathStyle)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}

	b := &Backend{
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		logger:   logger,
	}
	if !cfg.SkipAccessCheck {
		if err := b.CheckAccess(ctx); err != nil {
			return nil, err
		}
	}
	logger.Info("connected to s3 registry", "bucket", cfg.Bucket, "region", cfg.Region, "prefix", b.prefix)
	return b, nil
}

// CheckAccess verifies the credentials can reach the bucket.
func (b *Backend) CheckAccess(ctx context.Context) error {
	_, err := b.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	if err != nil {
		return fmt.Errorf("access bucket %q: %w", b.bucket, err)
	}
	return nil
}

func (b *Backend) key(k string) string {
	if b.prefix == "" {
		return k
	}
	return path.Join(b.prefix, k)
}

func (b *Backend) Put(ctx context.Context, key string, r io.Reader) error {
	_, err := b.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(key)),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(key)),
	})
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %s", registry.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	return out.Body, nil
}

func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(key)),
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("head %s: %w", key, err)
	}
	return true, nil
}

// List returns every key under prefix, relative to the backend prefix.
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	full := b.key(prefix)
	if strings.HasSuffix(prefix, "/") && !strings.HasSuffix(full, "/") {
		full += "/"
	}
	strip := ""
	if b.prefix != "" {
		strip = b.prefix + "/"
	}

	var keys []string
	err := b.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(full),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, strings.TrimPrefix(aws.StringValue(obj.Key), strip))
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return keys, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return strings.Contains(err.Error(), "NoSuchKey")
}
