// Package blob stores message attachments in an S3 compatible bucket.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"teamchat/api/internal/util"
)

// ErrInvalidHandle is returned for handles this store never issued.
var ErrInvalidHandle = errors.New("invalid blob handle")

const handlePrefix = "blb"

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	URLTTL    time.Duration
}

// MinioStore hands out opaque handles (object keys) and presigned URLs.
type MinioStore struct {
	client *minio.Client
	bucket string
	region string
	ttl    time.Duration
}

// New builds the client. No request is made; a fixed region keeps URL
// presigning local.
func New(opts Options) (*MinioStore, error) {
	if opts.Bucket == "" {
		return nil, errors.New("blob bucket is required")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if opts.URLTTL <= 0 {
		opts.URLTTL = 15 * time.Minute
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioStore{client: client, bucket: opts.Bucket, region: opts.Region, ttl: opts.URLTTL}, nil
}

// EnsureBucket creates the bucket when missing.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("make bucket: %w", err)
	}
	return nil
}

// PutBlob uploads content and returns its handle. size may be -1 when unknown.
func (s *MinioStore) PutBlob(ctx context.Context, content io.Reader, size int64, contentType string) (string, error) {
	handle := util.NewID(handlePrefix)
	_, err := s.client.PutObject(ctx, s.bucket, handle, content, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put blob: %w", err)
	}
	return handle, nil
}

// ResolveURL returns a time-limited download URL for handle.
func (s *MinioStore) ResolveURL(ctx context.Context, handle string) (string, error) {
	if !validHandle(handle) {
		return "", ErrInvalidHandle
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, handle, s.ttl, nil)
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return u.String(), nil
}

// UploadURL reserves a handle and returns a presigned PUT URL for it, so
// clients can upload directly to the bucket.
func (s *MinioStore) UploadURL(ctx context.Context) (string, string, error) {
	handle := util.NewID(handlePrefix)
	u, err := s.client.PresignedPutObject(ctx, s.bucket, handle, s.ttl)
	if err != nil {
		return "", "", fmt.Errorf("presign put: %w", err)
	}
	return handle, u.String(), nil
}

func validHandle(handle string) bool {
	rest, ok := strings.CutPrefix(handle, handlePrefix+"_")
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}
