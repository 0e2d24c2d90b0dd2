package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// ErrObjectNotFound is returned by Download for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// S3 wraps one bucket of an S3 compatible store.
type S3 struct {
	client        *minio.Client
	bucket        string
	publicDomain  string
	presignExpiry time.Duration
}

func NewS3(client *minio.Client, bucket, publicDomain string, presignExpiry time.Duration) *S3 {
	if presignExpiry <= 0 {
		presignExpiry = 2 * time.Hour
	}
	return &S3{
		client:        client,
		bucket:        bucket,
		publicDomain:  strings.TrimRight(publicDomain, "/"),
		presignExpiry: presignExpiry,
	}
}

func (s *S3) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object %s failed: %w", key, err)
	}
	return nil
}

func (s *S3) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s failed: %w", key, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat object %s failed: %w", key, err)
	}
	return obj, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s failed: %w", key, err)
	}
	return nil
}

func (s *S3) DeleteMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	objects := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		objects <- minio.ObjectInfo{Key: k}
	}
	close(objects)

	var errs []error
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("remove object %s failed: %w", rerr.ObjectName, rerr.Err))
	}
	return errors.Join(errs...)
}

// PresignedURL returns a public URL when a public domain is configured and a
// signed GET URL otherwise.
func (s *S3) PresignedURL(ctx context.Context, key string) (string, error) {
	if s.publicDomain != "" {
		return s.publicDomain + "/" + strings.TrimLeft(key, "/"), nil
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object %s failed: %w", key, err)
	}
	return u.String(), nil
}

// Ping is used by the health check.
func (s *S3) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	return nil
}
