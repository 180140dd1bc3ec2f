package blobsync

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/t77yq/comment-evaluator/internal/config"
)

// GCSBucket stores objects in one Google Cloud Storage bucket
type GCSBucket struct {
	client *storage.Client
	bucket string
}

// NewGCSBucket uses the credentials file when set, application default
// credentials otherwise. An endpoint targets an unauthenticated emulator.
func NewGCSBucket(ctx context.Context, cfg config.BlobConfig) (*GCSBucket, error) {
	var opts []option.ClientOption
	switch {
	case cfg.Endpoint != "":
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSBucket{client: client, bucket: cfg.Bucket}, nil
}

// Upload implements Bucket.Upload
func (b *GCSBucket) Upload(ctx context.Context, key string, r io.Reader) error {
	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentTypeForKey(key)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

// Download implements Bucket.Download
func (b *GCSBucket) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := b.client.Bucket(b.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", b.bucket, key, err)
	}
	return rc, nil
}

// Check implements Bucket.Check by reading the bucket attributes
func (b *GCSBucket) Check(ctx context.Context) error {
	if _, err := b.client.Bucket(b.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("failed to reach gs://%s: %w", b.bucket, err)
	}
	return nil
}

// Close implements Bucket.Close
func (b *GCSBucket) Close() error {
	return b.client.Close()
}
