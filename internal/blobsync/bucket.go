// Package blobsync moves the measurement datasets and evaluation exports
// between local disk and object storage.
package blobsync

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/t77yq/comment-evaluator/internal/config"
)

// Bucket is the object storage surface used by the syncer
type Bucket interface {
	// Upload writes r to key, replacing any existing object
	Upload(ctx context.Context, key string, r io.Reader) error

	// Download opens the object at key for reading
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Check verifies the bucket is reachable with the configured credentials
	Check(ctx context.Context) error

	Close() error
}

// NewBucket connects to the provider named in cfg. It returns ErrSyncDisabled
// when credentials or the bucket name are missing.
func NewBucket(ctx context.Context, cfg config.BlobConfig) (Bucket, error) {
	if missing := cfg.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrSyncDisabled, strings.Join(missing, ", "))
	}
	switch strings.ToLower(cfg.Provider) {
	case "", "s3":
		b, err := NewS3Bucket(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "gcs":
		b, err := NewGCSBucket(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

func contentTypeForKey(key string) string {
	switch {
	case strings.HasSuffix(key, ".parquet"):
		return "application/vnd.apache.parquet"
	case strings.HasSuffix(key, ".sqlite"), strings.HasSuffix(key, ".db"):
		return "application/vnd.sqlite3"
	default:
		return "application/octet-stream"
	}
}
