package blobsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/t77yq/comment-evaluator/internal/config"
	"github.com/t77yq/comment-evaluator/internal/dataset"
	"github.com/t77yq/comment-evaluator/internal/model"
)

const timestampLayout = "20060102_150405"

// ExportObjectName is the key of the latest evaluation export
const ExportObjectName = "evaluations.parquet"

// EvaluationSource provides the rows to export, newest first
type EvaluationSource interface {
	All(ctx context.Context) ([]model.Evaluation, error)
}

// Syncer fetches datasets from and pushes exports to a Bucket
type Syncer struct {
	logger  *zap.Logger
	bucket  Bucket
	dataDir string
	cfg     config.BlobConfig
	now     func() time.Time
}

// NewSyncer creates a syncer writing datasets into dataDir
func NewSyncer(logger *zap.Logger, bucket Bucket, dataDir string, cfg config.BlobConfig) *Syncer {
	return &Syncer{
		logger:  logger.Named("blobsync"),
		bucket:  bucket,
		dataDir: dataDir,
		cfg:     cfg,
		now:     time.Now,
	}
}

// FetchDatasets downloads every dataset file that is missing or older than
// FreshFor. A failed download is only an error when no local copy exists.
func (s *Syncer) FetchDatasets(ctx context.Context) error {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	var errs []error
	for _, name := range dataset.Files {
		path := filepath.Join(s.dataDir, name)
		info, statErr := os.Stat(path)
		local := statErr == nil
		if local && s.now().Sub(info.ModTime()) < s.cfg.FreshFor {
			s.logger.Debug("Dataset is fresh, skipping download", zap.String("file", name))
			continue
		}

		if err := s.fetch(ctx, s.cfg.DataPrefix+name, path); err != nil {
			if local {
				s.logger.Warn("Failed to refresh dataset, using local copy",
					zap.String("file", name),
					zap.Error(err))
				continue
			}
			errs = append(errs, fmt.Errorf("failed to fetch %s: %w", name, err))
			continue
		}
		s.logger.Info("Dataset downloaded", zap.String("file", name))
	}
	return errors.Join(errs...)
}

// FetchDataset downloads one dataset file regardless of its age
func (s *Syncer) FetchDataset(ctx context.Context, name string) error {
	if !dataset.IsKnown(name) {
		return fmt.Errorf("%w: %q", dataset.ErrUnknownDataset, name)
	}
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := s.fetch(ctx, s.cfg.DataPrefix+name, filepath.Join(s.dataDir, name)); err != nil {
		return fmt.Errorf("failed to fetch %s: %w", name, err)
	}
	s.logger.Info("Dataset downloaded", zap.String("file", name))
	return nil
}

// Check verifies the bucket is reachable within the sync timeout
func (s *Syncer) Check(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.bucket.Check(ctx); err != nil {
		return err
	}
	s.logger.Info("Object storage reachable")
	return nil
}

// fetch downloads key into a temp file and renames it over path
func (s *Syncer) fetch(ctx context.Context, key, path string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rc, err := s.bucket.Download(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// ExportEvaluations writes every evaluation, newest first, to a timestamped
// parquet file in the export directory and returns its path.
func (s *Syncer) ExportEvaluations(ctx context.Context, src EvaluationSource) (string, error) {
	rows, err := src.All(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read evaluations: %w", err)
	}
	if len(rows) == 0 {
		return "", ErrNothingToExport
	}

	if err := os.MkdirAll(s.cfg.ExportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(s.cfg.ExportDir, fmt.Sprintf("evaluations_%s.parquet", s.now().UTC().Format(timestampLayout)))
	if err := parquet.WriteFile(path, rows); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}

	s.logger.Info("Evaluations exported", zap.String("path", path), zap.Int("rows", len(rows)))
	return path, nil
}

// Push uploads path as objectName and as a timestamped copy next to it.
// It returns the keys written.
func (s *Syncer) Push(ctx context.Context, path, objectName string) ([]string, error) {
	if objectName == "" {
		objectName = filepath.Base(path)
	}
	ext := filepath.Ext(objectName)
	stem := strings.TrimSuffix(objectName, ext)
	keys := []string{
		s.cfg.BackupPrefix + objectName,
		s.cfg.BackupPrefix + stem + "_" + s.now().UTC().Format(timestampLayout) + ext,
	}

	for _, key := range keys {
		if err := s.upload(ctx, path, key); err != nil {
			return nil, err
		}
		s.logger.Info("Uploaded", zap.String("file", path), zap.String("key", key))
	}
	return keys, nil
}

func (s *Syncer) upload(ctx context.Context, path, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return s.bucket.Upload(ctx, key, f)
}

// Backup exports the evaluation store, pushes the export and removes the
// local file once the upload succeeded.
func (s *Syncer) Backup(ctx context.Context, src EvaluationSource) ([]string, error) {
	path, err := s.ExportEvaluations(ctx, src)
	if err != nil {
		return nil, err
	}

	keys, err := s.Push(ctx, path, ExportObjectName)
	if err != nil {
		s.logger.Error("Backup upload failed, keeping export", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	if err := os.Remove(path); err != nil {
		s.logger.Warn("Failed to remove export", zap.String("path", path), zap.Error(err))
	}
	return keys, nil
}

func (s *Syncer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Timeout)
}
