package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/t77yq/comment-evaluator/internal/blobsync"
	"github.com/t77yq/comment-evaluator/internal/config"
	"github.com/t77yq/comment-evaluator/internal/logging"
	"github.com/t77yq/comment-evaluator/internal/notify"
	"github.com/t77yq/comment-evaluator/internal/storage"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config.yaml")
	schedule := pflag.String("schedule", "", "cron schedule, defaults to backup.schedule")
	once := pflag.Bool("once", false, "run a single backup and exit")
	raw := pflag.Bool("raw", false, "upload the sqlite database file instead of a parquet export")
	check := pflag.Bool("check", false, "verify the bucket is reachable and exit")
	follow := pflag.Bool("follow", false, "also back up after each evaluation event on NATS")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.App.LogLevel, cfg.App.Development)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !cfg.Blob.Enabled() {
		logger.Fatal("Blob sync is not configured", zap.Strings("missing", cfg.Blob.Missing()))
	}
	bucket, err := blobsync.NewBucket(ctx, cfg.Blob)
	if err != nil {
		logger.Fatal("Object storage unavailable", zap.Error(err))
	}
	defer bucket.Close()
	syncer := blobsync.NewSyncer(logger, bucket, cfg.Data.Dir, cfg.Blob)

	if *check {
		if err := syncer.Check(ctx); err != nil {
			logger.Fatal("Object storage check failed", zap.String("bucket", cfg.Blob.Bucket), zap.Error(err))
		}
		return
	}

	store, err := storage.NewStore(cfg.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to open evaluation store", zap.Error(err))
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		logger.Fatal("Failed to initialize evaluation store", zap.Error(err))
	}

	if *raw {
		if !strings.HasPrefix(strings.ToLower(cfg.Storage.Driver), "sqlite") {
			logger.Fatal("Raw upload needs the sqlite driver", zap.String("driver", cfg.Storage.Driver))
		}
		path := store.Path()
		keys, err := syncer.Push(ctx, path, filepath.Base(path))
		if err != nil {
			logger.Fatal("Database upload failed", zap.String("path", path), zap.Error(err))
		}
		logger.Info("Database uploaded", zap.Strings("keys", keys))
		return
	}

	if *once {
		keys, err := syncer.Backup(ctx, store)
		switch {
		case errors.Is(err, blobsync.ErrNothingToExport):
			logger.Info("No evaluations to back up")
		case err != nil:
			logger.Fatal("Backup failed", zap.Error(err))
		default:
			logger.Info("Backup completed", zap.Strings("keys", keys))
		}
		return
	}

	spec := *schedule
	if spec == "" {
		spec = cfg.Backup.Schedule
	}
	if _, err := syncer.ScheduleBackup(ctx, spec, store); err != nil {
		logger.Fatal("Failed to schedule backup", zap.Error(err))
	}

	if *follow {
		if err := followEvaluations(ctx, cfg, logger, syncer.BackupOnDemand(ctx, store)); err != nil {
			logger.Fatal("Failed to follow evaluation events", zap.Error(err))
		}
	}
	<-ctx.Done()
	logger.Info("Shutting down")
}

// followEvaluations calls trigger for every evaluation event. The NATS
// connection is drained when ctx is done.
func followEvaluations(ctx context.Context, cfg *config.Config, logger *zap.Logger, trigger func()) error {
	if !cfg.NATS.Enabled {
		return errors.New("nats.enabled is false")
	}
	nc, err := notify.Connect(cfg.App.Name+"-evalsync", cfg.NATS, logger)
	if err != nil {
		return err
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return err
	}

	err = notify.Subscribe(ctx, js, logger, func(e notify.Event) {
		logger.Debug("Evaluation event received",
			zap.String("event_id", e.ID),
			zap.Int64("evaluation_id", e.Evaluation.EvaluationID))
		trigger()
	})
	if err != nil {
		nc.Close()
		return err
	}

	go func() {
		<-ctx.Done()
		nc.Drain()
	}()
	logger.Info("Following evaluation events", zap.String("subject", notify.SubjectCreated))
	return nil
}
