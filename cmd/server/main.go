package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/t77yq/comment-evaluator/internal/api"
	"github.com/t77yq/comment-evaluator/internal/blobsync"
	"github.com/t77yq/comment-evaluator/internal/config"
	"github.com/t77yq/comment-evaluator/internal/dataset"
	"github.com/t77yq/comment-evaluator/internal/logging"
	"github.com/t77yq/comment-evaluator/internal/notify"
	"github.com/t77yq/comment-evaluator/internal/storage"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config.yaml")
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

	var opts []api.Option

	// Refresh datasets from object storage; local files are the fallback
	if !cfg.Blob.Enabled() {
		logger.Warn("Blob sync disabled, using local datasets", zap.Strings("missing", cfg.Blob.Missing()))
	} else if bucket, err := blobsync.NewBucket(ctx, cfg.Blob); err != nil {
		logger.Error("Failed to connect to object storage, using local datasets", zap.Error(err))
	} else {
		defer bucket.Close()
		syncer := blobsync.NewSyncer(logger, bucket, cfg.Data.Dir, cfg.Blob)
		if err := syncer.FetchDatasets(ctx); err != nil {
			logger.Error("Failed to fetch datasets", zap.Error(err))
		}
		opts = append(opts, api.WithFetcher(syncer))
	}

	cache := dataset.NewCache(cfg.Data.Dir, logger)
	if _, err := cache.Get(); err != nil {
		logger.Fatal("Measurement store unavailable", zap.Error(err))
	}

	store, err := storage.NewStore(cfg.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to open evaluation store", zap.Error(err))
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		logger.Fatal("Failed to initialize evaluation store", zap.Error(err))
	}

	if cfg.NATS.Enabled {
		if publisher, err := setupPublisher(ctx, cfg, logger); err != nil {
			logger.Error("Evaluation events disabled", zap.Error(err))
		} else {
			opts = append(opts, api.WithPublisher(publisher))
		}
	}

	if !cfg.App.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: api.NewServer(logger, cache, store, opts...).Router(),
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down HTTP server", zap.Error(err))
	}
}

// setupPublisher connects to NATS and prepares the evaluation stream. The
// connection is drained when ctx is done.
func setupPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (notify.Publisher, error) {
	nc, err := notify.Connect(cfg.App.Name, cfg.NATS, logger)
	if err != nil {
		return nil, err
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}
	publisher, err := notify.NewNATSPublisher(ctx, js, logger)
	if err != nil {
		nc.Close()
		return nil, err
	}

	go func() {
		<-ctx.Done()
		nc.Drain()
	}()
	return publisher, nil
}
