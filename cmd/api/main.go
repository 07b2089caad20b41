package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"disasterwatch/api/internal/cache"
	"disasterwatch/api/internal/config"
	"disasterwatch/api/internal/events"
	"disasterwatch/api/internal/handlers"
	"disasterwatch/api/internal/jobs"
	"disasterwatch/api/internal/log"
	"disasterwatch/api/internal/metrics"
	"disasterwatch/api/internal/repository"
	"disasterwatch/api/internal/server"
	"disasterwatch/api/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(cfg.Environment)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api exited with error")
	}
	logger.Info().Msg("server exited cleanly")
}

func run(cfg *config.AppConfig, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, sweeper, err := openContentStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	publisher := newPublisher(redisClient, cfg.Redis.Stream, logger)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg, handlers.Deps{
		Uploads:   repository.NewUploadRepository(time.Now),
		Store:     store,
		Publisher: publisher,
		Metrics:   collector,
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet, collector)

	scheduler := jobs.NewScheduler(sweeper, jobs.Options{
		Schedule:   cfg.Jobs.SweepSchedule,
		StaleAfter: cfg.Jobs.StaleAfter,
	}, logger.With().Str("component", "jobs").Logger())
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		scheduler.Stop(shutdownCtx)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()

	if redisClient != nil {
		if cerr := redisClient.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("redis close error")
		}
	}
	return err
}

// openContentStore returns the configured backend, plus a sweeper when the
// backend leaves partial files on local disk.
func openContentStore(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (storage.ContentStore, jobs.Sweeper, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMinio:
		objectStore, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			return nil, nil, fmt.Errorf("init object store: %w", err)
		}
		if err := objectStore.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Str("bucket", cfg.Storage.Bucket).Msg("ensure bucket failed")
		}
		return objectStore, nil, nil
	default:
		fsStore, err := storage.NewFilesystemStore(cfg.Content.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("init content dir: %w", err)
		}
		logger.Info().Str("dir", fsStore.Root()).Msg("storing uploads on local disk")
		return fsStore, fsStore, nil
	}
}

func newPublisher(client *redis.Client, stream string, logger zerolog.Logger) events.Publisher {
	if client == nil {
		logger.Info().Msg("redis disabled, events are not published")
		return events.NopPublisher{}
	}
	return events.NewRedisPublisher(client, stream)
}
