// Package main is the entry point for the Imagevault server.
// Imagevault is an image hosting backend: uploads are thumbnailed, stored
// in object storage and tracked in a metadata store with per-image
// download accounting.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prn-tf/imagevault/internal/cache/memory"
	"github.com/prn-tf/imagevault/internal/config"
	"github.com/prn-tf/imagevault/internal/handler"
	"github.com/prn-tf/imagevault/internal/imaging"
	"github.com/prn-tf/imagevault/internal/lock"
	"github.com/prn-tf/imagevault/internal/metrics"
	"github.com/prn-tf/imagevault/internal/repository"
	"github.com/prn-tf/imagevault/internal/repository/factory"
	redisrepo "github.com/prn-tf/imagevault/internal/repository/redis"
	"github.com/prn-tf/imagevault/internal/service"
	"github.com/prn-tf/imagevault/internal/storage"
	"github.com/prn-tf/imagevault/internal/storage/fs"
	"github.com/prn-tf/imagevault/internal/storage/s3"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// imageCacheTTL bounds how long a cached image record can serve reads.
const imageCacheTTL = 5 * time.Minute

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logger := setupLogger(cfg.Logging)

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting Imagevault server")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metadata store
	result, err := factory.New(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer result.Database.Close(context.Background())

	// Cache and locking
	var (
		cache  repository.Cache
		locker lock.Locker
	)
	if cfg.Redis.Enabled {
		client, err := redisrepo.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		cache = redisrepo.NewCache(client)
		locker = lock.NewRedisLocker(redisrepo.NewLock(client))
	} else {
		memCache := memory.NewCache()
		defer memCache.Stop()
		cache = memCache
		locker = lock.NewMemoryLocker()
	}

	imageRepo := repository.NewCachedImageRepository(result.Repos.Images, cache, imageCacheTTL, logger)

	// Object storage
	backend, err := newStorageBackend(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	urls := storage.NewURLBuilder(cfg.Storage.PublicBaseURL)

	// Metrics
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		if m, err = metrics.New(); err != nil {
			return err
		}
	}

	// Services
	thumbnailer := imaging.NewGenerator(cfg.Ingest.ThumbnailMaxWidth, cfg.Ingest.ThumbnailMaxHeight)
	imageService := service.NewImageService(
		imageRepo, backend, thumbnailer, urls, locker, m,
		cfg.Storage.OriginalBucket, cfg.Storage.ThumbnailBucket, logger,
	)
	downloadService := service.NewDownloadService(imageRepo, result.Repos.Downloads, m, logger)

	// HTTP surface
	router := handler.NewRouter(handler.RouterConfig{
		ImageHandler:    handler.NewImageHandler(imageService, cfg.Ingest.MaxUploadSize, logger),
		DownloadHandler: handler.NewDownloadHandler(downloadService, logger),
		HealthHandler:   handler.NewHealthHandler(result.Database, logger),
		APIPrefix:       cfg.API.Prefix,
		CORSOrigins:     cfg.API.CORSOrigins,
		Metrics:         m,
		Logger:          logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var metricsServer *http.Server
	if m != nil {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, m.Handler())
		metricsServer = &http.Server{
			Addr:    addrForPort(cfg.Server.Host, cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info().Str("addr", metricsServer.Addr).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown failed")
		}
	}

	logger.Info().Msg("shutdown complete")
	return nil
}

// newStorageBackend builds the configured blob store.
func newStorageBackend(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (storage.Backend, error) {
	if cfg.Backend == "filesystem" {
		return fs.NewBackend(cfg.DataDir, logger)
	}
	return s3.NewBackend(ctx, cfg.S3, logger)
}

// setupLogger configures the process logger from config.
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = cfg.TimeFormat

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := log.Logger.Level(level)
	if cfg.Format == "console" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger
}

func addrForPort(host string, port int) string {
	return config.ServerConfig{Host: host, Port: port}.Addr()
}
