// Package factory wires metadata store backends from configuration.
package factory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/imagevault/internal/config"
	"github.com/prn-tf/imagevault/internal/repository"
	"github.com/prn-tf/imagevault/internal/repository/mongo"
	"github.com/prn-tf/imagevault/internal/repository/postgres"
	"github.com/prn-tf/imagevault/internal/repository/sqlite"
)

// Result contains the created repositories and the backing connection.
type Result struct {
	Repos    *repository.Repositories
	Database repository.Database
}

// New connects to the configured metadata store and builds its repositories.
func New(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Result, error) {
	switch cfg.Driver {
	case "mongo":
		db, err := mongo.NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return &Result{
			Repos: &repository.Repositories{
				Images:    mongo.NewImageRepository(db),
				Downloads: mongo.NewDownloadRepository(db),
			},
			Database: db,
		}, nil

	case "postgres":
		db, err := postgres.NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return &Result{
			Repos: &repository.Repositories{
				Images:    postgres.NewImageRepository(db),
				Downloads: postgres.NewDownloadRepository(db),
			},
			Database: db,
		}, nil

	case "sqlite":
		sqliteCfg := sqlite.DefaultConfig(cfg.Path)
		if cfg.JournalMode != "" {
			sqliteCfg.JournalMode = cfg.JournalMode
		}
		if cfg.BusyTimeout > 0 {
			sqliteCfg.BusyTimeout = cfg.BusyTimeout
		}
		db, err := sqlite.NewDB(ctx, sqliteCfg, logger)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close(ctx)
			return nil, err
		}
		return &Result{
			Repos: &repository.Repositories{
				Images:    sqlite.NewImageRepository(db),
				Downloads: sqlite.NewDownloadRepository(db),
			},
			Database: db,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}
