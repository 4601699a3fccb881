// Package main is the entry point for the Imagevault migration tool.
// It prepares whichever metadata store is configured: MongoDB indexes,
// the PostgreSQL schema or the SQLite schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/imagevault/internal/config"
	"github.com/prn-tf/imagevault/internal/repository/mongo"
	"github.com/prn-tf/imagevault/internal/repository/postgres"
	"github.com/prn-tf/imagevault/internal/repository/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	switch command {
	case "version":
		fmt.Printf("Imagevault Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "up":
		if err := migrate(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migration complete")

	case "status":
		if err := status(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "status check failed: %v\n", err)
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func migrate(configPath string) error {
	cfg := config.MustLoad(configPath)
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	switch cfg.Database.Driver {
	case "mongo":
		db, err := mongo.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close(context.Background())
		return db.EnsureIndexes(ctx)

	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close(context.Background())
		return db.Migrate(ctx)

	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return err
		}
		defer db.Close(context.Background())
		return db.Migrate(ctx)

	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

func status(configPath string) error {
	cfg := config.MustLoad(configPath)
	logger := zerolog.Nop()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch cfg.Database.Driver {
	case "mongo":
		db, err := mongo.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close(context.Background())
		if err := db.Ping(ctx); err != nil {
			return err
		}

	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close(context.Background())
		if err := db.Ping(ctx); err != nil {
			return err
		}

	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return err
		}
		defer db.Close(context.Background())
		if err := db.Ping(ctx); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	fmt.Printf("driver: %s\nstatus: reachable\n", cfg.Database.Driver)
	return nil
}

func printUsage() {
	fmt.Println(`Imagevault Migration Tool

Usage:
  imagevault-migrate [-config path] <command>

Commands:
  up          Create indexes/schema for the configured metadata store
  status      Check metadata store connectivity
  version     Print version information
  help        Show this help message

Configuration is read from the config file and IMAGEVAULT_* environment
variables, the same as the server.

Examples:
  imagevault-migrate up
  imagevault-migrate -config ./configs/config.yaml up
  imagevault-migrate status`)
}
