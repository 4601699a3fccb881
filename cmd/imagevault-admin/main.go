// Package main is the entry point for the Imagevault admin CLI.
// It provides operational commands: service statistics and orphaned blob
// detection.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/imagevault/internal/config"
	"github.com/prn-tf/imagevault/internal/domain"
	"github.com/prn-tf/imagevault/internal/repository"
	"github.com/prn-tf/imagevault/internal/repository/factory"
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

const scanPageSize = 100

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
		fmt.Printf("Imagevault Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "stats":
		if err := stats(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "stats failed: %v\n", err)
			os.Exit(1)
		}

	case "orphans":
		if err := orphans(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "orphan scan failed: %v\n", err)
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

// stats prints image and download totals.
func stats(configPath string) error {
	cfg := config.MustLoad(configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := factory.New(ctx, cfg.Database, zerolog.Nop())
	if err != nil {
		return err
	}
	defer result.Database.Close(context.Background())

	images, err := result.Repos.Images.Count(ctx, repository.ImageFilter{})
	if err != nil {
		return err
	}
	featured := true
	featuredCount, err := result.Repos.Images.Count(ctx, repository.ImageFilter{Featured: &featured})
	if err != nil {
		return err
	}
	downloads, err := result.Repos.Images.SumDownloads(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("images:          %d\n", images)
	fmt.Printf("featured:        %d\n", featuredCount)
	fmt.Printf("total downloads: %d\n", downloads)
	return nil
}

// orphans lists stored blobs no image record references. These are
// leftovers from ingests that failed after a blob was written but before
// cleanup could remove it.
func orphans(configPath string) error {
	cfg := config.MustLoad(configPath)
	logger := zerolog.Nop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := factory.New(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer result.Database.Close(context.Background())

	backend, err := newStorageBackend(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}

	referenced, err := referencedKeys(ctx, result.Repos.Images)
	if err != nil {
		return err
	}

	total := 0
	for _, bucket := range []string{cfg.Storage.OriginalBucket, cfg.Storage.ThumbnailBucket} {
		keys, err := backend.List(ctx, bucket)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if !referenced[key] {
				fmt.Printf("%s/%s\n", bucket, key)
				total++
			}
		}
	}

	fmt.Printf("orphaned blobs: %d\n", total)
	return nil
}

// referencedKeys pages through all image records and collects every
// storage key a record points at, originals and thumbnails both.
func referencedKeys(ctx context.Context, images repository.ImageRepository) (map[string]bool, error) {
	keys := make(map[string]bool)

	for skip := 0; ; skip += scanPageSize {
		page, err := images.List(ctx, repository.ImageFilter{}, repository.ListOptions{
			Skip:  skip,
			Limit: scanPageSize,
		})
		if err != nil {
			return nil, err
		}
		for _, img := range page {
			keys[img.Filename] = true
			keys[domain.ThumbnailKey(img.Filename)] = true
		}
		if len(page) < scanPageSize {
			return keys, nil
		}
	}
}

func newStorageBackend(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (storage.Backend, error) {
	if cfg.Backend == "filesystem" {
		return fs.NewBackend(cfg.DataDir, logger)
	}
	return s3.NewBackend(ctx, cfg.S3, logger)
}

func printUsage() {
	fmt.Println(`Imagevault Admin CLI

Usage:
  imagevault-admin [-config path] <command>

Commands:
  stats       Print image and download totals
  orphans     List stored blobs no image record references
  version     Print version information
  help        Show this help message

Examples:
  imagevault-admin stats
  imagevault-admin -config ./configs/config.yaml orphans`)
}
