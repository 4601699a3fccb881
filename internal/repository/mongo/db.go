// Package mongo provides the MongoDB metadata store implementation.
// MongoDB is the default backend: image records and download events live in
// the "images" and "downloads" collections of a single database.
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/prn-tf/imagevault/internal/config"
)

const (
	imagesCollection    = "images"
	downloadsCollection = "downloads"
)

// DB wraps a mongo client with the application database handle.
type DB struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
	logger  zerolog.Logger
}

// NewDB connects to MongoDB and verifies the connection.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info().
		Str("database", cfg.Database).
		Msg("connected to MongoDB")

	return &DB{
		client:  client,
		db:      client.Database(cfg.Database),
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// Images returns the images collection.
func (d *DB) Images() *mongo.Collection {
	return d.db.Collection(imagesCollection)
}

// Downloads returns the downloads collection.
func (d *DB) Downloads() *mongo.Collection {
	return d.db.Collection(downloadsCollection)
}

// Ping checks the database connection.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()
	return d.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (d *DB) Close(ctx context.Context) error {
	if err := d.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	d.logger.Info().Msg("MongoDB connection closed")
	return nil
}

// EnsureIndexes creates the collections' secondary indexes. Safe to run
// repeatedly; index creation is idempotent.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	imageIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "is_featured", Value: 1}}},
	}
	if _, err := d.Images().Indexes().CreateMany(ctx, imageIndexes); err != nil {
		return fmt.Errorf("failed to create image indexes: %w", err)
	}

	downloadIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "image_id", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "ip_address", Value: 1}}},
	}
	if _, err := d.Downloads().Indexes().CreateMany(ctx, downloadIndexes); err != nil {
		return fmt.Errorf("failed to create download indexes: %w", err)
	}

	d.logger.Info().Msg("MongoDB indexes ensured")
	return nil
}

// opCtx bounds an operation with the configured timeout when the caller's
// context carries no deadline.
func (d *DB) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.timeout)
}
