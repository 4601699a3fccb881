package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/prn-tf/imagevault/internal/domain"
	"github.com/prn-tf/imagevault/internal/repository"
)

// downloadDoc is the stored shape of a download event.
type downloadDoc struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	ImageID     string        `bson:"image_id"`
	IPAddress   string        `bson:"ip_address"`
	UserAgent   string        `bson:"user_agent"`
	Referer     string        `bson:"referer"`
	CountryCode string        `bson:"country_code"`
	Timestamp   time.Time     `bson:"timestamp"`
}

type downloadRepository struct {
	db *DB
}

// NewDownloadRepository creates a MongoDB download event repository.
func NewDownloadRepository(db *DB) repository.DownloadRepository {
	return &downloadRepository{db: db}
}

// Insert records a single download event.
func (r *downloadRepository) Insert(ctx context.Context, dl *domain.Download) error {
	ctx, cancel := r.db.opCtx(ctx)
	defer cancel()

	doc := downloadDoc{
		ImageID:     dl.ImageID,
		IPAddress:   dl.IPAddress,
		UserAgent:   dl.UserAgent,
		Referer:     dl.Referer,
		CountryCode: dl.CountryCode,
		Timestamp:   dl.Timestamp,
	}

	if _, err := r.db.Downloads().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert download event: %w", err)
	}
	return nil
}
