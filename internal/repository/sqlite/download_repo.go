package sqlite

import (
	"context"
	"fmt"

	"github.com/prn-tf/imagevault/internal/domain"
	"github.com/prn-tf/imagevault/internal/repository"
)

// downloadRepository implements repository.DownloadRepository for SQLite.
type downloadRepository struct {
	db *DB
}

// NewDownloadRepository creates a new SQLite download event repository.
func NewDownloadRepository(db *DB) repository.DownloadRepository {
	return &downloadRepository{db: db}
}

// Insert records a single download event.
func (r *downloadRepository) Insert(ctx context.Context, dl *domain.Download) error {
	_, err := r.db.db.ExecContext(ctx, `
		INSERT INTO downloads (image_id, ip_address, user_agent, referer, country_code, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		dl.ImageID,
		dl.IPAddress,
		dl.UserAgent,
		dl.Referer,
		dl.CountryCode,
		dl.Timestamp.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert download event: %w", err)
	}
	return nil
}

// Ensure downloadRepository implements repository.DownloadRepository
var _ repository.DownloadRepository = (*downloadRepository)(nil)
