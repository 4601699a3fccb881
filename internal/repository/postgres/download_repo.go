package postgres

import (
	"context"
	"fmt"

	"github.com/prn-tf/imagevault/internal/domain"
	"github.com/prn-tf/imagevault/internal/repository"
)

// downloadRepository implements repository.DownloadRepository for PostgreSQL.
type downloadRepository struct {
	db *DB
}

// NewDownloadRepository creates a new PostgreSQL download event repository.
func NewDownloadRepository(db *DB) repository.DownloadRepository {
	return &downloadRepository{db: db}
}

// Insert records a single download event.
func (r *downloadRepository) Insert(ctx context.Context, dl *domain.Download) error {
	query := `
		INSERT INTO downloads (image_id, ip_address, user_agent, referer, country_code, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		dl.ImageID,
		dl.IPAddress,
		dl.UserAgent,
		dl.Referer,
		dl.CountryCode,
		dl.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert download event: %w", err)
	}
	return nil
}

// Ensure downloadRepository implements repository.DownloadRepository
var _ repository.DownloadRepository = (*downloadRepository)(nil)
