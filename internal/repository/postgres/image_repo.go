package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/imagevault/internal/domain"
	"github.com/prn-tf/imagevault/internal/repository"
)

// imageRepository implements repository.ImageRepository for PostgreSQL.
// Tags are stored as a TEXT[] column; the conjunctive filter uses the
// array containment operator over a GIN index.
type imageRepository struct {
	db *DB
}

// NewImageRepository creates a new PostgreSQL image repository.
func NewImageRepository(db *DB) repository.ImageRepository {
	return &imageRepository{db: db}
}

const imageColumns = `id, name, description, filename, thumbnail_url, hd_url,
	file_size, content_type, downloads, tags, created_at, updated_at, is_featured`

func scanImage(row pgx.Row) (*domain.Image, error) {
	img := &domain.Image{}
	err := row.Scan(
		&img.ID,
		&img.Name,
		&img.Description,
		&img.Filename,
		&img.ThumbnailURL,
		&img.HDURL,
		&img.FileSize,
		&img.ContentType,
		&img.Downloads,
		&img.Tags,
		&img.CreatedAt,
		&img.UpdatedAt,
		&img.IsFeatured,
	)
	if err != nil {
		return nil, err
	}
	if img.Tags == nil {
		img.Tags = []string{}
	}
	return img, nil
}

// Insert persists a new image record and returns the generated ID.
func (r *imageRepository) Insert(ctx context.Context, img *domain.Image) (string, error) {
	query := `
		INSERT INTO images (name, description, filename, thumbnail_url, hd_url,
			file_size, content_type, downloads, tags, created_at, is_featured)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	var id string
	err := r.db.Pool.QueryRow(ctx, query,
		img.Name,
		img.Description,
		img.Filename,
		img.ThumbnailURL,
		img.HDURL,
		img.FileSize,
		img.ContentType,
		img.Downloads,
		img.Tags,
		img.CreatedAt,
		img.IsFeatured,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to insert image: %w", err)
	}

	img.ID = id
	return id, nil
}

// GetByID retrieves an image by ID.
func (r *imageRepository) GetByID(ctx context.Context, id string) (*domain.Image, error) {
	if _, err := uuid.Parse(id); err != nil {
		// Malformed IDs behave exactly like absent records.
		return nil, domain.ErrImageNotFound
	}

	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1`

	img, err := scanImage(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return img, nil
}

// List returns images matching the filter, newest first.
func (r *imageRepository) List(ctx context.Context, filter repository.ImageFilter, opts repository.ListOptions) ([]*domain.Image, error) {
	where, args := buildWhere(filter)
	args = append(args, opts.Limit, opts.Skip)

	query := fmt.Sprintf(
		`SELECT %s FROM images %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		imageColumns, where, len(args)-1, len(args),
	)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	images := []*domain.Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}

	return images, nil
}

// Count returns the number of images matching the filter.
func (r *imageRepository) Count(ctx context.Context, filter repository.ImageFilter) (int64, error) {
	where, args := buildWhere(filter)

	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM images `+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return count, nil
}

// UpdateFields applies the non-nil patch fields and stamps updated_at.
func (r *imageRepository) UpdateFields(ctx context.Context, id string, patch domain.ImagePatch) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrImageNotFound
	}

	sets := []string{"updated_at = $2"}
	args := []any{id, time.Now().UTC()}

	if patch.Name != nil {
		args = append(args, *patch.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if patch.Description != nil {
		args = append(args, *patch.Description)
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)))
	}
	if patch.Tags != nil {
		args = append(args, patch.Tags)
		sets = append(sets, fmt.Sprintf("tags = $%d", len(args)))
	}
	if patch.IsFeatured != nil {
		args = append(args, *patch.IsFeatured)
		sets = append(sets, fmt.Sprintf("is_featured = $%d", len(args)))
	}

	query := fmt.Sprintf(`UPDATE images SET %s WHERE id = $1`, strings.Join(sets, ", "))

	result, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update image: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrImageNotFound
	}
	return nil
}

// Delete removes an image record.
func (r *imageRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrImageNotFound
	}

	result, err := r.db.Pool.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrImageNotFound
	}
	return nil
}

// IncrementDownloads atomically increments the counter.
func (r *imageRepository) IncrementDownloads(ctx context.Context, id string, delta int64) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrImageNotFound
	}

	result, err := r.db.Pool.Exec(ctx,
		`UPDATE images SET downloads = downloads + $2 WHERE id = $1`, id, delta)
	if err != nil {
		return fmt.Errorf("failed to increment downloads: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrImageNotFound
	}
	return nil
}

// SumDownloads returns the counter total across all images.
func (r *imageRepository) SumDownloads(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COALESCE(SUM(downloads), 0) FROM images`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum downloads: %w", err)
	}
	return total, nil
}

// buildWhere translates the typed filter into a WHERE clause.
// Tags use array containment: matching images must carry every listed tag.
func buildWhere(filter repository.ImageFilter) (string, []any) {
	conds := []string{}
	args := []any{}

	if len(filter.Tags) > 0 {
		args = append(args, filter.Tags)
		conds = append(conds, fmt.Sprintf("tags @> $%d", len(args)))
	}
	if filter.Featured != nil {
		args = append(args, *filter.Featured)
		conds = append(conds, fmt.Sprintf("is_featured = $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// Ensure imageRepository implements repository.ImageRepository
var _ repository.ImageRepository = (*imageRepository)(nil)
