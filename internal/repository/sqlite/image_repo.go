package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prn-tf/imagevault/internal/domain"
	"github.com/prn-tf/imagevault/internal/repository"
)

// timeLayout is how timestamps are stored in SQLite TEXT columns. The
// fraction is fixed-width so that lexicographic order on the TEXT
// column matches chronological order; RFC3339Nano trims trailing
// zeros, which breaks ORDER BY created_at.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// imageRepository implements repository.ImageRepository for SQLite.
// Tags live in a separate image_tags table; the conjunctive filter is a
// GROUP BY/HAVING subquery over it.
type imageRepository struct {
	db *DB
}

// NewImageRepository creates a new SQLite image repository.
func NewImageRepository(db *DB) repository.ImageRepository {
	return &imageRepository{db: db}
}

const imageColumns = `id, name, description, filename, thumbnail_url, hd_url,
	file_size, content_type, downloads, created_at, updated_at, is_featured`

func scanImage(row interface{ Scan(...any) error }) (*domain.Image, error) {
	img := &domain.Image{}
	var createdAt string
	var updatedAt sql.NullString

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
		&createdAt,
		&updatedAt,
		&img.IsFeatured,
	)
	if err != nil {
		return nil, err
	}

	img.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if updatedAt.Valid {
		t, err := time.Parse(timeLayout, updatedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}
		img.UpdatedAt = &t
	}

	img.Tags = []string{}
	return img, nil
}

// Insert persists a new image record and returns the generated ID.
func (r *imageRepository) Insert(ctx context.Context, img *domain.Image) (string, error) {
	id := uuid.NewString()

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO images (id, name, description, filename, thumbnail_url, hd_url,
				file_size, content_type, downloads, created_at, is_featured)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			id,
			img.Name,
			img.Description,
			img.Filename,
			img.ThumbnailURL,
			img.HDURL,
			img.FileSize,
			img.ContentType,
			img.Downloads,
			img.CreatedAt.UTC().Format(timeLayout),
			img.IsFeatured,
		)
		if err != nil {
			return err
		}
		return insertTags(ctx, tx, id, img.Tags)
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert image: %w", err)
	}

	img.ID = id
	return id, nil
}

// insertTags stores tags with their list position so reads return them
// in insertion order, matching the array-backed stores.
func insertTags(ctx context.Context, tx *sql.Tx, imageID string, tags []string) error {
	for i, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO image_tags (image_id, tag, position) VALUES (?, ?, ?)`,
			imageID, tag, i); err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves an image by ID.
func (r *imageRepository) GetByID(ctx context.Context, id string) (*domain.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = ?`

	img, err := scanImage(r.db.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	if err := r.attachTags(ctx, []*domain.Image{img}); err != nil {
		return nil, err
	}
	return img, nil
}

// List returns images matching the filter, newest first.
func (r *imageRepository) List(ctx context.Context, filter repository.ImageFilter, opts repository.ListOptions) ([]*domain.Image, error) {
	where, args := buildWhere(filter)
	args = append(args, opts.Limit, opts.Skip)

	query := fmt.Sprintf(
		`SELECT %s FROM images %s ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		imageColumns, where,
	)

	rows, err := r.db.db.QueryContext(ctx, query, args...)
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

	if err := r.attachTags(ctx, images); err != nil {
		return nil, err
	}
	return images, nil
}

// Count returns the number of images matching the filter.
func (r *imageRepository) Count(ctx context.Context, filter repository.ImageFilter) (int64, error) {
	where, args := buildWhere(filter)

	var count int64
	err := r.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images `+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return count, nil
}

// UpdateFields applies the non-nil patch fields and stamps updated_at.
func (r *imageRepository) UpdateFields(ctx context.Context, id string, patch domain.ImagePatch) error {
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		sets := []string{"updated_at = ?"}
		args := []any{time.Now().UTC().Format(timeLayout)}

		if patch.Name != nil {
			sets = append(sets, "name = ?")
			args = append(args, *patch.Name)
		}
		if patch.Description != nil {
			sets = append(sets, "description = ?")
			args = append(args, *patch.Description)
		}
		if patch.IsFeatured != nil {
			sets = append(sets, "is_featured = ?")
			args = append(args, *patch.IsFeatured)
		}
		args = append(args, id)

		query := fmt.Sprintf(`UPDATE images SET %s WHERE id = ?`, strings.Join(sets, ", "))

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrImageNotFound
		}

		if patch.Tags != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM image_tags WHERE image_id = ?`, id); err != nil {
				return err
			}
			if err := insertTags(ctx, tx, id, patch.Tags); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			return domain.ErrImageNotFound
		}
		return fmt.Errorf("failed to update image: %w", err)
	}
	return nil
}

// Delete removes an image record. Tags go with it via ON DELETE CASCADE.
func (r *imageRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	if affected == 0 {
		return domain.ErrImageNotFound
	}
	return nil
}

// IncrementDownloads atomically increments the counter.
func (r *imageRepository) IncrementDownloads(ctx context.Context, id string, delta int64) error {
	result, err := r.db.db.ExecContext(ctx,
		`UPDATE images SET downloads = downloads + ? WHERE id = ?`, delta, id)
	if err != nil {
		return fmt.Errorf("failed to increment downloads: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to increment downloads: %w", err)
	}
	if affected == 0 {
		return domain.ErrImageNotFound
	}
	return nil
}

// SumDownloads returns the counter total across all images.
func (r *imageRepository) SumDownloads(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(downloads), 0) FROM images`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum downloads: %w", err)
	}
	return total, nil
}

// attachTags loads tags for the given images in one query.
func (r *imageRepository) attachTags(ctx context.Context, images []*domain.Image) error {
	if len(images) == 0 {
		return nil
	}

	placeholders := make([]string, len(images))
	args := make([]any, len(images))
	byID := make(map[string]*domain.Image, len(images))
	for i, img := range images {
		placeholders[i] = "?"
		args[i] = img.ID
		byID[img.ID] = img
	}

	query := fmt.Sprintf(
		`SELECT image_id, tag FROM image_tags WHERE image_id IN (%s) ORDER BY position`,
		strings.Join(placeholders, ", "),
	)

	rows, err := r.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var imageID, tag string
		if err := rows.Scan(&imageID, &tag); err != nil {
			return fmt.Errorf("failed to scan tag: %w", err)
		}
		if img, ok := byID[imageID]; ok {
			img.Tags = append(img.Tags, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating tags: %w", err)
	}
	return nil
}

// buildWhere translates the typed filter into a WHERE clause.
// The tag condition requires every listed tag to be present on the image.
func buildWhere(filter repository.ImageFilter) (string, []any) {
	conds := []string{}
	args := []any{}

	if len(filter.Tags) > 0 {
		placeholders := make([]string, len(filter.Tags))
		for i, tag := range filter.Tags {
			placeholders[i] = "?"
			args = append(args, tag)
		}
		conds = append(conds, fmt.Sprintf(
			`id IN (SELECT image_id FROM image_tags WHERE tag IN (%s)
				GROUP BY image_id HAVING COUNT(DISTINCT tag) = ?)`,
			strings.Join(placeholders, ", "),
		))
		args = append(args, len(filter.Tags))
	}
	if filter.Featured != nil {
		conds = append(conds, "is_featured = ?")
		args = append(args, *filter.Featured)
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// Ensure imageRepository implements repository.ImageRepository
var _ repository.ImageRepository = (*imageRepository)(nil)
