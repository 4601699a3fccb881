// Package repository defines data access interfaces for Imagevault.
// These interfaces abstract the metadata store, allowing different
// implementations (MongoDB, PostgreSQL, SQLite, mocks for testing) while
// keeping the service layer clean.
package repository

import (
	"context"

	"github.com/prn-tf/imagevault/internal/domain"
)

// =============================================================================
// Image Repository
// =============================================================================

// ImageRepository defines the interface for image record access.
// Dynamic store documents are mapped to the strongly-typed domain.Image at
// this boundary; missing numeric fields default to zero, missing tag sets
// to an empty slice.
type ImageRepository interface {
	// Insert persists a new image record and returns the assigned ID.
	Insert(ctx context.Context, img *domain.Image) (string, error)

	// GetByID retrieves an image by ID.
	// Returns domain.ErrImageNotFound if the record is absent or the ID is
	// not a valid identifier for the backing store.
	GetByID(ctx context.Context, id string) (*domain.Image, error)

	// List returns images matching the filter, ordered by creation time
	// descending, with offset pagination applied.
	List(ctx context.Context, filter ImageFilter, opts ListOptions) ([]*domain.Image, error)

	// Count returns the number of images matching the filter, ignoring
	// pagination.
	Count(ctx context.Context, filter ImageFilter) (int64, error)

	// UpdateFields applies the non-nil patch fields to the record and sets
	// the updated timestamp. Filename, URLs and the download counter are
	// never written by this method.
	UpdateFields(ctx context.Context, id string, patch domain.ImagePatch) error

	// Delete removes an image record by ID.
	// Returns domain.ErrImageNotFound if the record is absent.
	Delete(ctx context.Context, id string) error

	// IncrementDownloads atomically adds delta to the image's download
	// counter. Returns domain.ErrImageNotFound if the record is absent;
	// a missing record is never created.
	IncrementDownloads(ctx context.Context, id string, delta int64) error

	// SumDownloads returns the sum of the download counter across all
	// image records, computed by the store.
	SumDownloads(ctx context.Context) (int64, error)
}

// ImageFilter describes the optional list/count filters.
type ImageFilter struct {
	// Tags is a conjunctive filter: matching images carry ALL listed tags.
	Tags []string

	// Featured, when non-nil, matches the featured flag exactly.
	Featured *bool
}

// ListOptions contains offset pagination options.
type ListOptions struct {
	// Skip is the number of records to skip.
	Skip int

	// Limit is the maximum number of records to return.
	Limit int
}

// =============================================================================
// Download Repository
// =============================================================================

// DownloadRepository defines the interface for download event access.
// Events are append-only detail: reads of download totals go through the
// image record's counter, not the event log.
type DownloadRepository interface {
	// Insert persists a new download event.
	Insert(ctx context.Context, dl *domain.Download) error
}

// =============================================================================
// Common Types
// =============================================================================

// Database is the health/lifecycle surface a metadata store connection
// exposes to the rest of the application.
type Database interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Repositories bundles the repository instances for one backend.
type Repositories struct {
	Images    ImageRepository
	Downloads DownloadRepository
}
