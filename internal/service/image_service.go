// Package service provides business logic services for Imagevault.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/imagevault/internal/domain"
	"github.com/prn-tf/imagevault/internal/imaging"
	"github.com/prn-tf/imagevault/internal/lock"
	"github.com/prn-tf/imagevault/internal/metrics"
	"github.com/prn-tf/imagevault/internal/repository"
	"github.com/prn-tf/imagevault/internal/storage"
)

const (
	// defaultListLimit applies when a list request doesn't specify one.
	defaultListLimit = 20

	// maxListLimit caps a single page.
	maxListLimit = 100

	// writeLockTTL bounds how long a crashed writer can block a record.
	writeLockTTL = 30 * time.Second

	lockRetries    = 5
	lockRetryDelay = 200 * time.Millisecond
)

// ImageService handles the image ingestion pipeline and record lifecycle.
type ImageService struct {
	imageRepo       repository.ImageRepository
	backend         storage.Backend
	thumbnailer     imaging.Thumbnailer
	urls            *storage.URLBuilder
	locker          lock.Locker
	metrics         *metrics.Metrics
	originalBucket  string
	thumbnailBucket string
	logger          zerolog.Logger
}

// NewImageService creates a new ImageService.
func NewImageService(
	imageRepo repository.ImageRepository,
	backend storage.Backend,
	thumbnailer imaging.Thumbnailer,
	urls *storage.URLBuilder,
	locker lock.Locker,
	m *metrics.Metrics,
	originalBucket, thumbnailBucket string,
	logger zerolog.Logger,
) *ImageService {
	return &ImageService{
		imageRepo:       imageRepo,
		backend:         backend,
		thumbnailer:     thumbnailer,
		urls:            urls,
		locker:          locker,
		metrics:         m,
		originalBucket:  originalBucket,
		thumbnailBucket: thumbnailBucket,
		logger:          logger.With().Str("service", "image").Logger(),
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// CreateImageInput contains the data needed to ingest an upload.
type CreateImageInput struct {
	Name        string
	Description string
	Tags        []string
	IsFeatured  bool
	Filename    string
	ContentType string
	Data        []byte
}

// ListImagesInput contains list filters and pagination.
type ListImagesInput struct {
	// Tags filters conjunctively: results carry ALL listed tags.
	Tags []string

	// Featured, when non-nil, filters by the featured flag.
	Featured *bool

	// Skip is the number of records to skip.
	Skip int

	// Limit is the page size; 0 means the default.
	Limit int
}

// ListImagesOutput contains one page of images and the filtered total.
type ListImagesOutput struct {
	Images []*domain.Image
	Total  int64
}

// =============================================================================
// Service Methods
// =============================================================================

// CreateImage runs the ingestion pipeline: validate, thumbnail, store both
// blobs, then insert the metadata record. A failure after the original is
// stored deletes whatever blobs were already written, so no record ever
// points at missing blobs and no blobs outlive a failed ingest.
func (s *ImageService) CreateImage(ctx context.Context, input CreateImageInput) (*domain.Image, error) {
	if input.Name == "" {
		return nil, domain.ErrImageNameRequired
	}
	if len(input.Data) == 0 {
		return nil, domain.ErrFileEmpty
	}

	thumbStart := time.Now()
	thumb, err := s.thumbnailer.Generate(input.Data)
	if err != nil {
		s.observeUpload(false, 0)
		if errors.Is(err, domain.ErrUndecodableImage) {
			return nil, fmt.Errorf("%w: %v", ErrThumbnailFailure, err)
		}
		s.logger.Error().Err(err).Str("filename", input.Filename).Msg("thumbnail generation failed")
		return nil, fmt.Errorf("%w: %v", ErrThumbnailFailure, err)
	}
	s.observeThumbnail(time.Since(thumbStart))

	key := uuid.NewString() + domain.ExtensionFor(input.Filename, input.ContentType)
	thumbKey := domain.ThumbnailKey(key)
	size := int64(len(input.Data))

	contentType := input.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.backend.Put(ctx, s.originalBucket, key, bytes.NewReader(input.Data), size, contentType); err != nil {
		s.observeUpload(false, 0)
		s.logger.Error().Err(err).Str("key", key).Msg("failed to store original")
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	if err := s.backend.Put(ctx, s.thumbnailBucket, thumbKey, bytes.NewReader(thumb.Data), int64(len(thumb.Data)), thumb.ContentType); err != nil {
		s.observeUpload(false, 0)
		s.logger.Error().Err(err).Str("key", thumbKey).Msg("failed to store thumbnail")
		s.cleanupBlobs(ctx, key, "")
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	img := domain.NewImage(
		input.Name,
		input.Description,
		key,
		s.urls.URL(s.thumbnailBucket, thumbKey),
		s.urls.URL(s.originalBucket, key),
		contentType,
		size,
		input.Tags,
		input.IsFeatured,
	)

	if _, err := s.imageRepo.Insert(ctx, img); err != nil {
		s.observeUpload(false, 0)
		s.logger.Error().Err(err).Str("key", key).Msg("failed to insert image record")
		s.cleanupBlobs(ctx, key, thumbKey)
		return nil, fmt.Errorf("%w: %v", ErrMetadataFailure, err)
	}

	s.observeUpload(true, size)
	s.logger.Info().
		Str("image_id", img.ID).
		Str("key", key).
		Int64("size", size).
		Msg("image ingested")

	return img, nil
}

// GetImage retrieves one image record.
func (s *ImageService) GetImage(ctx context.Context, id string) (*domain.Image, error) {
	img, err := s.imageRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			return nil, domain.ErrImageNotFound
		}
		s.logger.Error().Err(err).Str("image_id", id).Msg("failed to get image")
		return nil, fmt.Errorf("%w: %v", ErrMetadataFailure, err)
	}
	return img, nil
}

// ListImages returns one page of images, newest first, with the total
// matching the same filter.
func (s *ImageService) ListImages(ctx context.Context, input ListImagesInput) (*ListImagesOutput, error) {
	if input.Limit == 0 {
		input.Limit = defaultListLimit
	}
	if input.Skip < 0 || input.Limit < 1 || input.Limit > maxListLimit {
		return nil, domain.ErrInvalidPagination
	}

	filter := repository.ImageFilter{
		Tags:     input.Tags,
		Featured: input.Featured,
	}

	images, err := s.imageRepo.List(ctx, filter, repository.ListOptions{
		Skip:  input.Skip,
		Limit: input.Limit,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list images")
		return nil, fmt.Errorf("%w: %v", ErrMetadataFailure, err)
	}

	total, err := s.imageRepo.Count(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to count images")
		return nil, fmt.Errorf("%w: %v", ErrMetadataFailure, err)
	}

	return &ListImagesOutput{
		Images: images,
		Total:  total,
	}, nil
}

// UpdateImage applies a partial metadata update under the record's write
// lock and returns the updated record. Filename, URLs and the download
// counter are never touched.
func (s *ImageService) UpdateImage(ctx context.Context, id string, patch domain.ImagePatch) (*domain.Image, error) {
	if patch.IsEmpty() {
		return nil, domain.ErrEmptyPatch
	}

	release, err := s.acquireWriteLock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.imageRepo.UpdateFields(ctx, id, patch); err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			return nil, domain.ErrImageNotFound
		}
		s.logger.Error().Err(err).Str("image_id", id).Msg("failed to update image")
		return nil, fmt.Errorf("%w: %v", ErrMetadataFailure, err)
	}

	img, err := s.imageRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			return nil, domain.ErrImageNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrMetadataFailure, err)
	}

	s.logger.Info().Str("image_id", id).Msg("image updated")
	return img, nil
}

// DeleteImage removes the image's blobs and then its metadata record,
// under the record's write lock. Blobs go first: if a blob delete fails
// the record stays, so the image remains discoverable and the delete can
// be retried. Blob deletes are idempotent, so a retry after a partial
// failure is safe.
func (s *ImageService) DeleteImage(ctx context.Context, id string) error {
	release, err := s.acquireWriteLock(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	img, err := s.imageRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			return domain.ErrImageNotFound
		}
		return fmt.Errorf("%w: %v", ErrMetadataFailure, err)
	}

	if err := s.backend.Delete(ctx, s.originalBucket, img.Filename); err != nil {
		s.logger.Error().Err(err).Str("image_id", id).Msg("failed to delete original blob")
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if err := s.backend.Delete(ctx, s.thumbnailBucket, domain.ThumbnailKey(img.Filename)); err != nil {
		s.logger.Error().Err(err).Str("image_id", id).Msg("failed to delete thumbnail blob")
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	if err := s.imageRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			return domain.ErrImageNotFound
		}
		s.logger.Error().Err(err).Str("image_id", id).Msg("failed to delete image record")
		return fmt.Errorf("%w: %v", ErrMetadataFailure, err)
	}

	s.logger.Info().Str("image_id", id).Msg("image deleted")
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// acquireWriteLock serializes writers on one record. The returned release
// func is safe to call once the operation finishes.
func (s *ImageService) acquireWriteLock(ctx context.Context, id string) (func(), error) {
	key := lock.Keys.Image(id)

	acquired, err := s.locker.AcquireWithRetry(ctx, key, writeLockTTL, lockRetries, lockRetryDelay)
	if err != nil {
		s.logger.Error().Err(err).Str("image_id", id).Msg("lock acquisition failed")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !acquired {
		return nil, ErrLockTimeout
	}

	return func() {
		if _, err := s.locker.Release(context.WithoutCancel(ctx), key); err != nil {
			s.logger.Warn().Err(err).Str("image_id", id).Msg("lock release failed")
		}
	}, nil
}

// cleanupBlobs removes blobs written by a failed ingest. Failures are
// logged, not returned; the ingest error is what the caller needs.
func (s *ImageService) cleanupBlobs(ctx context.Context, key, thumbKey string) {
	ctx = context.WithoutCancel(ctx)
	if key != "" {
		if err := s.backend.Delete(ctx, s.originalBucket, key); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to clean up original blob")
		}
	}
	if thumbKey != "" {
		if err := s.backend.Delete(ctx, s.thumbnailBucket, thumbKey); err != nil {
			s.logger.Warn().Err(err).Str("key", thumbKey).Msg("failed to clean up thumbnail blob")
		}
	}
}

func (s *ImageService) observeUpload(success bool, size int64) {
	if s.metrics != nil {
		s.metrics.ObserveUpload(success, size)
	}
}

func (s *ImageService) observeThumbnail(d time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveThumbnail(d)
	}
}
