package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/imagevault/internal/domain"
)

// CachedImageRepository decorates an ImageRepository with a read-through
// cache for GetByID. Every write path invalidates the cached record, so a
// stale entry can only outlive a write by the window between the inner
// store commit and the cache delete. Cache failures are logged and treated
// as misses; the store stays authoritative.
type CachedImageRepository struct {
	inner  ImageRepository
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedImageRepository wraps inner with the given cache.
func NewCachedImageRepository(inner ImageRepository, cache Cache, ttl time.Duration, logger zerolog.Logger) *CachedImageRepository {
	return &CachedImageRepository{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "image_cache").Logger(),
	}
}

// Insert persists the record and primes the cache with the stored copy.
func (r *CachedImageRepository) Insert(ctx context.Context, img *domain.Image) (string, error) {
	id, err := r.inner.Insert(ctx, img)
	if err != nil {
		return "", err
	}
	r.prime(ctx, img)
	return id, nil
}

// GetByID returns the cached record when present, otherwise reads through.
func (r *CachedImageRepository) GetByID(ctx context.Context, id string) (*domain.Image, error) {
	if data, err := r.cache.Get(ctx, CacheKeys.Image(id)); err == nil {
		var img domain.Image
		if err := json.Unmarshal(data, &img); err == nil {
			return &img, nil
		}
		// Corrupt entry: drop it and fall through to the store.
		_ = r.cache.Delete(ctx, CacheKeys.Image(id))
	} else if !errors.Is(err, ErrCacheMiss) {
		r.logger.Warn().Err(err).Str("image_id", id).Msg("cache read failed")
	}

	img, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.prime(ctx, img)
	return img, nil
}

// List is a passthrough; list results are not cached.
func (r *CachedImageRepository) List(ctx context.Context, filter ImageFilter, opts ListOptions) ([]*domain.Image, error) {
	return r.inner.List(ctx, filter, opts)
}

// Count is a passthrough.
func (r *CachedImageRepository) Count(ctx context.Context, filter ImageFilter) (int64, error) {
	return r.inner.Count(ctx, filter)
}

// UpdateFields applies the patch and invalidates the cached record.
func (r *CachedImageRepository) UpdateFields(ctx context.Context, id string, patch domain.ImagePatch) error {
	if err := r.inner.UpdateFields(ctx, id, patch); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// Delete removes the record and invalidates the cached copy.
func (r *CachedImageRepository) Delete(ctx context.Context, id string) error {
	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// IncrementDownloads bumps the counter and invalidates the cached record,
// so subsequent reads see the fresh count.
func (r *CachedImageRepository) IncrementDownloads(ctx context.Context, id string, delta int64) error {
	if err := r.inner.IncrementDownloads(ctx, id, delta); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// SumDownloads is a passthrough; the aggregate is cheap at the store.
func (r *CachedImageRepository) SumDownloads(ctx context.Context) (int64, error) {
	return r.inner.SumDownloads(ctx)
}

func (r *CachedImageRepository) prime(ctx context.Context, img *domain.Image) {
	data, err := json.Marshal(img)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, CacheKeys.Image(img.ID), data, r.ttl); err != nil {
		r.logger.Warn().Err(err).Str("image_id", img.ID).Msg("cache write failed")
	}
}

func (r *CachedImageRepository) invalidate(ctx context.Context, id string) {
	if err := r.cache.Delete(ctx, CacheKeys.Image(id)); err != nil {
		r.logger.Warn().Err(err).Str("image_id", id).Msg("cache invalidation failed")
	}
}

// Ensure CachedImageRepository implements ImageRepository.
var _ ImageRepository = (*CachedImageRepository)(nil)
