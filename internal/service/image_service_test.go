// Package service provides business logic services for Imagevault.
package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/imagevault/internal/domain"
	"github.com/prn-tf/imagevault/internal/imaging"
	"github.com/prn-tf/imagevault/internal/repository"
	"github.com/prn-tf/imagevault/internal/storage"
)

// =============================================================================
// Mock Types
// =============================================================================

type mockImageRepository struct {
	mock.Mock
}

func (m *mockImageRepository) Insert(ctx context.Context, img *domain.Image) (string, error) {
	args := m.Called(ctx, img)
	return args.String(0), args.Error(1)
}

func (m *mockImageRepository) GetByID(ctx context.Context, id string) (*domain.Image, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Image), args.Error(1)
}

func (m *mockImageRepository) List(ctx context.Context, filter repository.ImageFilter, opts repository.ListOptions) ([]*domain.Image, error) {
	args := m.Called(ctx, filter, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Image), args.Error(1)
}

func (m *mockImageRepository) Count(ctx context.Context, filter repository.ImageFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockImageRepository) UpdateFields(ctx context.Context, id string, patch domain.ImagePatch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}

func (m *mockImageRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockImageRepository) IncrementDownloads(ctx context.Context, id string, delta int64) error {
	args := m.Called(ctx, id, delta)
	return args.Error(0)
}

func (m *mockImageRepository) SumDownloads(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockStorageBackend struct {
	mock.Mock
}

func (m *mockStorageBackend) Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error {
	args := m.Called(ctx, bucket, key, reader, size, contentType)
	return args.Error(0)
}

func (m *mockStorageBackend) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, bucket, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *mockStorageBackend) Delete(ctx context.Context, bucket, key string) error {
	args := m.Called(ctx, bucket, key)
	return args.Error(0)
}

func (m *mockStorageBackend) Exists(ctx context.Context, bucket, key string) (bool, error) {
	args := m.Called(ctx, bucket, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockStorageBackend) List(ctx context.Context, bucket string) ([]string, error) {
	args := m.Called(ctx, bucket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockThumbnailer struct {
	mock.Mock
}

func (m *mockThumbnailer) Generate(data []byte) (*imaging.Thumbnail, error) {
	args := m.Called(data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*imaging.Thumbnail), args.Error(1)
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl, maxRetries, retryDelay)
	return args.Bool(0), args.Error(1)
}

func (m *mockLocker) Release(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockLocker) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockLocker) IsHeld(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// =============================================================================
// Helpers
// =============================================================================

func newTestImageService() (*ImageService, *mockImageRepository, *mockStorageBackend, *mockThumbnailer, *mockLocker) {
	imageRepo := &mockImageRepository{}
	backend := &mockStorageBackend{}
	thumbnailer := &mockThumbnailer{}
	locker := &mockLocker{}

	svc := NewImageService(
		imageRepo,
		backend,
		thumbnailer,
		storage.NewURLBuilder("http://cdn.test"),
		locker,
		nil,
		"images",
		"thumbnails",
		zerolog.Nop(),
	)
	return svc, imageRepo, backend, thumbnailer, locker
}

func testThumbnail() *imaging.Thumbnail {
	return &imaging.Thumbnail{
		Data:        []byte("thumb-bytes"),
		ContentType: "image/jpeg",
		Width:       100,
		Height:      75,
	}
}

func testImage(id string) *domain.Image {
	img := domain.NewImage(
		"sunset",
		"a sunset",
		"abc.jpg",
		"http://cdn.test/thumbnails/thumb_abc.jpg",
		"http://cdn.test/images/abc.jpg",
		"image/jpeg",
		1024,
		[]string{"nature"},
		false,
	)
	img.ID = id
	return img
}

// =============================================================================
// CreateImage
// =============================================================================

func TestImageService_CreateImage(t *testing.T) {
	tests := []struct {
		name    string
		input   CreateImageInput
		setup   func(*mockImageRepository, *mockStorageBackend, *mockThumbnailer)
		wantErr error
		check   func(*testing.T, *domain.Image)
	}{
		{
			name: "success",
			input: CreateImageInput{
				Name:        "sunset",
				Description: "a sunset",
				Tags:        []string{"nature", "sky"},
				Filename:    "sunset.jpg",
				ContentType: "image/jpeg",
				Data:        []byte("original-bytes"),
			},
			setup: func(imageRepo *mockImageRepository, backend *mockStorageBackend, thumbnailer *mockThumbnailer) {
				thumbnailer.On("Generate", []byte("original-bytes")).Return(testThumbnail(), nil)
				backend.On("Put", mock.Anything, "images", mock.Anything, mock.Anything, int64(14), "image/jpeg").Return(nil)
				backend.On("Put", mock.Anything, "thumbnails", mock.Anything, mock.Anything, int64(11), "image/jpeg").Return(nil)
				imageRepo.On("Insert", mock.Anything, mock.AnythingOfType("*domain.Image")).Return("img-1", nil)
			},
			wantErr: nil,
			check: func(t *testing.T, img *domain.Image) {
				require.Equal(t, "sunset", img.Name)
				require.Equal(t, []string{"nature", "sky"}, img.Tags)
				require.NotEmpty(t, img.Filename)
				require.Equal(t, "http://cdn.test/images/"+img.Filename, img.HDURL)
				require.Equal(t, "http://cdn.test/thumbnails/thumb_"+img.Filename, img.ThumbnailURL)
				require.Equal(t, int64(14), img.FileSize)
				require.Zero(t, img.Downloads)
			},
		},
		{
			name: "missing name",
			input: CreateImageInput{
				Data: []byte("bytes"),
			},
			setup:   func(*mockImageRepository, *mockStorageBackend, *mockThumbnailer) {},
			wantErr: domain.ErrImageNameRequired,
		},
		{
			name: "empty file",
			input: CreateImageInput{
				Name: "sunset",
			},
			setup:   func(*mockImageRepository, *mockStorageBackend, *mockThumbnailer) {},
			wantErr: domain.ErrFileEmpty,
		},
		{
			name: "undecodable payload",
			input: CreateImageInput{
				Name: "sunset",
				Data: []byte("not an image"),
			},
			setup: func(imageRepo *mockImageRepository, backend *mockStorageBackend, thumbnailer *mockThumbnailer) {
				thumbnailer.On("Generate", []byte("not an image")).Return(nil, domain.ErrUndecodableImage)
			},
			wantErr: ErrThumbnailFailure,
		},
		{
			name: "original store failure stores nothing",
			input: CreateImageInput{
				Name: "sunset",
				Data: []byte("original-bytes"),
			},
			setup: func(imageRepo *mockImageRepository, backend *mockStorageBackend, thumbnailer *mockThumbnailer) {
				thumbnailer.On("Generate", mock.Anything).Return(testThumbnail(), nil)
				backend.On("Put", mock.Anything, "images", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(errors.New("disk full"))
			},
			wantErr: ErrStorageFailure,
		},
		{
			name: "thumbnail store failure deletes original",
			input: CreateImageInput{
				Name: "sunset",
				Data: []byte("original-bytes"),
			},
			setup: func(imageRepo *mockImageRepository, backend *mockStorageBackend, thumbnailer *mockThumbnailer) {
				thumbnailer.On("Generate", mock.Anything).Return(testThumbnail(), nil)
				backend.On("Put", mock.Anything, "images", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
				backend.On("Put", mock.Anything, "thumbnails", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(errors.New("disk full"))
				backend.On("Delete", mock.Anything, "images", mock.Anything).Return(nil)
			},
			wantErr: ErrStorageFailure,
		},
		{
			name: "insert failure deletes both blobs",
			input: CreateImageInput{
				Name: "sunset",
				Data: []byte("original-bytes"),
			},
			setup: func(imageRepo *mockImageRepository, backend *mockStorageBackend, thumbnailer *mockThumbnailer) {
				thumbnailer.On("Generate", mock.Anything).Return(testThumbnail(), nil)
				backend.On("Put", mock.Anything, "images", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
				backend.On("Put", mock.Anything, "thumbnails", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
				imageRepo.On("Insert", mock.Anything, mock.Anything).Return("", errors.New("connection refused"))
				backend.On("Delete", mock.Anything, "images", mock.Anything).Return(nil)
				backend.On("Delete", mock.Anything, "thumbnails", mock.Anything).Return(nil)
			},
			wantErr: ErrMetadataFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, imageRepo, backend, thumbnailer, locker := newTestImageService()
			tt.setup(imageRepo, backend, thumbnailer)

			img, err := svc.CreateImage(context.Background(), tt.input)

			if tt.wantErr != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.NotNil(t, img)
				if tt.check != nil {
					tt.check(t, img)
				}
			}

			mock.AssertExpectationsForObjects(t, imageRepo, backend, thumbnailer, locker)
		})
	}
}

func TestImageService_CreateImage_ThumbnailKeyMatchesOriginal(t *testing.T) {
	svc, imageRepo, backend, thumbnailer, _ := newTestImageService()

	var originalKey, thumbKey string
	thumbnailer.On("Generate", mock.Anything).Return(testThumbnail(), nil)
	backend.On("Put", mock.Anything, "images", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { originalKey = args.String(2) }).Return(nil)
	backend.On("Put", mock.Anything, "thumbnails", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { thumbKey = args.String(2) }).Return(nil)
	imageRepo.On("Insert", mock.Anything, mock.Anything).Return("img-1", nil)

	_, err := svc.CreateImage(context.Background(), CreateImageInput{
		Name:     "sunset",
		Filename: "sunset.png",
		Data:     []byte("original-bytes"),
	})
	require.NoError(t, err)

	require.NotEmpty(t, originalKey)
	require.Equal(t, "thumb_"+originalKey, thumbKey)
	require.Equal(t, ".png", originalKey[len(originalKey)-4:])
}

// =============================================================================
// GetImage / ListImages
// =============================================================================

func TestImageService_GetImage(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		setup   func(*mockImageRepository)
		wantErr error
	}{
		{
			name: "success",
			id:   "img-1",
			setup: func(imageRepo *mockImageRepository) {
				imageRepo.On("GetByID", mock.Anything, "img-1").Return(testImage("img-1"), nil)
			},
			wantErr: nil,
		},
		{
			name: "not found",
			id:   "missing",
			setup: func(imageRepo *mockImageRepository) {
				imageRepo.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrImageNotFound)
			},
			wantErr: domain.ErrImageNotFound,
		},
		{
			name: "store failure",
			id:   "img-1",
			setup: func(imageRepo *mockImageRepository) {
				imageRepo.On("GetByID", mock.Anything, "img-1").Return(nil, errors.New("connection refused"))
			},
			wantErr: ErrMetadataFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, imageRepo, _, _, _ := newTestImageService()
			tt.setup(imageRepo)

			img, err := svc.GetImage(context.Background(), tt.id)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.id, img.ID)
			}

			imageRepo.AssertExpectations(t)
		})
	}
}

func TestImageService_ListImages(t *testing.T) {
	featured := true

	tests := []struct {
		name      string
		input     ListImagesInput
		setup     func(*mockImageRepository)
		wantErr   error
		wantTotal int64
	}{
		{
			name:  "default limit applied",
			input: ListImagesInput{},
			setup: func(imageRepo *mockImageRepository) {
				imageRepo.On("List", mock.Anything, repository.ImageFilter{}, repository.ListOptions{Skip: 0, Limit: 20}).
					Return([]*domain.Image{testImage("img-1")}, nil)
				imageRepo.On("Count", mock.Anything, repository.ImageFilter{}).Return(int64(1), nil)
			},
			wantTotal: 1,
		},
		{
			name:  "filter forwarded to list and count",
			input: ListImagesInput{Tags: []string{"nature", "sky"}, Featured: &featured, Skip: 10, Limit: 5},
			setup: func(imageRepo *mockImageRepository) {
				filter := repository.ImageFilter{Tags: []string{"nature", "sky"}, Featured: &featured}
				imageRepo.On("List", mock.Anything, filter, repository.ListOptions{Skip: 10, Limit: 5}).
					Return([]*domain.Image{}, nil)
				imageRepo.On("Count", mock.Anything, filter).Return(int64(42), nil)
			},
			wantTotal: 42,
		},
		{
			name:    "negative skip rejected",
			input:   ListImagesInput{Skip: -1},
			setup:   func(*mockImageRepository) {},
			wantErr: domain.ErrInvalidPagination,
		},
		{
			name:    "limit above cap rejected",
			input:   ListImagesInput{Limit: 101},
			setup:   func(*mockImageRepository) {},
			wantErr: domain.ErrInvalidPagination,
		},
		{
			name:    "negative limit rejected",
			input:   ListImagesInput{Limit: -5},
			setup:   func(*mockImageRepository) {},
			wantErr: domain.ErrInvalidPagination,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, imageRepo, _, _, _ := newTestImageService()
			tt.setup(imageRepo)

			out, err := svc.ListImages(context.Background(), tt.input)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.wantTotal, out.Total)
			}

			imageRepo.AssertExpectations(t)
		})
	}
}

// =============================================================================
// UpdateImage
// =============================================================================

func TestImageService_UpdateImage(t *testing.T) {
	name := "dawn"
	patch := domain.ImagePatch{Name: &name}

	tests := []struct {
		name    string
		patch   domain.ImagePatch
		setup   func(*mockImageRepository, *mockLocker)
		wantErr error
	}{
		{
			name:  "success",
			patch: patch,
			setup: func(imageRepo *mockImageRepository, locker *mockLocker) {
				locker.On("AcquireWithRetry", mock.Anything, "lock:image:img-1", writeLockTTL, lockRetries, lockRetryDelay).
					Return(true, nil)
				imageRepo.On("UpdateFields", mock.Anything, "img-1", patch).Return(nil)
				imageRepo.On("GetByID", mock.Anything, "img-1").Return(testImage("img-1"), nil)
				locker.On("Release", mock.Anything, "lock:image:img-1").Return(true, nil)
			},
		},
		{
			name:    "empty patch rejected",
			patch:   domain.ImagePatch{},
			setup:   func(*mockImageRepository, *mockLocker) {},
			wantErr: domain.ErrEmptyPatch,
		},
		{
			name:  "not found",
			patch: patch,
			setup: func(imageRepo *mockImageRepository, locker *mockLocker) {
				locker.On("AcquireWithRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(true, nil)
				imageRepo.On("UpdateFields", mock.Anything, "img-1", patch).Return(domain.ErrImageNotFound)
				locker.On("Release", mock.Anything, mock.Anything).Return(true, nil)
			},
			wantErr: domain.ErrImageNotFound,
		},
		{
			name:  "lock held elsewhere",
			patch: patch,
			setup: func(imageRepo *mockImageRepository, locker *mockLocker) {
				locker.On("AcquireWithRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(false, nil)
			},
			wantErr: ErrLockTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, imageRepo, _, _, locker := newTestImageService()
			tt.setup(imageRepo, locker)

			img, err := svc.UpdateImage(context.Background(), "img-1", tt.patch)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.NotNil(t, img)
			}

			mock.AssertExpectationsForObjects(t, imageRepo, locker)
		})
	}
}

// =============================================================================
// DeleteImage
// =============================================================================

func TestImageService_DeleteImage(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*mockImageRepository, *mockStorageBackend, *mockLocker)
		wantErr error
	}{
		{
			name: "success",
			setup: func(imageRepo *mockImageRepository, backend *mockStorageBackend, locker *mockLocker) {
				locker.On("AcquireWithRetry", mock.Anything, "lock:image:img-1", writeLockTTL, lockRetries, lockRetryDelay).
					Return(true, nil)
				imageRepo.On("GetByID", mock.Anything, "img-1").Return(testImage("img-1"), nil)
				backend.On("Delete", mock.Anything, "images", "abc.jpg").Return(nil)
				backend.On("Delete", mock.Anything, "thumbnails", "thumb_abc.jpg").Return(nil)
				imageRepo.On("Delete", mock.Anything, "img-1").Return(nil)
				locker.On("Release", mock.Anything, "lock:image:img-1").Return(true, nil)
			},
		},
		{
			name: "not found",
			setup: func(imageRepo *mockImageRepository, backend *mockStorageBackend, locker *mockLocker) {
				locker.On("AcquireWithRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(true, nil)
				imageRepo.On("GetByID", mock.Anything, "img-1").Return(nil, domain.ErrImageNotFound)
				locker.On("Release", mock.Anything, mock.Anything).Return(true, nil)
			},
			wantErr: domain.ErrImageNotFound,
		},
		{
			name: "blob delete failure keeps the record",
			setup: func(imageRepo *mockImageRepository, backend *mockStorageBackend, locker *mockLocker) {
				locker.On("AcquireWithRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(true, nil)
				imageRepo.On("GetByID", mock.Anything, "img-1").Return(testImage("img-1"), nil)
				backend.On("Delete", mock.Anything, "images", "abc.jpg").Return(errors.New("timeout"))
				locker.On("Release", mock.Anything, mock.Anything).Return(true, nil)
			},
			wantErr: ErrStorageFailure,
		},
		{
			name: "lock held elsewhere",
			setup: func(imageRepo *mockImageRepository, backend *mockStorageBackend, locker *mockLocker) {
				locker.On("AcquireWithRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(false, nil)
			},
			wantErr: ErrLockTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, imageRepo, backend, _, locker := newTestImageService()
			tt.setup(imageRepo, backend, locker)

			err := svc.DeleteImage(context.Background(), "img-1")

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			mock.AssertExpectationsForObjects(t, imageRepo, backend, locker)
		})
	}
}
