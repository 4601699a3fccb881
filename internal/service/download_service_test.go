package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/imagevault/internal/domain"
)

type mockDownloadRepository struct {
	mock.Mock
}

func (m *mockDownloadRepository) Insert(ctx context.Context, dl *domain.Download) error {
	args := m.Called(ctx, dl)
	return args.Error(0)
}

func newTestDownloadService() (*DownloadService, *mockImageRepository, *mockDownloadRepository) {
	imageRepo := &mockImageRepository{}
	downloadRepo := &mockDownloadRepository{}
	svc := NewDownloadService(imageRepo, downloadRepo, nil, zerolog.Nop())
	return svc, imageRepo, downloadRepo
}

func TestDownloadService_RecordDownload(t *testing.T) {
	client := domain.ClientInfo{
		IPAddress:   "203.0.113.9",
		UserAgent:   "curl/8.0",
		Referer:     "http://example.com/gallery",
		CountryCode: "DE",
	}

	tests := []struct {
		name    string
		setup   func(*mockImageRepository, *mockDownloadRepository)
		wantErr error
	}{
		{
			name: "success",
			setup: func(imageRepo *mockImageRepository, downloadRepo *mockDownloadRepository) {
				imageRepo.On("GetByID", mock.Anything, "img-1").Return(testImage("img-1"), nil)
				imageRepo.On("IncrementDownloads", mock.Anything, "img-1", int64(1)).Return(nil)
				downloadRepo.On("Insert", mock.Anything, mock.MatchedBy(func(dl *domain.Download) bool {
					return dl.ImageID == "img-1" && dl.IPAddress == "203.0.113.9" && dl.CountryCode == "DE"
				})).Return(nil)
			},
		},
		{
			name: "unknown image records nothing",
			setup: func(imageRepo *mockImageRepository, downloadRepo *mockDownloadRepository) {
				imageRepo.On("GetByID", mock.Anything, "img-1").Return(nil, domain.ErrImageNotFound)
			},
			wantErr: domain.ErrImageNotFound,
		},
		{
			name: "event insert failure still succeeds",
			setup: func(imageRepo *mockImageRepository, downloadRepo *mockDownloadRepository) {
				imageRepo.On("GetByID", mock.Anything, "img-1").Return(testImage("img-1"), nil)
				imageRepo.On("IncrementDownloads", mock.Anything, "img-1", int64(1)).Return(nil)
				downloadRepo.On("Insert", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
			},
		},
		{
			name: "increment failure",
			setup: func(imageRepo *mockImageRepository, downloadRepo *mockDownloadRepository) {
				imageRepo.On("GetByID", mock.Anything, "img-1").Return(testImage("img-1"), nil)
				imageRepo.On("IncrementDownloads", mock.Anything, "img-1", int64(1)).
					Return(errors.New("connection refused"))
			},
			wantErr: ErrMetadataFailure,
		},
		{
			name: "image deleted between lookup and increment",
			setup: func(imageRepo *mockImageRepository, downloadRepo *mockDownloadRepository) {
				imageRepo.On("GetByID", mock.Anything, "img-1").Return(testImage("img-1"), nil)
				imageRepo.On("IncrementDownloads", mock.Anything, "img-1", int64(1)).
					Return(domain.ErrImageNotFound)
			},
			wantErr: domain.ErrImageNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, imageRepo, downloadRepo := newTestDownloadService()
			tt.setup(imageRepo, downloadRepo)

			out, err := svc.RecordDownload(context.Background(), "img-1", client)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, "http://cdn.test/images/abc.jpg", out.DownloadURL)
			}

			mock.AssertExpectationsForObjects(t, imageRepo, downloadRepo)
		})
	}
}

func TestDownloadService_RecordDownload_DefaultsMissingClientInfo(t *testing.T) {
	svc, imageRepo, downloadRepo := newTestDownloadService()

	imageRepo.On("GetByID", mock.Anything, "img-1").Return(testImage("img-1"), nil)
	imageRepo.On("IncrementDownloads", mock.Anything, "img-1", int64(1)).Return(nil)
	downloadRepo.On("Insert", mock.Anything, mock.MatchedBy(func(dl *domain.Download) bool {
		return dl.IPAddress == "unknown" && dl.UserAgent == "unknown"
	})).Return(nil)

	_, err := svc.RecordDownload(context.Background(), "img-1", domain.ClientInfo{})
	require.NoError(t, err)

	mock.AssertExpectationsForObjects(t, imageRepo, downloadRepo)
}

func TestDownloadService_TotalDownloads(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*mockImageRepository)
		want    int64
		wantErr error
	}{
		{
			name: "success",
			setup: func(imageRepo *mockImageRepository) {
				imageRepo.On("SumDownloads", mock.Anything).Return(int64(1234), nil)
			},
			want: 1234,
		},
		{
			name: "no images sums to zero",
			setup: func(imageRepo *mockImageRepository) {
				imageRepo.On("SumDownloads", mock.Anything).Return(int64(0), nil)
			},
			want: 0,
		},
		{
			name: "store failure",
			setup: func(imageRepo *mockImageRepository) {
				imageRepo.On("SumDownloads", mock.Anything).Return(int64(0), errors.New("connection refused"))
			},
			wantErr: ErrMetadataFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, imageRepo, _ := newTestDownloadService()
			tt.setup(imageRepo)

			total, err := svc.TotalDownloads(context.Background())

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.want, total)
			}

			imageRepo.AssertExpectations(t)
		})
	}
}

func TestDownloadService_ImageDownloads(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*mockImageRepository)
		want    int64
		wantErr error
	}{
		{
			name: "returns the stored counter",
			setup: func(imageRepo *mockImageRepository) {
				img := testImage("img-1")
				img.Downloads = 5
				imageRepo.On("GetByID", mock.Anything, "img-1").Return(img, nil)
			},
			want: 5,
		},
		{
			name: "unknown image reports zero",
			setup: func(imageRepo *mockImageRepository) {
				imageRepo.On("GetByID", mock.Anything, "img-1").Return(nil, domain.ErrImageNotFound)
			},
			want: 0,
		},
		{
			name: "store failure",
			setup: func(imageRepo *mockImageRepository) {
				imageRepo.On("GetByID", mock.Anything, "img-1").Return(nil, errors.New("connection refused"))
			},
			wantErr: ErrMetadataFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, imageRepo, downloadRepo := newTestDownloadService()
			tt.setup(imageRepo)

			count, err := svc.ImageDownloads(context.Background(), "img-1")

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.want, count)
			}

			// The counter is the answer even when the event log disagrees;
			// the event store must not be consulted.
			mock.AssertExpectationsForObjects(t, imageRepo, downloadRepo)
		})
	}
}
