package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/imagevault/internal/domain"
	"github.com/prn-tf/imagevault/internal/metrics"
	"github.com/prn-tf/imagevault/internal/repository"
)

// DownloadService handles download accounting: the per-image counter and
// the append-only event log. The two are written independently; the
// counter is the authoritative tally and the event log is best-effort
// detail, so they can diverge when an event insert fails.
type DownloadService struct {
	imageRepo    repository.ImageRepository
	downloadRepo repository.DownloadRepository
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// NewDownloadService creates a new DownloadService.
func NewDownloadService(
	imageRepo repository.ImageRepository,
	downloadRepo repository.DownloadRepository,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *DownloadService {
	return &DownloadService{
		imageRepo:    imageRepo,
		downloadRepo: downloadRepo,
		metrics:      m,
		logger:       logger.With().Str("service", "download").Logger(),
	}
}

// RecordDownloadOutput contains the result of recording a download.
type RecordDownloadOutput struct {
	// DownloadURL is the public URL of the original blob.
	DownloadURL string
}

// RecordDownload verifies the image exists, bumps its counter and appends
// a download event. A missing image records nothing. An event insert
// failure after the counter bump is logged and swallowed: the counter
// already moved and must not be rolled back.
func (s *DownloadService) RecordDownload(ctx context.Context, imageID string, client domain.ClientInfo) (*RecordDownloadOutput, error) {
	img, err := s.imageRepo.GetByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			return nil, domain.ErrImageNotFound
		}
		s.logger.Error().Err(err).Str("image_id", imageID).Msg("failed to get image")
		return nil, fmt.Errorf("%w: %v", ErrMetadataFailure, err)
	}

	if err := s.imageRepo.IncrementDownloads(ctx, imageID, 1); err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			// Deleted between the existence check and the increment.
			return nil, domain.ErrImageNotFound
		}
		s.logger.Error().Err(err).Str("image_id", imageID).Msg("failed to increment download counter")
		return nil, fmt.Errorf("%w: %v", ErrMetadataFailure, err)
	}

	dl := domain.NewDownload(imageID, client)
	if err := s.downloadRepo.Insert(ctx, dl); err != nil {
		s.logger.Warn().Err(err).Str("image_id", imageID).Msg("failed to record download event")
	}

	if s.metrics != nil {
		s.metrics.ObserveDownload()
	}

	s.logger.Debug().
		Str("image_id", imageID).
		Str("ip", dl.IPAddress).
		Msg("download recorded")

	return &RecordDownloadOutput{DownloadURL: img.HDURL}, nil
}

// TotalDownloads returns the counter total aggregated across all images.
func (s *DownloadService) TotalDownloads(ctx context.Context) (int64, error) {
	total, err := s.imageRepo.SumDownloads(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to sum downloads")
		return 0, fmt.Errorf("%w: %v", ErrMetadataFailure, err)
	}
	return total, nil
}

// ImageDownloads returns the stored counter for one image. The counter,
// not the event log, is the tally: the two can diverge when an event
// insert was swallowed. The lookup is lenient: an unknown image reports
// zero downloads.
func (s *DownloadService) ImageDownloads(ctx context.Context, imageID string) (int64, error) {
	img, err := s.imageRepo.GetByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			return 0, nil
		}
		s.logger.Error().Err(err).Str("image_id", imageID).Msg("failed to get image")
		return 0, fmt.Errorf("%w: %v", ErrMetadataFailure, err)
	}
	return img.Downloads, nil
}
