package handler

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/imagevault/internal/domain"
	"github.com/prn-tf/imagevault/internal/service"
)

// DownloadHandler handles download accounting requests.
type DownloadHandler struct {
	downloadService *service.DownloadService
	logger          zerolog.Logger
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(downloadService *service.DownloadService, logger zerolog.Logger) *DownloadHandler {
	return &DownloadHandler{
		downloadService: downloadService,
		logger:          logger.With().Str("handler", "download").Logger(),
	}
}

// RegisterRoutes registers download routes.
func (h *DownloadHandler) RegisterRoutes(r chi.Router) {
	r.Route("/downloads", func(r chi.Router) {
		r.Get("/total", h.handleTotal)
		r.Post("/{imageID}", h.handleRecord)
		r.Get("/{imageID}/count", h.handleCount)
	})
}

// downloadResponse is returned after recording a download.
type downloadResponse struct {
	DownloadURL string `json:"download_url"`
}

// totalResponse carries an aggregate download count.
type totalResponse struct {
	TotalDownloads int64 `json:"total_downloads"`
}

// handleRecord records one download and returns the original's URL.
func (h *DownloadHandler) handleRecord(w http.ResponseWriter, r *http.Request) {
	client := domain.ClientInfo{
		IPAddress:   clientIP(r),
		UserAgent:   r.UserAgent(),
		Referer:     r.Referer(),
		CountryCode: r.Header.Get("CF-IPCountry"),
	}

	out, err := h.downloadService.RecordDownload(r.Context(), chi.URLParam(r, "imageID"), client)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, downloadResponse{DownloadURL: out.DownloadURL})
}

// clientIP strips the port from the remote address. RealIP middleware
// may have already replaced it with a bare forwarded address.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// handleTotal returns the counter total across all images.
func (h *DownloadHandler) handleTotal(w http.ResponseWriter, r *http.Request) {
	total, err := h.downloadService.TotalDownloads(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, totalResponse{TotalDownloads: total})
}

// handleCount returns the event count for one image.
func (h *DownloadHandler) handleCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.downloadService.ImageDownloads(r.Context(), chi.URLParam(r, "imageID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, totalResponse{TotalDownloads: count})
}
