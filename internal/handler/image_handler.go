package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/imagevault/internal/domain"
	"github.com/prn-tf/imagevault/internal/service"
)

// ImageHandler handles image CRUD requests.
type ImageHandler struct {
	imageService  *service.ImageService
	maxUploadSize int64
	logger        zerolog.Logger
}

// NewImageHandler creates a new image handler.
func NewImageHandler(imageService *service.ImageService, maxUploadSize int64, logger zerolog.Logger) *ImageHandler {
	return &ImageHandler{
		imageService:  imageService,
		maxUploadSize: maxUploadSize,
		logger:        logger.With().Str("handler", "image").Logger(),
	}
}

// RegisterRoutes registers image routes.
func (h *ImageHandler) RegisterRoutes(r chi.Router) {
	r.Route("/images", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Patch("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
}

// listResponse is the list body shape.
type listResponse struct {
	Images []*domain.Image `json:"images"`
	Total  int64           `json:"total"`
}

// handleCreate ingests a multipart upload.
// Form fields: file (required), name (required), description, tags
// (comma-separated), is_featured.
func (h *ImageHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid multipart form"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Detail: "file field is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Detail: "failed to read uploaded file"})
		return
	}

	input := service.CreateImageInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Tags:        parseTags(r.FormValue("tags")),
		IsFeatured:  parseBool(r.FormValue("is_featured")),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}

	img, err := h.imageService.CreateImage(r.Context(), input)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, img)
}

// handleList returns one page of images with the filtered total.
// Query params: tags (comma-separated, conjunctive), featured, skip, limit.
func (h *ImageHandler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	input := service.ListImagesInput{
		Tags: parseTags(q.Get("tags")),
	}

	if v := q.Get("featured"); v != "" {
		featured := parseBool(v)
		input.Featured = &featured
	}

	var err error
	if input.Skip, err = parseIntParam(q.Get("skip"), 0); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Detail: "skip must be an integer"})
		return
	}
	if input.Limit, err = parseIntParam(q.Get("limit"), 0); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Detail: "limit must be an integer"})
		return
	}

	out, err := h.imageService.ListImages(r.Context(), input)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, listResponse{
		Images: out.Images,
		Total:  out.Total,
	})
}

// handleGet returns one image record.
func (h *ImageHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	img, err := h.imageService.GetImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, img)
}

// handleUpdate applies a partial metadata update.
func (h *ImageHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch domain.ImagePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid JSON body"})
		return
	}

	img, err := h.imageService.UpdateImage(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, img)
}

// handleDelete removes an image and its blobs.
func (h *ImageHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.imageService.DeleteImage(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseTags splits a comma-separated tag list, dropping empties.
func parseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func parseBool(raw string) bool {
	v, _ := strconv.ParseBool(raw)
	return v
}

func parseIntParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
