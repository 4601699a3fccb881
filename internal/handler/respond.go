// Package handler provides HTTP handlers for the Imagevault API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/imagevault/internal/domain"
	"github.com/prn-tf/imagevault/internal/service"
)

// errorResponse is the error body shape: {"detail": "..."}.
type errorResponse struct {
	Detail string `json:"detail"`
}

// respondJSON writes v as a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// respondError maps err to a status code and writes the error body.
// Internal failures are logged with detail but reported generically.
func respondError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status, detail := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("request failed")
		detail = "internal server error"
	}
	respondJSON(w, status, errorResponse{Detail: detail})
}

// statusFor classifies an error into an HTTP status.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrImageNotFound):
		return http.StatusNotFound, "image not found"
	case errors.Is(err, domain.ErrImageNameRequired),
		errors.Is(err, domain.ErrFileEmpty),
		errors.Is(err, domain.ErrEmptyPatch),
		errors.Is(err, domain.ErrInvalidPagination),
		errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrThumbnailFailure):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, service.ErrLockTimeout):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
