package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/imagevault/internal/repository"
)

// HealthHandler reports liveness and metadata store reachability.
type HealthHandler struct {
	db     repository.Database
	logger zerolog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db repository.Database, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		logger: logger.With().Str("handler", "health").Logger(),
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Handle serves the health endpoint.
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Database: "up"}
	status := http.StatusOK

	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("database ping failed")
		resp.Status = "degraded"
		resp.Database = "down"
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, resp)
}
