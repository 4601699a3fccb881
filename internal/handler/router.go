package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prn-tf/imagevault/internal/metrics"
)

// RouterConfig contains the dependencies the router wires together.
type RouterConfig struct {
	ImageHandler    *ImageHandler
	DownloadHandler *DownloadHandler
	HealthHandler   *HealthHandler
	APIPrefix       string
	CORSOrigins     []string
	Metrics         *metrics.Metrics
	Logger          zerolog.Logger
}

// NewRouter assembles the HTTP routing tree. API routes live under the
// configured prefix; health sits at the root for load balancers.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(recoverer(cfg.Logger))
	r.Use(CORS(cfg.CORSOrigins))

	r.Get("/health", cfg.HealthHandler.Handle)
	r.Get("/", handleRoot)

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	r.Route(prefix, func(api chi.Router) {
		api.Use(Metrics(cfg.Metrics))
		cfg.ImageHandler.RegisterRoutes(api)
		cfg.DownloadHandler.RegisterRoutes(api)
	})

	return r
}

// handleRoot serves a minimal service descriptor.
func handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"service": "imagevault",
		"status":  "running",
	})
}

// recoverer converts panics into generic 500 responses.
func recoverer(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error().
						Interface("panic", rec).
						Str("path", r.URL.Path).
						Msg("panic recovered")
					respondJSON(w, http.StatusInternalServerError, errorResponse{Detail: "internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
