package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/urbanestate/listing-service/internal/platform/logger"
	"github.com/urbanestate/listing-service/internal/platform/metrics"
)

// RouterConfig holds the optional parts of the router.
type RouterConfig struct {
	CORSAllowedOrigin string
	// Media serves stored files under /uploads when set.
	Media http.Handler
	// Ready is checked by /healthz when set.
	Ready func(ctx context.Context) error
}

// NewRouter wires every listing route onto a chi mux.
func NewRouter(h *ListingHandler, cfg RouterConfig, m *metrics.MetricsManager, log *logger.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(Tracing())
	r.Use(RequestLogger(log))
	r.Use(Metrics(m))
	r.Use(Recoverer(log))
	r.Use(CORS(cfg.CORSAllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Message: "method not allowed"})
	})

	r.Get("/healthz", healthz(cfg.Ready, log))

	r.Route("/listings", func(r chi.Router) {
		r.Get("/", h.HandleListListings)
		r.Post("/", h.HandleCreateListing)
		r.Put("/{id}", h.HandleUpdateListing)
	})
	r.Get("/filtered_listings", h.HandleFilteredListings)
	r.Get("/ad/{id}", h.HandleGetListing)
	r.Delete("/ad/delete/{id}", h.HandleDeleteListing)
	r.Get("/images/{id}", h.HandleGetImages)
	r.Get("/my-listings", h.HandleMyListings)
	r.Get("/my-listings/{id}", h.HandleMyListing)

	if cfg.Media != nil {
		r.Get("/uploads/{name}", cfg.Media.ServeHTTP)
	}
	return r
}

func healthz(ready func(ctx context.Context) error, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				log.Warn("readiness check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
