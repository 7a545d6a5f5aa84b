package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
	resp "github.com/vogiaan1904/ticketbottle-gate/pkg/response"
)

// NewRouter serves every path through the gate.
func NewRouter(h *Handler, l logger.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(logger.HTTPLogger(l, func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))

	r.Handle("/*", http.HandlerFunc(h.Gate))

	return r
}

// NewOpsRouter serves health and metrics on the internal listener. ready
// reports whether the default store is reachable.
func NewOpsRouter(gatherer prometheus.Gatherer, ready func(ctx context.Context) error) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp.JSON(w, http.StatusOK, map[string]any{
			"status":  "healthy",
			"service": "waitroom-gate",
		})
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if ready != nil {
			if err := ready(ctx); err != nil {
				resp.JSON(w, http.StatusServiceUnavailable, map[string]any{
					"status": "unavailable",
					"error":  err.Error(),
				})
				return
			}
		}
		resp.JSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}
