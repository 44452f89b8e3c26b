package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/seriesgrab/internal/api/handler"
	mw "github.com/iconidentify/seriesgrab/internal/api/middleware"
)

// Handlers groups the route handlers.
type Handlers struct {
	Health        *handler.HealthHandler
	Downloads     *handler.DownloadHandler
	Notifications *handler.NotificationHandler
	Metrics       http.Handler // optional
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(h Handlers, apiKey string, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(mw.CORS)

	// Probes and metrics (no auth)
	r.Get("/health", h.Health.Live)
	r.Get("/ready", h.Health.Ready)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))

		// The event stream is long-lived and must not be cut by the timeout.
		r.Get("/notifications/stream", h.Notifications.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(time.Minute))

			r.Get("/stats", h.Health.Stats)

			r.Post("/downloads", h.Downloads.Submit)
			r.Get("/downloads", h.Downloads.List)
			r.Get("/downloads/{gid}", h.Downloads.Get)
			r.Post("/downloads/{gid}/pause", h.Downloads.Pause)
			r.Post("/downloads/{gid}/unpause", h.Downloads.Unpause)
			r.Delete("/downloads/{gid}", h.Downloads.Remove)
			r.Put("/concurrency", h.Downloads.SetConcurrency)

			r.Get("/notifications", h.Notifications.List)
			r.Get("/notifications/stats", h.Notifications.Stats)
			r.Post("/notifications/{id}/action", h.Notifications.Action)
		})
	})

	return r
}
