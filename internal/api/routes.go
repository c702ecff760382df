package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates the local API router. When the handler has no API key
// configured the protected routes are open; the API binds to loopback by
// default so that is the common single-user case.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Get("/healthz", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		if h.apiKey != "" {
			r.Use(AuthMiddleware(h.apiKey))
		}

		r.Get("/entries", h.ListEntries)
		r.Get("/entries/{date}", h.GetEntry)
		r.Put("/entries/{date}", h.PutEntry)
		r.Delete("/entries/{date}", h.DeleteEntry)
		r.Post("/sync", h.Sync)
		r.Get("/status", h.Status)
		r.Get("/export", h.Export)
		r.Post("/export/backup", h.Backup)
	})

	return r
}
