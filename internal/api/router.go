package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/Fantasim/tokenscout/internal/api/handlers"
	"github.com/Fantasim/tokenscout/internal/api/middleware"
	"github.com/Fantasim/tokenscout/internal/config"
	"github.com/Fantasim/tokenscout/internal/detect"
	"github.com/Fantasim/tokenscout/internal/metrics"
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewRouter creates the chi router with all middleware and routes.
func NewRouter(cfg *config.Config, engine *detect.Engine, runs handlers.RunLister) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestLogging)
	r.Use(middleware.HostCheck)
	r.Use(middleware.CORS)

	slog.Info("router initialized",
		"middleware", []string{"requestLogging", "hostCheck", "cors"},
		"network", engine.Network(),
	)

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.HealthHandler(cfg, Version, engine))
		r.Get("/events", handlers.EventsSSE(engine.Hub(), engine))

		r.Post("/detect", handlers.StartDetection(engine))
		r.Get("/detect/status", handlers.GetDetectionStatus(engine, runs))

		r.Route("/tokens", func(r chi.Router) {
			r.Get("/", handlers.ListTokens(engine))
			r.Post("/import", handlers.ImportToken(engine))
			r.Post("/custom", handlers.AddCustomToken(engine))
			r.Delete("/{contract}", handlers.DeleteToken(engine))
			r.Post("/{contract}/hide", handlers.HideToken(engine))
		})
	})

	return r
}
