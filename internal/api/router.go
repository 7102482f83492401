package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewRouter(handler *Handler, health *HealthHandler, maxConcurrent int, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware (applied to all routes)
	r.Use(RecoveryMiddleware(logger))
	r.Use(CORSMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	// Probes and scrapes stay outside the limiter so they are never
	// rejected under load.
	r.Get("/healthz", health.Liveness)
	r.Get("/readyz", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		rl := NewRateLimiter(maxConcurrent, logger)
		r.Use(rl.Middleware)

		r.Route("/api/v1/assistant", func(r chi.Router) {
			r.Use(ActorMiddleware)
			r.Post("/query", handler.Query)
			r.Get("/suggestions", handler.ListSuggestions)
			r.Post("/suggestions/{id}/acted", handler.MarkActed)
			r.Get("/analytics/intents", handler.IntentBreakdown)
		})
	})

	return r
}
