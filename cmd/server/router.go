package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/husaynirfan1/lukisan-api/internal/api"
	apiMiddleware "github.com/husaynirfan1/lukisan-api/internal/api/middleware"
)

// newRouter creates and configures the application router with all
// routes and middleware.
func newRouter(service api.GenerationService, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.Trace)

	generationHandler := api.NewGenerationHandler(service, logger)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.RequireOwner)

			r.Post("/generations", generationHandler.SubmitGeneration)
			r.Get("/generations", generationHandler.ListGenerations)
			r.Get("/generations/{id}", generationHandler.GetGeneration)
			r.Post("/generations/{id}/cancel", generationHandler.CancelGeneration)
			r.Post("/generations/{id}/retry", generationHandler.RetryGeneration)
			r.Post("/generations/{id}/recheck", generationHandler.RecheckGeneration)
			r.Get("/generations/{id}/events", generationHandler.StreamGenerationEvents)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
