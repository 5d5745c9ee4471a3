package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/photo-triage/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	albumsHandler := handlers.NewAlbumsHandler(s.repo, s.cleanup, s.config.Engine.Batch.CleanupSize)
	recommendHandler := handlers.NewRecommendHandler(s.repo, s.recommend, s.config.Engine.Batch.RecommendSize)
	statsHandler := handlers.NewStatsHandler(s.repo, s.recommend.Photos(), s.recommend.Groups())
	scanHandler := handlers.NewScanHandler(s.scanner, s.config.Library.Roots, s.jobManager)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Albums and the structured cleanup sweep
		r.Get("/albums", albumsHandler.List)
		r.Get("/albums/{id}", albumsHandler.Get)
		r.Get("/albums/{id}/progress", albumsHandler.Progress)
		r.Post("/albums/{id}/analyze", albumsHandler.Analyze)
		r.Post("/albums/{id}/batch", albumsHandler.Batch)
		r.Post("/albums/{id}/processed", albumsHandler.Processed)
		r.Delete("/albums/{id}/state", albumsHandler.Reset)

		// Free-form recommendations
		r.Post("/recommendations", recommendHandler.Recommendations)
		r.Delete("/cooldowns", recommendHandler.RemoveCooldowns)

		// Stats
		r.Get("/stats", statsHandler.Get)

		// Library scan (long-running job)
		r.Post("/scan", scanHandler.Start)
		r.Get("/scan/{jobId}", scanHandler.Status)
		r.Get("/scan/{jobId}/events", scanHandler.Events)
		r.Delete("/scan/{jobId}", scanHandler.Cancel)
	})
}
