package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes(status *handlers.StatusHandler) {
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)
		r.Get("/stats", status.Stats)
		r.Get("/identities", status.Identities)
		r.Get("/attendance", status.Attendance)
		r.Post("/cooldown/reset", status.ResetCooldown)
	})
}
