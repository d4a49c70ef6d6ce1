package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	// Conversation
	r.Post("/chat", s.handleChat)

	// Session routes
	r.Route("/session/{sessionID}", func(r chi.Router) {
		r.Get("/history", s.handleSessionHistory)
		r.Delete("/", s.handleSessionClose)
	})

	// Event streaming (SSE)
	r.Get("/events", s.handleEvents)

	// Operational
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
}
