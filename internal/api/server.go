package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ceramiquejlepage/contact-api/internal/config"
)

// Server wraps the HTTP server for the contact API.
type Server struct {
	handler http.Handler
	server  *http.Server
}

// NewServer builds the router around the given handlers.
func NewServer(cfg *config.Config, h *ContactHandlers) *Server {
	return &Server{
		handler: SetupRoutes(h, cfg.Server.AllowedOrigins),
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
		// Read timeout sized for multi-megabyte photo uploads from
		// slow mobile connections.
		ReadTimeout:       2 * time.Minute,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
