package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ceramiquejlepage/contact-api/internal/pkg/httputil"
)

// SetupRoutes configures the router: middleware, CORS for the public
// form, the contact endpoint, and the health check.
func SetupRoutes(h *ContactHandlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Anything but POST/OPTIONS on a known route gets a JSON 405.
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httputil.Fail(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httputil.Fail(w, http.StatusNotFound, "Not found")
	})

	r.Get("/health", handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/contact", h.HandleSubmit)
		// Plain OPTIONS (non-preflight) also answers 200 with no body;
		// preflight is terminated by the cors middleware above.
		r.Options("/contact", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	return r
}

// handleHealth reports liveness.
//
//	GET /health
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, httputil.Response{Success: true, Message: "ok"})
}
