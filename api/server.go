/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack and route definitions.
  This is the wiring layer connecting URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontends

ROUTES:
  POST /api/leaves                   submit a request
  GET  /api/leaves                   list (scoped by viewer)
  GET  /api/leaves/pending           approver queue
  GET  /api/leaves/{id}              single request
  PUT  /api/leaves/{id}/decision     approve / reject
  PUT  /api/leaves/{id}/cancel       cancel
  GET  /api/employees/{id}/balance   balance display

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", headerActorID, headerActorRole},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/leaves", func(r chi.Router) {
			r.Post("/", h.SubmitRequest)
			r.Get("/", h.ListRequests)
			r.Get("/pending", h.ListPending)
			r.Get("/{id}", h.GetRequest)
			r.Put("/{id}/decision", h.DecideRequest)
			r.Put("/{id}/cancel", h.CancelRequest)
		})

		r.Route("/employees", func(r chi.Router) {
			r.Get("/{id}/balance", h.GetBalance)
		})
	})

	return r
}
