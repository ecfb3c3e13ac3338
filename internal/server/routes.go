package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Tyrowin/livechat/internal/metrics"
)

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	if s.cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.httpMetrics.Middleware)

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	r.Get("/health", s.handleHealth)
	r.Get("/health/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(s.registry))
	r.HandleFunc("/ws", s.handleWebSocket)
	r.Get("/test", handleTestPage)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.With(s.requireAuth).Post("/logout", s.handleLogout)
		})

		r.Route("/messages", func(r chi.Router) {
			r.Get("/", s.handleListMessages)
			r.Get("/{id}", s.handleGetMessage)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/", s.handleCreateMessage)
				r.Put("/{id}", s.handleUpdateMessage)
				r.Delete("/{id}", s.handleDeleteMessage)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleListUsers)
			r.Get("/{id}", s.handleGetUser)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Put("/{id}", s.handleUpdateUser)
				r.Delete("/{id}", s.handleDeleteUser)
			})
		})
	})

	return r
}
