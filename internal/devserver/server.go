package devserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mlaitechio/vagais-go/internal/logging"
)

// Server bundles the devserver's config, store, and router.
type Server struct {
	cfg   *Config
	store *Store
	log   logging.Logger
}

func NewServer(cfg *Config, store *Store, log logging.Logger) *Server {
	return &Server{cfg: cfg, store: store, log: log}
}

// Router builds the full API surface under /api/v1.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Post("/register", s.handleRegister)
			r.Post("/refresh", s.handleRefresh)
			r.With(s.requireAuth).Post("/logout", s.handleLogout)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/users/profile", s.handleProfile)
			r.Get("/marketplace/agents", s.handleListAgents)
			r.Get("/marketplace/agents/{agentID}", s.handleGetAgent)
			r.Get("/ws/chat/{agentID}", s.handleChat)
		})
	})

	return r
}

// envelope is the uniform response wrapper: {"success":true,"data":...} on
// success, {"success":false,"error":"..."} on failure.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		s.log.Error(context.Background(), "writing response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: false, Error: msg}); err != nil {
		s.log.Error(context.Background(), "writing response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}
