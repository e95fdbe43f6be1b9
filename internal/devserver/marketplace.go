package devserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mlaitechio/vagais-go/internal/client/models"
)

// paginatedAgents matches the backend's uniform pagination shape.
type paginatedAgents struct {
	Data       []models.Agent `json:"data"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page := atoiDefault(query.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	limit := atoiDefault(query.Get("limit"), 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	agents, total := s.store.Agents(query.Get("search"), query.Get("category"), page, limit)

	totalPages := int(total) / limit
	if int(total)%limit != 0 {
		totalPages++
	}

	s.writeData(w, http.StatusOK, paginatedAgents{
		Data:       agents,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.store.AgentByID(chi.URLParam(r, "agentID"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	s.writeData(w, http.StatusOK, agent)
}

func atoiDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
