package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

// chatFrame is the envelope for every frame on the chat socket, both
// directions. Type selects which of the other fields are meaningful.
type chatFrame struct {
	Type      string    `json:"type"`
	AgentID   string    `json:"agent_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// handleChat serves one chat conversation. Each user message is answered
// with an ack, a typing indicator, and a canned response, in that order.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.store.AgentByID(chi.URLParam(r, "agentID"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	userID := userIDFrom(r.Context())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // dev-only server, any origin is fine
	})
	if err != nil {
		s.log.Warn(r.Context(), "websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	ctx := r.Context()
	s.log.Info(ctx, "chat connected", "agent_id", agent.ID, "user_id", userID)

	welcome := chatFrame{
		Type:      "welcome",
		AgentID:   agent.ID,
		Message:   fmt.Sprintf("You are now chatting with %s.", agent.Name),
		Timestamp: time.Now(),
	}
	if err := writeFrame(ctx, conn, welcome); err != nil {
		return
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			s.log.Info(ctx, "chat disconnected", "agent_id", agent.ID, "user_id", userID)
			return
		}

		var frame chatFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.log.Warn(ctx, "dropping malformed chat frame", "error", err)
			continue
		}
		if frame.Type != "message" || strings.TrimSpace(frame.Message) == "" {
			continue
		}

		reply := []chatFrame{
			{Type: "ack", Timestamp: time.Now()},
			{Type: "typing", AgentID: agent.ID},
			{
				Type:      "response",
				AgentID:   agent.ID,
				Message:   generateAgentResponse(agent.Name, frame.Message),
				Timestamp: time.Now(),
			},
		}
		for _, f := range reply {
			if err := writeFrame(ctx, conn, f); err != nil {
				return
			}
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, frame chatFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

// generateAgentResponse produces a deterministic canned reply, good enough
// to exercise the client's transcript and typing-indicator handling.
func generateAgentResponse(agentName, input string) string {
	input = strings.TrimSpace(input)
	switch {
	case strings.EqualFold(input, "hello"), strings.EqualFold(input, "hi"):
		return fmt.Sprintf("Hello! I'm %s. How can I help you today?", agentName)
	case strings.HasSuffix(input, "?"):
		return fmt.Sprintf("Good question. As %s I'd start by breaking it down: %q touches a few areas worth exploring.", agentName, input)
	default:
		return fmt.Sprintf("Understood: %q. Let me work on that and get back to you with details.", input)
	}
}
