// Package chat manages one real-time conversation between the current user
// and a single agent over a WebSocket connection.
//
// A session moves Idle -> Connecting -> Open -> Closed and never leaves
// Closed: recovery after a disconnect means discarding the instance and
// creating a fresh one (the CLI layer owns that policy).
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/mlaitechio/vagais-go/internal/client/models"
	"github.com/mlaitechio/vagais-go/internal/logging"
)

// State is the connection state of a chat session.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

// Direction tells which side of the conversation a message belongs to.
type Direction string

const (
	DirectionUser  Direction = "user"
	DirectionAgent Direction = "agent"
)

// Message is one entry of the append-only transcript.
type Message struct {
	ID        string
	Direction Direction
	Body      string
	SentAt    time.Time
}

// EventKind discriminates session events.
type EventKind int

const (
	// EventMessage signals a message appended to the transcript.
	EventMessage EventKind = iota
	// EventTyping signals a change of the agent-typing indicator.
	EventTyping
	// EventState signals a connection state transition.
	EventState
)

// Event is delivered on the session's event channel so a UI can render the
// conversation as it evolves.
type Event struct {
	Kind    EventKind
	Message *Message
	Typing  bool
	State   State
}

var (
	ErrNotOpen      = errors.New("chat session is not open")
	ErrAlreadyUsed  = errors.New("chat session already opened")
	ErrMissingAgent = errors.New("agent id is required")
	ErrMissingUser  = errors.New("authenticated user is required")
)

// outboundMessage is the envelope for user messages.
type outboundMessage struct {
	Type      string    `json:"type"`
	AgentID   string    `json:"agent_id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// inboundEnvelope covers every frame type the backend may send; only the
// fields relevant to the dispatched type are populated.
type inboundEnvelope struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Session is one (user, agent) conversation. It is safe for concurrent use.
type Session struct {
	agentID     string
	user        *models.User
	wsURL       string
	accessToken string
	log         logging.Logger

	mu          sync.Mutex
	state       State
	conn        *websocket.Conn
	transcript  []Message
	agentTyping bool

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	cancel    context.CancelFunc
}

// NewSession prepares a session for one agent. It does not connect; call
// Open. The access token is presented during the WebSocket handshake.
func NewSession(agentID string, user *models.User, baseURL, accessToken string, log logging.Logger) (*Session, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, ErrMissingAgent
	}
	if user == nil || user.ID == "" {
		return nil, ErrMissingUser
	}

	wsURL, err := chatURL(baseURL, agentID)
	if err != nil {
		return nil, err
	}

	return &Session{
		agentID:     agentID,
		user:        user,
		wsURL:       wsURL,
		accessToken: accessToken,
		log:         log.With("agent_id", agentID, "user_id", user.ID),
		state:       StateIdle,
		events:      make(chan Event, 64),
		done:        make(chan struct{}),
	}, nil
}

// chatURL derives the WebSocket endpoint from the API base URL. The socket
// is secure exactly when the API itself is served over https.
func chatURL(baseURL, agentID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/ws/chat/" + url.PathEscape(agentID)
	return u.String(), nil
}

// Open dials the chat endpoint. A session can be opened at most once.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyUsed
	}
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	header := http.Header{}
	if s.accessToken != "" {
		header.Set("Authorization", "Bearer "+s.accessToken)
	}

	conn, resp, err := websocket.Dial(ctx, s.wsURL, &websocket.DialOptions{HTTPHeader: header})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		s.log.Warn(ctx, "chat dial failed", "error", err)
		s.closeInternal()
		return fmt.Errorf("open chat: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.conn = conn
	s.cancel = cancel
	s.setStateLocked(StateOpen)
	s.mu.Unlock()

	go s.readLoop(loopCtx, conn)
	return nil
}

// Send transmits one user message. Empty (after trimming) bodies are
// ignored; sending on a session that is not open is rejected, never queued.
// The message is appended to the transcript before transmission, without
// waiting for any server acknowledgement.
func (s *Session) Send(ctx context.Context, body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}

	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return ErrNotOpen
	}
	conn := s.conn
	msg := Message{
		ID:        uuid.NewString(),
		Direction: DirectionUser,
		Body:      body,
		SentAt:    time.Now(),
	}
	s.transcript = append(s.transcript, msg)
	s.emitLocked(Event{Kind: EventMessage, Message: &msg})
	s.mu.Unlock()

	frame, err := json.Marshal(outboundMessage{
		Type:      "message",
		AgentID:   s.agentID,
		UserID:    s.user.ID,
		Message:   body,
		Timestamp: msg.SentAt,
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, frame); err != nil {
		s.log.Warn(ctx, "chat write failed", "error", err)
		s.closeInternal()
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Close tears down the transport and moves the session to Closed. It is
// idempotent.
func (s *Session) Close() error {
	s.closeInternal()
	return nil
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AgentTyping reports whether the agent has signalled typing since the last
// response. The indicator is not time-boxed.
func (s *Session) AgentTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentTyping
}

// Transcript returns a copy of the ordered transcript.
func (s *Session) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Events delivers transcript, typing, and state events. The channel is
// buffered; events are dropped (and logged) if the consumer falls behind.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed once the session reaches Closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				s.log.Info(ctx, "chat closed by server")
			} else if ctx.Err() == nil {
				s.log.Warn(ctx, "chat read failed", "error", err)
			}
			s.closeInternal()
			return
		}
		s.handleFrame(ctx, data)
	}
}

// handleFrame dispatches one inbound frame. Malformed frames are logged and
// dropped; unrecognized types are ignored. Neither is fatal to the
// connection.
func (s *Session) handleFrame(ctx context.Context, data []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.log.Warn(ctx, "dropping malformed chat frame", "error", err)
		return
	}

	switch env.Type {
	case "response":
		s.mu.Lock()
		s.agentTyping = false
		msg := Message{
			ID:        uuid.NewString(),
			Direction: DirectionAgent,
			Body:      env.Message,
			SentAt:    time.Now(),
		}
		s.transcript = append(s.transcript, msg)
		s.emitLocked(Event{Kind: EventTyping, Typing: false})
		s.emitLocked(Event{Kind: EventMessage, Message: &msg})
		s.mu.Unlock()
	case "typing":
		s.mu.Lock()
		s.agentTyping = true
		s.emitLocked(Event{Kind: EventTyping, Typing: true})
		s.mu.Unlock()
	default:
		s.log.Debug(ctx, "ignoring chat frame", "type", env.Type)
	}
}

func (s *Session) closeInternal() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(StateClosed)
	conn := s.conn
	cancel := s.cancel
	s.conn = nil
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "session closed")
	}
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Session) setStateLocked(next State) {
	s.state = next
	s.emitLocked(Event{Kind: EventState, State: next})
}

// emitLocked delivers an event without blocking the session. Callers hold mu.
func (s *Session) emitLocked(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn(context.Background(), "dropping chat event, consumer too slow")
	}
}
