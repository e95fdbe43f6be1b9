package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mlaitechio/vagais-go/internal/client/chat"
)

// Chat runs an interactive conversation with one agent. The conversation
// ends on "/quit", EOF, or when the connection drops; reconnecting means
// running the command again, which creates a fresh session and transcript.
func (a *App) Chat(ctx context.Context, agentID string) error {
	user := a.session.CurrentUser()
	if user == nil {
		fmt.Fprintln(a.out, "Sign in before starting a chat.")
		return nil
	}

	agent, err := a.api.GetAgent(ctx, agentID)
	if err != nil {
		return err
	}

	accessToken, _ := a.api.Tokens()
	sess, err := chat.NewSession(agentID, user, a.api.BaseURL(), accessToken, a.log)
	if err != nil {
		return err
	}
	defer sess.Close()

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err = sess.Open(dialCtx)
	cancel()
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Connected to %s. Type a message, or /quit to leave.\n", agent.Name)

	go a.renderChatEvents(sess, agent.Name)

	for {
		line, err := a.reader.ReadString('\n')
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "/quit" {
			break
		}
		if sess.State() == chat.StateClosed {
			fmt.Fprintln(a.out, "Disconnected. Run 'chat' again to reconnect.")
			break
		}
		if err := sess.Send(ctx, line); err != nil {
			fmt.Fprintf(a.out, "Could not send: %v\n", err)
			break
		}
	}

	return sess.Close()
}

// renderChatEvents prints agent activity until the session closes. The
// user's own messages are already on screen, so only agent output and state
// changes are rendered.
func (a *App) renderChatEvents(sess *chat.Session, agentName string) {
	for {
		select {
		case ev := <-sess.Events():
			switch ev.Kind {
			case chat.EventMessage:
				if ev.Message != nil && ev.Message.Direction == chat.DirectionAgent {
					fmt.Fprintf(a.out, "\n%s: %s\n", agentName, ev.Message.Body)
				}
			case chat.EventTyping:
				if ev.Typing {
					fmt.Fprintf(a.out, "\n%s is typing...\n", agentName)
				}
			case chat.EventState:
				if ev.State == chat.StateClosed {
					fmt.Fprintln(a.out, "\nConnection closed.")
				}
			}
		case <-sess.Done():
			return
		}
	}
}
