package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mlaitechio/vagais-go/internal/client/api"
	"github.com/mlaitechio/vagais-go/internal/client/config"
	"github.com/mlaitechio/vagais-go/internal/client/models"
	"github.com/mlaitechio/vagais-go/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeSession is a scriptable sessionManager.
type fakeSession struct {
	user *models.User

	loginEmail    string
	loginPassword string
	loginErr      error
	loginCalls    int

	registerReq   api.RegisterRequest
	registerUser  *models.User
	registerErr   error
	registerCalls int

	logoutCalls int
	logoutErr   error
}

func (f *fakeSession) Initialize(_ context.Context) error { return nil }

func (f *fakeSession) Login(_ context.Context, email, password string) error {
	f.loginCalls++
	f.loginEmail, f.loginPassword = email, password
	return f.loginErr
}

func (f *fakeSession) Register(_ context.Context, req api.RegisterRequest) (*models.User, error) {
	f.registerCalls++
	f.registerReq = req
	return f.registerUser, f.registerErr
}

func (f *fakeSession) Logout(_ context.Context) error {
	f.logoutCalls++
	if f.logoutErr == nil {
		f.user = nil
	}
	return f.logoutErr
}

func (f *fakeSession) RefreshUser(_ context.Context) error { return nil }
func (f *fakeSession) CurrentUser() *models.User           { return f.user }
func (f *fakeSession) IsAuthenticated() bool               { return f.user != nil }
func (f *fakeSession) ExpiresAt() time.Time                { return time.Time{} }

// fakeClient is a scriptable api.Client; only the methods the shell calls
// have behavior.
type fakeClient struct {
	page     *api.AgentPage
	pageErr  error
	agent    *models.Agent
	agentErr error
}

func (f *fakeClient) Login(_ context.Context, _, _ string) (*models.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) Register(_ context.Context, _ api.RegisterRequest) (*models.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) RefreshTokens(_ context.Context) error { return nil }
func (f *fakeClient) Logout(_ context.Context) error        { return nil }

func (f *fakeClient) GetProfile(_ context.Context) (*models.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) ListAgents(_ context.Context, _ api.AgentQuery) (*api.AgentPage, error) {
	return f.page, f.pageErr
}

func (f *fakeClient) GetAgent(_ context.Context, _ string) (*models.Agent, error) {
	return f.agent, f.agentErr
}

func (f *fakeClient) SetTokens(_, _ string)                   {}
func (f *fakeClient) Tokens() (string, string)                { return "acc", "ref" }
func (f *fakeClient) OnTokensChanged(_ func(string, string))  {}
func (f *fakeClient) BaseURL() string                         { return "http://localhost:8080" }

func newTestApp(session *fakeSession, client *fakeClient) (*App, *bytes.Buffer) {
	out := &bytes.Buffer{}
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return &App{
		config:  cfg,
		session: session,
		api:     client,
		log:     testLogger(),
		reader:  bufio.NewReader(strings.NewReader("")),
		out:     out,
	}, out
}

// stubInput replaces the input seams for one test.
func stubInput(t *testing.T, texts []string, password string) {
	t.Helper()
	origText, origPassword := getSimpleText, getPassword
	t.Cleanup(func() {
		getSimpleText, getPassword = origText, origPassword
	})

	i := 0
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) {
		if i >= len(texts) {
			return "", io.EOF
		}
		text := texts[i]
		i++
		return text, nil
	}
	getPassword = func(_ io.Writer) ([]byte, error) {
		return []byte(password), nil
	}
}
