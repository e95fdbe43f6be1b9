package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mlaitechio/vagais-go/internal/client/models"
	"github.com/mlaitechio/vagais-go/internal/logging"
)

const apiPrefix = "/api/v1"

// envelope is the backend's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *models.User `json:"user"`
}

type registerResponse struct {
	User *models.User `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// HTTPClient talks JSON over HTTP to the vagais backend.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	log     logging.Logger

	tokenMu      sync.Mutex
	accessToken  string
	refreshToken string
	onTokens     func(access, refresh string)

	// refreshMu serializes the refresh exchange so concurrent 401s from
	// parallel requests coalesce into a single refresh call.
	refreshMu sync.Mutex
}

// NewHTTPClient constructs a client for the given base URL, e.g.
// "http://localhost:8080". The timeout applies per request.
func NewHTTPClient(baseURL string, timeout time.Duration, log logging.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

func (c *HTTPClient) SetTokens(access, refresh string) {
	c.tokenMu.Lock()
	c.accessToken = access
	c.refreshToken = refresh
	c.tokenMu.Unlock()
}

func (c *HTTPClient) Tokens() (string, string) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	return c.accessToken, c.refreshToken
}

func (c *HTTPClient) OnTokensChanged(fn func(access, refresh string)) {
	c.tokenMu.Lock()
	c.onTokens = fn
	c.tokenMu.Unlock()
}

// adoptTokens replaces the pair and fires the change hook outside the lock.
func (c *HTTPClient) adoptTokens(access, refresh string) {
	c.tokenMu.Lock()
	c.accessToken = access
	c.refreshToken = refresh
	fn := c.onTokens
	c.tokenMu.Unlock()
	if fn != nil {
		fn(access, refresh)
	}
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*models.User, error) {
	var data loginResponse
	if err := c.doPublic(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &data); err != nil {
		return nil, err
	}
	if data.AccessToken == "" || data.User == nil {
		return nil, fmt.Errorf("malformed login response")
	}
	c.adoptTokens(data.AccessToken, data.RefreshToken)
	return data.User, nil
}

func (c *HTTPClient) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	var data registerResponse
	if err := c.doPublic(ctx, http.MethodPost, "/auth/register", req, &data); err != nil {
		return nil, err
	}
	return data.User, nil
}

func (c *HTTPClient) RefreshTokens(ctx context.Context) error {
	access, _ := c.Tokens()
	return c.refreshAfter(ctx, access)
}

// refreshAfter exchanges the refresh token for a new pair, unless another
// caller already rotated the pair the stale token belongs to. Exactly one
// refresh call is in flight at a time.
func (c *HTTPClient) refreshAfter(ctx context.Context, stale string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	current, refresh := c.Tokens()
	if current != stale && current != "" {
		// Lost the race: the pair was already rotated while we waited.
		return nil
	}
	if refresh == "" {
		return ErrUnauthorized
	}

	var data refreshResponse
	if err := c.doPublic(ctx, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: refresh}, &data); err != nil {
		c.log.Warn(ctx, "token refresh failed, purging session", "error", err)
		c.adoptTokens("", "")
		return fmt.Errorf("token refresh failed: %w", ErrUnauthorized)
	}
	c.adoptTokens(data.AccessToken, data.RefreshToken)
	return nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	return c.doAuthed(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *HTTPClient) GetProfile(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.doAuthed(ctx, http.MethodGet, "/users/profile", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *HTTPClient) ListAgents(ctx context.Context, q AgentQuery) (*AgentPage, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	path := "/marketplace/agents"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var page AgentPage
	if err := c.doAuthed(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *HTTPClient) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	var agent models.Agent
	if err := c.doAuthed(ctx, http.MethodGet, "/marketplace/agents/"+url.PathEscape(id), nil, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// doPublic performs an unauthenticated request.
func (c *HTTPClient) doPublic(ctx context.Context, method, path string, body, out any) error {
	status, raw, err := c.send(ctx, method, path, body, "")
	if err != nil {
		return err
	}
	return decode(status, raw, out)
}

// doAuthed performs a request with the bearer token attached. On a 401 it
// refreshes the pair once and retries the original request once; any further
// failure is surfaced to the caller.
func (c *HTTPClient) doAuthed(ctx context.Context, method, path string, body, out any) error {
	access, _ := c.Tokens()
	if access == "" {
		return ErrUnauthorized
	}

	status, raw, err := c.send(ctx, method, path, body, access)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		if err := c.refreshAfter(ctx, access); err != nil {
			return err
		}
		access, _ = c.Tokens()
		status, raw, err = c.send(ctx, method, path, body, access)
		if err != nil {
			return err
		}
	}

	return decode(status, raw, out)
}

// send issues one HTTP request and returns the status and raw body.
// Transport-level failures map to ErrUnavailable.
func (c *HTTPClient) send(ctx context.Context, method, path string, body any, token string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp.StatusCode, raw, nil
}

// decode maps the response status and envelope into either out or a domain
// error.
func decode(status int, raw []byte, out any) error {
	var env envelope
	if len(raw) > 0 {
		// Tolerate empty or non-JSON bodies on success statuses.
		_ = json.Unmarshal(raw, &env)
	}

	switch {
	case status >= 200 && status < 300:
		if out == nil {
			return nil
		}
		if len(env.Data) == 0 {
			return fmt.Errorf("empty response body")
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, env.Error)
	case status >= 400 && status < 500:
		return &AuthError{Status: status, Message: env.Error}
	default:
		return fmt.Errorf("server error: status %d", status)
	}
}
