package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mlaitechio/vagais-go/internal/client/models"
	"github.com/mlaitechio/vagais-go/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, data any, errMsg string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(map[string]any{
		"success": errMsg == "",
		"data":    data,
		"error":   errMsg,
	})
	require.NoError(t, err)
}

func TestLogin(t *testing.T) {
	user := models.User{ID: "u1", Email: "a@b.c", Username: "alice"}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/auth/login", r.URL.Path)

		var req loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "a@b.c", req.Email)
		require.Equal(t, "secret", req.Password)

		writeEnvelope(t, w, http.StatusOK, map[string]any{
			"access_token":  "acc-1",
			"refresh_token": "ref-1",
			"user":          user,
		}, "")
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, testLogger())

	var gotAccess, gotRefresh string
	c.OnTokensChanged(func(access, refresh string) {
		gotAccess, gotRefresh = access, refresh
	})

	got, err := c.Login(context.Background(), "a@b.c", "secret")
	require.NoError(t, err)
	require.Equal(t, "u1", got.ID)

	access, refresh := c.Tokens()
	require.Equal(t, "acc-1", access)
	require.Equal(t, "ref-1", refresh)
	require.Equal(t, "acc-1", gotAccess)
	require.Equal(t, "ref-1", gotRefresh)
}

func TestLoginInvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusUnauthorized, nil, "invalid credentials")
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, testLogger())
	c.SetTokens("old-acc", "old-ref")

	_, err := c.Login(context.Background(), "a@b.c", "wrong")
	require.ErrorIs(t, err, ErrUnauthorized)

	// A failed login leaves the previous pair untouched.
	access, refresh := c.Tokens()
	require.Equal(t, "old-acc", access)
	require.Equal(t, "old-ref", refresh)
}

func TestSetTokensDoesNotFireHook(t *testing.T) {
	c := NewHTTPClient("http://localhost", time.Second, testLogger())

	fired := false
	c.OnTokensChanged(func(_, _ string) { fired = true })

	c.SetTokens("acc", "ref")
	require.False(t, fired)
}

func TestGetProfileWithoutToken(t *testing.T) {
	c := NewHTTPClient("http://localhost", time.Second, testLogger())
	_, err := c.GetProfile(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestGetProfileRefreshesOnUnauthorized(t *testing.T) {
	user := models.User{ID: "u1", Email: "a@b.c"}
	var refreshCalls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/users/profile":
			if r.Header.Get("Authorization") == "Bearer fresh-acc" {
				writeEnvelope(t, w, http.StatusOK, user, "")
				return
			}
			writeEnvelope(t, w, http.StatusUnauthorized, nil, "token expired")
		case "/api/v1/auth/refresh":
			refreshCalls.Add(1)
			var req refreshRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "stale-ref", req.RefreshToken)
			writeEnvelope(t, w, http.StatusOK, map[string]any{
				"access_token":  "fresh-acc",
				"refresh_token": "fresh-ref",
			}, "")
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, testLogger())
	c.SetTokens("stale-acc", "stale-ref")

	got, err := c.GetProfile(context.Background())
	require.NoError(t, err)
	require.Equal(t, "u1", got.ID)
	require.Equal(t, int32(1), refreshCalls.Load())

	access, refresh := c.Tokens()
	require.Equal(t, "fresh-acc", access)
	require.Equal(t, "fresh-ref", refresh)
}

func TestRefreshFailurePurgesTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/users/profile":
			writeEnvelope(t, w, http.StatusUnauthorized, nil, "token expired")
		case "/api/v1/auth/refresh":
			writeEnvelope(t, w, http.StatusUnauthorized, nil, "refresh token expired")
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, testLogger())
	c.SetTokens("stale-acc", "stale-ref")

	var mu sync.Mutex
	var hookAccess, hookRefresh string
	hookFired := false
	c.OnTokensChanged(func(access, refresh string) {
		mu.Lock()
		defer mu.Unlock()
		hookAccess, hookRefresh = access, refresh
		hookFired = true
	})

	_, err := c.GetProfile(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)

	access, refresh := c.Tokens()
	require.Empty(t, access)
	require.Empty(t, refresh)

	mu.Lock()
	defer mu.Unlock()
	require.True(t, hookFired)
	require.Empty(t, hookAccess)
	require.Empty(t, hookRefresh)
}

func TestConcurrentUnauthorizedSingleRefresh(t *testing.T) {
	user := models.User{ID: "u1"}
	var refreshCalls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/users/profile":
			if r.Header.Get("Authorization") == "Bearer fresh-acc" {
				writeEnvelope(t, w, http.StatusOK, user, "")
				return
			}
			writeEnvelope(t, w, http.StatusUnauthorized, nil, "token expired")
		case "/api/v1/auth/refresh":
			refreshCalls.Add(1)
			writeEnvelope(t, w, http.StatusOK, map[string]any{
				"access_token":  "fresh-acc",
				"refresh_token": "fresh-ref",
			}, "")
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, testLogger())
	c.SetTokens("stale-acc", "stale-ref")

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.GetProfile(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
	}
	require.Equal(t, int32(1), refreshCalls.Load())
}

func TestServerUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewHTTPClient(srv.URL, time.Second, testLogger())
	_, err := c.Login(context.Background(), "a@b.c", "secret")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestGetAgentNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusNotFound, nil, "agent not found")
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, testLogger())
	c.SetTokens("acc", "ref")

	_, err := c.GetAgent(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusBadRequest, nil, "password must be at least 8 characters")
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, testLogger())

	_, err := c.Register(context.Background(), RegisterRequest{Email: "a@b.c", Username: "alice", Password: "short"})
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, http.StatusBadRequest, authErr.Status)
	require.Equal(t, "password must be at least 8 characters", authErr.Message)
}

func TestListAgentsQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/marketplace/agents", r.URL.Path)
		require.Equal(t, "2", r.URL.Query().Get("page"))
		require.Equal(t, "10", r.URL.Query().Get("limit"))
		require.Equal(t, "review", r.URL.Query().Get("search"))
		writeEnvelope(t, w, http.StatusOK, AgentPage{
			Data:       []models.Agent{{ID: "ag1", Name: "Code Reviewer"}},
			Total:      11,
			Page:       2,
			Limit:      10,
			TotalPages: 2,
		}, "")
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, testLogger())
	c.SetTokens("acc", "ref")

	page, err := c.ListAgents(context.Background(), AgentQuery{Page: 2, Limit: 10, Search: "review"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	require.Equal(t, int64(11), page.Total)
	require.Equal(t, 2, page.TotalPages)
}

func TestAuthErrorMessage(t *testing.T) {
	require.Equal(t, "authentication failed", (&AuthError{Status: 400}).Error())
	require.Equal(t, "boom", (&AuthError{Status: 400, Message: "boom"}).Error())
}

func TestDecodeEmptySuccessBody(t *testing.T) {
	require.NoError(t, decode(http.StatusOK, nil, nil))
	require.Error(t, decode(http.StatusOK, nil, &models.User{}))
	require.EqualError(t, decode(http.StatusInternalServerError, nil, nil), fmt.Sprintf("server error: status %d", http.StatusInternalServerError))
}
