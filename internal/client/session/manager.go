// Package session maintains the authenticated identity for the running
// application instance: it acquires the token pair, persists it together
// with a user snapshot, silently refreshes on expiry, and exposes the
// current user to all consumers.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mlaitechio/vagais-go/internal/client/api"
	"github.com/mlaitechio/vagais-go/internal/client/models"
	"github.com/mlaitechio/vagais-go/internal/client/repositories/state"
	"github.com/mlaitechio/vagais-go/internal/logging"
)

// Manager owns exactly one authenticated identity. Construct it once at
// startup and pass it to every component that needs the current user.
type Manager struct {
	api   api.Client
	store state.Repository
	log   logging.Logger

	mu   sync.RWMutex
	user *models.User
}

// NewManager wires the manager to the API client's token-change hook so that
// token rotations (silent refresh) and purges (refresh failure) are
// written through to the durable store.
func NewManager(apiClient api.Client, store state.Repository, log logging.Logger) *Manager {
	m := &Manager{api: apiClient, store: store, log: log}
	apiClient.OnTokensChanged(m.tokensChanged)
	return m
}

// tokensChanged is invoked by the API client whenever it rotates or purges
// the token pair. An empty access token means the refresh token was rejected
// and the session is over.
func (m *Manager) tokensChanged(access, refresh string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if access == "" {
		if err := m.store.Clear(ctx); err != nil {
			m.log.Error(ctx, "failed to clear session state", "error", err)
		}
		m.mu.Lock()
		m.user = nil
		m.mu.Unlock()
		return
	}

	if err := m.store.Set(ctx, state.KeyAccessToken, []byte(access)); err != nil {
		m.log.Error(ctx, "failed to persist access token", "error", err)
	}
	if err := m.store.Set(ctx, state.KeyRefreshToken, []byte(refresh)); err != nil {
		m.log.Error(ctx, "failed to persist refresh token", "error", err)
	}
}

// Initialize restores the persisted session, if any. Policy, in order:
//
//  1. No persisted access token: stay signed out.
//  2. Token present: fetch the live profile. On success, adopt it.
//  3. Fetch failed but the token pair survived (transient error) and a
//     cached snapshot exists: adopt the snapshot rather than forcing a
//     logout over one network hiccup.
//  4. No usable snapshot: try a refresh and a second profile fetch.
//  5. Anything else: purge all session state and finish signed out.
//
// Initialize never returns an error for an unauthenticated outcome; only
// store failures are reported.
func (m *Manager) Initialize(ctx context.Context) error {
	access, err := m.store.Get(ctx, state.KeyAccessToken)
	if err != nil {
		return fmt.Errorf("read session state: %w", err)
	}
	refresh, err := m.store.Get(ctx, state.KeyRefreshToken)
	if err != nil {
		return fmt.Errorf("read session state: %w", err)
	}
	cached, err := m.store.Get(ctx, state.KeyUser)
	if err != nil {
		return fmt.Errorf("read session state: %w", err)
	}

	if len(access) == 0 {
		return nil
	}
	m.api.SetTokens(string(access), string(refresh))

	user, fetchErr := m.api.GetProfile(ctx)
	if fetchErr == nil {
		return m.adoptUser(ctx, user)
	}
	m.log.Warn(ctx, "profile fetch failed during startup", "error", fetchErr)

	// The fetch may have consumed the session (401 followed by a failed
	// refresh); the cached snapshot is only usable while tokens remain.
	if liveAccess, _ := m.api.Tokens(); liveAccess != "" && len(cached) > 0 {
		var snapshot models.User
		if jsonErr := json.Unmarshal(cached, &snapshot); jsonErr == nil {
			m.log.Info(ctx, "using cached user snapshot", "user_id", snapshot.ID)
			m.mu.Lock()
			m.user = &snapshot
			m.mu.Unlock()
			return nil
		}
		m.log.Warn(ctx, "cached user snapshot is unreadable, discarding")
	}

	if len(refresh) > 0 {
		if refreshErr := m.api.RefreshTokens(ctx); refreshErr == nil {
			if user, retryErr := m.api.GetProfile(ctx); retryErr == nil {
				return m.adoptUser(ctx, user)
			}
		}
	}

	m.log.Info(ctx, "could not restore session, signing out")
	return m.signOutLocal(ctx)
}

// Login exchanges credentials for a session. On failure the previous state
// (usually signed out) is left untouched and the error is returned for the
// caller to display.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	user, err := m.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return m.adoptUser(ctx, user)
}

// Register creates an account. The new user is not signed in; callers must
// Login explicitly.
func (m *Manager) Register(ctx context.Context, req api.RegisterRequest) (*models.User, error) {
	return m.api.Register(ctx, req)
}

// Logout invalidates the session server-side on a best-effort basis, then
// unconditionally clears all persisted and in-memory identity. Calling it
// while already signed out is a no-op.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.api.Logout(ctx); err != nil {
		m.log.Warn(ctx, "server-side logout failed, clearing local state anyway", "error", err)
	}
	return m.signOutLocal(ctx)
}

// RefreshUser refetches the profile and overwrites the cached snapshot.
// Inability to refetch identity is treated as being signed out.
func (m *Manager) RefreshUser(ctx context.Context) error {
	user, err := m.api.GetProfile(ctx)
	if err != nil {
		m.log.Warn(ctx, "profile refresh failed, signing out", "error", err)
		if logoutErr := m.Logout(ctx); logoutErr != nil {
			m.log.Error(ctx, "logout after failed profile refresh", "error", logoutErr)
		}
		return fmt.Errorf("refresh user: %w", err)
	}
	return m.adoptUser(ctx, user)
}

// CurrentUser returns the signed-in user, or nil.
func (m *Manager) CurrentUser() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// IsAuthenticated reports whether a user is signed in.
func (m *Manager) IsAuthenticated() bool {
	return m.CurrentUser() != nil
}

// ExpiresAt returns the advisory expiry of the access token, recovered from
// its unverified exp claim. The zero time means unknown. A 401 from the
// backend remains the authoritative expiry signal.
func (m *Manager) ExpiresAt() time.Time {
	access, _ := m.api.Tokens()
	if access == "" {
		return time.Time{}
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// adoptUser stores the snapshot durably and in memory. Tokens are persisted
// by the token-change hook, so tokens and user never diverge for longer than
// one in-flight request.
func (m *Manager) adoptUser(ctx context.Context, user *models.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user snapshot: %w", err)
	}
	if err := m.store.Set(ctx, state.KeyUser, raw); err != nil {
		return fmt.Errorf("persist user snapshot: %w", err)
	}
	m.mu.Lock()
	m.user = user
	m.mu.Unlock()
	return nil
}

func (m *Manager) signOutLocal(ctx context.Context) error {
	m.api.SetTokens("", "")
	m.mu.Lock()
	m.user = nil
	m.mu.Unlock()
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session state: %w", err)
	}
	return nil
}
