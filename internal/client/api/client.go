// Package api implements the HTTP client for the vagais backend.
//
// The client owns the access/refresh token pair for the lifetime of the
// process. Every authenticated request carries a bearer token; a 401 response
// triggers exactly one token refresh followed by exactly one retry of the
// original request. A failed refresh purges the pair, which the session layer
// observes through the token-change hook.
package api

import (
	"context"

	"github.com/mlaitechio/vagais-go/internal/client/models"
)

// Client is the API surface the session manager and CLI depend on.
type Client interface {
	// Login exchanges credentials for a token pair and a user snapshot.
	// On success the client adopts the new pair; on failure the previous
	// pair is left untouched.
	Login(ctx context.Context, email, password string) (*models.User, error)

	// Register creates an account. The returned user is NOT signed in;
	// callers must Login explicitly.
	Register(ctx context.Context, req RegisterRequest) (*models.User, error)

	// RefreshTokens exchanges the refresh token for a new pair. On failure
	// the pair is purged and ErrUnauthorized is returned.
	RefreshTokens(ctx context.Context) error

	// Logout asks the server to invalidate the session. Local state is not
	// touched; the session manager handles cleanup regardless of the result.
	Logout(ctx context.Context) error

	// GetProfile fetches the live user snapshot for the current identity.
	GetProfile(ctx context.Context) (*models.User, error)

	// ListAgents pages through the marketplace catalogue.
	ListAgents(ctx context.Context, q AgentQuery) (*AgentPage, error)

	// GetAgent fetches one marketplace agent by id.
	GetAgent(ctx context.Context, id string) (*models.Agent, error)

	// SetTokens replaces the token pair, e.g. when restoring a persisted
	// session. It does not fire the token-change hook.
	SetTokens(access, refresh string)

	// Tokens returns the current pair.
	Tokens() (access, refresh string)

	// OnTokensChanged registers a hook fired whenever the client itself
	// rotates or purges the pair (login, refresh, refresh failure).
	OnTokensChanged(fn func(access, refresh string))

	// BaseURL returns the configured server base URL.
	BaseURL() string
}

// RegisterRequest mirrors POST /auth/register.
type RegisterRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// AgentQuery narrows a marketplace listing request. Zero values are omitted.
type AgentQuery struct {
	Page     int
	Limit    int
	Search   string
	Category string
}

// AgentPage is one page of marketplace results.
type AgentPage struct {
	Data       []models.Agent `json:"data"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}
