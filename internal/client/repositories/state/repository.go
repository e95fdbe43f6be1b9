// Package state persists the session's durable key-value state: the token
// pair and the cached user snapshot. It must survive a process restart; the
// absence of the access-token key is the definitive signed-out signal on
// cold start.
package state

import "context"

// Keys under which session state is stored.
const (
	KeyAccessToken  = "token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// Repository is a durable key-value store.
type Repository interface {
	// Get returns the value for key, or nil if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes all keys.
	Clear(ctx context.Context) error
}
