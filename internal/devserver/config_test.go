package devserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.NotEmpty(t, cfg.JWTSecret)
	require.Equal(t, 15*time.Minute, cfg.AccessTTL)
	require.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "another-secret")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("REFRESH_TOKEN_TTL", "48h")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, "another-secret", cfg.JWTSecret)
	require.Equal(t, 5*time.Minute, cfg.AccessTTL)
	require.Equal(t, 48*time.Hour, cfg.RefreshTTL)
}

func TestLoadConfigInvalidTTL(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "soon")
	_, err := LoadConfig()
	require.Error(t, err)
}
