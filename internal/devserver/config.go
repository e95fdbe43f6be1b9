// Package devserver is a self-contained local stand-in for the vagais
// backend: auth, profile, a canned marketplace, and the chat WebSocket.
// It keeps everything in memory and exists for local development of the
// client and for integration tests.
package devserver

import (
	"fmt"
	"os"
	"time"
)

// Config holds devserver settings, read from environment variables.
type Config struct {
	Port       string
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:       getEnv("PORT", "8080"),
		JWTSecret:  getEnv("JWT_SECRET", "dev-secret-do-not-use-in-production"),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}

	if ttl := getEnv("ACCESS_TOKEN_TTL", ""); ttl != "" {
		parsed, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid ACCESS_TOKEN_TTL: %w", err)
		}
		cfg.AccessTTL = parsed
	}
	if ttl := getEnv("REFRESH_TOKEN_TTL", ""); ttl != "" {
		parsed, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid REFRESH_TOKEN_TTL: %w", err)
		}
		cfg.RefreshTTL = parsed
	}

	if cfg.Port == "" {
		return nil, fmt.Errorf("PORT cannot be empty")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
