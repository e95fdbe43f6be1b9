package devserver

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mlaitechio/vagais-go/internal/client/models"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims is the JWT payload for both access and refresh tokens. TokenType
// distinguishes the two so a refresh token cannot authorize API calls.
type Claims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

func (s *Server) mintToken(user *models.User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// issueTokenPair mints a fresh access/refresh pair for the user.
func (s *Server) issueTokenPair(user *models.User) (access, refresh string, err error) {
	access, err = s.mintToken(user, tokenTypeAccess, s.cfg.AccessTTL)
	if err != nil {
		return "", "", fmt.Errorf("signing access token: %w", err)
	}
	refresh, err = s.mintToken(user, tokenTypeRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return "", "", fmt.Errorf("signing refresh token: %w", err)
	}
	return access, refresh, nil
}

// parseToken validates signature, expiry, and token type.
func (s *Server) parseToken(raw, wantType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("wrong token type %q", claims.TokenType)
	}
	return claims, nil
}
