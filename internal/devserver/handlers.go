package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const userIDKey contextKey = "user_id"

// requireAuth validates the bearer access token and stores the user id on
// the request context. WebSocket clients that cannot set headers may pass
// the token as a "token" query parameter instead.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := ""
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			raw = strings.TrimPrefix(header, "Bearer ")
		} else if q := r.URL.Query().Get("token"); q != "" {
			raw = q
		}
		if raw == "" {
			s.writeError(w, http.StatusUnauthorized, "missing access token")
			return
		}

		claims, err := s.parseToken(raw, tokenTypeAccess)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	rec, err := s.store.UserByEmail(req.Email)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(req.Password)); err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.store.TouchLogin(rec.ID)
	access, refresh, err := s.issueTokenPair(&rec.User)
	if err != nil {
		s.log.Error(r.Context(), "issuing tokens", "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not issue tokens")
		return
	}

	s.writeData(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"user":          rec.User,
	})
}

type registerRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Username == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "email, username, and password are required")
		return
	}
	if len(req.Password) < 8 {
		s.writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Error(r.Context(), "hashing password", "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not create account")
		return
	}

	user, err := s.store.CreateUser(req.Email, req.Username, req.FirstName, req.LastName, string(hash))
	if err != nil {
		if errors.Is(err, errUserExists) {
			s.writeError(w, http.StatusConflict, "an account with this email already exists")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "could not create account")
		return
	}

	s.writeData(w, http.StatusCreated, map[string]any{"user": user})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		s.writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	claims, err := s.parseToken(req.RefreshToken, tokenTypeRefresh)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}
	user, err := s.store.UserByID(claims.UserID)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}

	access, refresh, err := s.issueTokenPair(user)
	if err != nil {
		s.log.Error(r.Context(), "issuing tokens", "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not issue tokens")
		return
	}

	s.writeData(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
	})
}

// handleLogout acknowledges the sign-out. Tokens are stateless here, so
// there is nothing to revoke; clients discard their local pair.
func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.writeData(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.UserByID(userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}
	s.writeData(w, http.StatusOK, user)
}
