package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/gameshelf/api/internal/httputil"
	"github.com/gameshelf/api/internal/logging"
)

type contextKey string

const (
	userIDContextKey   contextKey = "user_id"
	usernameContextKey contextKey = "username"
)

// Middleware gates protected routes. Bearer tokens are verified without any
// store access; the session-cookie fallback costs exactly one Redis lookup.
type Middleware struct {
	tokens   TokenService
	sessions SessionStore
}

func NewMiddleware(tokens TokenService, sessions SessionStore) *Middleware {
	return &Middleware{tokens: tokens, sessions: sessions}
}

// RequireAuth resolves the caller's identity and threads it through the
// request context. Missing, malformed, expired, and tampered credentials all
// produce the same 401 body; the distinction only reaches the log.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, reason := m.resolve(r)
		if identity == nil {
			logging.FromContext(r.Context()).Warn("request rejected", "reason", reason)
			httputil.RespondErrorWithCode(w, "authentication required", httputil.CodeUnauthorized, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, identity.UserID)
		ctx = context.WithValue(ctx, usernameContextKey, identity.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolve returns the identity, or nil plus a log-only failure reason.
func (m *Middleware) resolve(r *http.Request) (*Identity, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return nil, "malformed authorization header"
		}

		claims, err := m.tokens.Verify(parts[1])
		if err != nil {
			if err == ErrExpiredToken {
				return nil, "token expired"
			}
			return nil, "invalid token"
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			return nil, "invalid user id in token"
		}

		return &Identity{UserID: userID, Username: claims.Username}, ""
	}

	sessionID, err := GetSessionFromCookie(r)
	if err != nil {
		return nil, "missing credentials"
	}

	identity, err := m.sessions.Get(r.Context(), sessionID)
	if err != nil {
		return nil, "unknown or expired session"
	}

	return identity, ""
}

// UserIDFromContext extracts the authenticated user ID from the request context.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDContextKey).(uuid.UUID)
	return userID, ok
}

// UsernameFromContext extracts the authenticated username from the request context.
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameContextKey).(string)
	return username, ok
}
