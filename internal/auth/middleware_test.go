package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySessionStore backs the cookie path in guard tests.
type memorySessionStore struct {
	sessions map[string]Identity
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{sessions: make(map[string]Identity)}
}

func (m *memorySessionStore) Create(ctx context.Context, identity Identity) (string, error) {
	id, err := generateRandomToken()
	if err != nil {
		return "", err
	}
	m.sessions[id] = identity
	return id, nil
}

func (m *memorySessionStore) Get(ctx context.Context, sessionID string) (*Identity, error) {
	identity, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &identity, nil
}

func (m *memorySessionStore) Delete(ctx context.Context, sessionID string) error {
	delete(m.sessions, sessionID)
	return nil
}

func (m *memorySessionStore) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	for id, identity := range m.sessions {
		if identity.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func newGuardFixture(t *testing.T) (*Middleware, *PasetoService, *memorySessionStore, http.Handler) {
	t.Helper()

	tokens, err := NewPasetoService(testTokenKey(), time.Hour)
	require.NoError(t, err)

	sessions := newMemorySessionStore()
	mw := NewMiddleware(tokens, sessions)

	// The protected handler echoes the resolved identity
	protected := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		require.True(t, ok)
		username, ok := UsernameFromContext(r.Context())
		require.True(t, ok)
		w.Header().Set("X-User-ID", userID.String())
		w.Header().Set("X-Username", username)
		w.WriteHeader(http.StatusOK)
	}))

	return mw, tokens, sessions, protected
}

func TestRequireAuth_ValidBearerToken(t *testing.T) {
	_, tokens, _, protected := newGuardFixture(t)

	userID := uuid.New()
	token, err := tokens.Issue(userID, "alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID.String(), rec.Header().Get("X-User-ID"))
	assert.Equal(t, "alice", rec.Header().Get("X-Username"))
}

func TestRequireAuth_UniformRejections(t *testing.T) {
	_, tokens, _, protected := newGuardFixture(t)

	expired, err := tokens.IssueWithDuration(uuid.New(), "alice", -time.Minute)
	require.NoError(t, err)

	otherKey, err := NewPasetoService([]byte("fedcba9876543210fedcba9876543210"), time.Hour)
	require.NoError(t, err)
	foreign, err := otherKey.Issue(uuid.New(), "alice")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
	}{
		{"no credentials", ""},
		{"malformed header", "NotBearer xyz"},
		{"bearer without token", "Bearer"},
		{"garbage token", "Bearer not-a-real-token"},
		{"expired token", "Bearer " + expired},
		{"token from different key", "Bearer " + foreign},
	}

	var bodies []string
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			bodies = append(bodies, rec.Body.String())
		})
	}

	// Every rejection reads the same to the caller
	for i := 1; i < len(bodies); i++ {
		assert.Equal(t, bodies[0], bodies[i])
	}
}

func TestRequireAuth_SessionCookie(t *testing.T) {
	_, _, sessions, protected := newGuardFixture(t)

	userID := uuid.New()
	sessionID, err := sessions.Create(context.Background(), Identity{UserID: userID, Username: "alice"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: sessionID})
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID.String(), rec.Header().Get("X-User-ID"))
}

func TestRequireAuth_UnknownSessionCookie(t *testing.T) {
	_, _, _, protected := newGuardFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "no-such-session"})
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_BearerTakesPrecedenceOverCookie(t *testing.T) {
	_, tokens, sessions, protected := newGuardFixture(t)

	cookieUser := uuid.New()
	sessionID, err := sessions.Create(context.Background(), Identity{UserID: cookieUser, Username: "cookie-user"})
	require.NoError(t, err)

	bearerUser := uuid.New()
	token, err := tokens.Issue(bearerUser, "bearer-user")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.AddCookie(&http.Cookie{Name: "session", Value: sessionID})
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, bearerUser.String(), rec.Header().Get("X-User-ID"))
}
