package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("session not found")

// Identity is the authenticated caller resolved by the request guard.
type Identity struct {
	UserID   uuid.UUID
	Username string
}

// SessionStore holds server-side sessions for the cookie deployment mode.
// Bearer-token clients never touch it.
type SessionStore interface {
	Create(ctx context.Context, identity Identity) (string, error)
	Get(ctx context.Context, sessionID string) (*Identity, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
}

// RedisSessionStore keeps sessions in Redis with a TTL matching the bearer
// token lifetime. Keys are derived from a hash of the opaque session ID so a
// Redis dump never contains usable credentials.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(sessionHash string) string {
	return fmt.Sprintf("session:%s", sessionHash)
}

func userSessionsKey(userID uuid.UUID) string {
	return fmt.Sprintf("user_sessions:%s", userID.String())
}

// Create stores a new session and returns its opaque ID. The session is also
// tracked in a per-user set so a password reset can revoke every session at once.
func (s *RedisSessionStore) Create(ctx context.Context, identity Identity) (string, error) {
	sessionID, err := generateRandomToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}

	sessionHash := hashToken(sessionID)

	pipe := s.client.Pipeline()
	key := sessionKey(sessionHash)
	pipe.HSet(ctx, key, map[string]interface{}{
		"user_id":    identity.UserID.String(),
		"username":   identity.Username,
		"created_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, key, s.ttl)

	userKey := userSessionsKey(identity.UserID)
	pipe.SAdd(ctx, userKey, sessionHash)
	pipe.Expire(ctx, userKey, s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	return sessionID, nil
}

// Get resolves a session ID to the identity it was created for.
func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (*Identity, error) {
	key := sessionKey(hashToken(sessionID))

	data, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrSessionNotFound
	}

	userID, err := uuid.Parse(data["user_id"])
	if err != nil {
		return nil, ErrSessionNotFound
	}

	return &Identity{
		UserID:   userID,
		Username: data["username"],
	}, nil
}

// Delete removes a single session (logout in cookie mode).
func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	key := sessionKey(hashToken(sessionID))
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteAllForUser removes every session belonging to the user. Called after a
// password reset so stolen cookies stop working immediately.
func (s *RedisSessionStore) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	userKey := userSessionsKey(userID)

	sessionHashes, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get user sessions: %w", err)
	}

	if len(sessionHashes) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, h := range sessionHashes {
		pipe.Del(ctx, sessionKey(h))
	}
	pipe.Del(ctx, userKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}

	return nil
}

// generateRandomToken creates a cryptographically secure random token
func generateRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// hashToken derives the storage key for an opaque token. Only the hash is
// ever persisted.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
