package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokenKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func TestNewPasetoService_RejectsBadKeyLength(t *testing.T) {
	_, err := NewPasetoService([]byte("too short"), time.Hour)
	assert.Error(t, err)

	_, err = NewPasetoService(testTokenKey(), time.Hour)
	assert.NoError(t, err)
}

func TestPasetoService_IssueAndVerify(t *testing.T) {
	svc, err := NewPasetoService(testTokenKey(), time.Hour)
	require.NoError(t, err)

	userID := uuid.New()
	token, err := svc.Issue(userID, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.WithinDuration(t, time.Now(), claims.IssuedAt, 5*time.Second)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestPasetoService_RejectsExpiredToken(t *testing.T) {
	svc, err := NewPasetoService(testTokenKey(), time.Hour)
	require.NoError(t, err)

	token, err := svc.IssueWithDuration(uuid.New(), "alice", -time.Minute)
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestPasetoService_RejectsTamperedToken(t *testing.T) {
	svc, err := NewPasetoService(testTokenKey(), time.Hour)
	require.NoError(t, err)

	token, err := svc.Issue(uuid.New(), "alice")
	require.NoError(t, err)

	tampered := token[:len(token)-4] + "AAAA"
	_, err = svc.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Verify("not a token at all")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasetoService_RejectsTokenFromDifferentKey(t *testing.T) {
	svc, err := NewPasetoService(testTokenKey(), time.Hour)
	require.NoError(t, err)

	other, err := NewPasetoService([]byte("fedcba9876543210fedcba9876543210"), time.Hour)
	require.NoError(t, err)

	token, err := other.Issue(uuid.New(), "alice")
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
