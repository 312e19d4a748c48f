package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gameshelf/api/internal/logging"
	"github.com/gameshelf/api/internal/user"
)

var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrDuplicateCredential = errors.New("username or email already taken")
	ErrUsernameRequired    = errors.New("username is required")
	ErrEmailRequired       = errors.New("email is required")
	ErrPasswordRequired    = errors.New("password is required")
	ErrPasswordTooShort    = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong     = errors.New("password must be 72 characters or fewer")
	ErrInvalidEmailFormat  = errors.New("invalid email format")
	ErrInvalidResetToken   = errors.New("invalid or expired reset token")
)

// UserStore is the slice of the user repository the account service needs.
type UserStore interface {
	Create(ctx context.Context, username, email, passwordHash string) (*user.User, error)
	CreateExternal(ctx context.Context, username, email, externalID string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByUsername(ctx context.Context, username string) (*user.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*user.User, error)
	SetResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiry time.Time) error
	ConsumePasswordReset(ctx context.Context, tokenHash, newPasswordHash string) (uuid.UUID, error)
}

// EmailSender delivers account emails out-of-band.
type EmailSender interface {
	SendPasswordResetEmail(ctx context.Context, toEmail, token string) error
}

// Service orchestrates registration, login, and the password reset flow.
type Service struct {
	users         UserStore
	sessions      SessionStore
	tokens        TokenService
	hasher        *Hasher
	email         EmailSender
	logger        *logging.Logger
	resetTokenTTL time.Duration
}

func NewService(
	users UserStore,
	sessions SessionStore,
	tokens TokenService,
	hasher *Hasher,
	email EmailSender,
	logger *logging.Logger,
	resetTokenTTL time.Duration,
) *Service {
	return &Service{
		users:         users,
		sessions:      sessions,
		tokens:        tokens,
		hasher:        hasher,
		email:         email,
		logger:        logger,
		resetTokenTTL: resetTokenTTL,
	}
}

// AuthResult bundles the minted token with the sanitized user view.
type AuthResult struct {
	Token string
	User  *user.User
}

// Register creates a new local account. Uniqueness is pre-checked for
// friendly errors, but the store's unique indexes are the authority: a
// concurrent registration slipping past the pre-check still comes back as
// ErrDuplicateCredential.
func (s *Service) Register(ctx context.Context, username, email, password string) (*user.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" {
		return nil, ErrUsernameRequired
	}
	if email == "" {
		return nil, ErrEmailRequired
	}
	if len(email) > 254 {
		return nil, ErrInvalidEmailFormat
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmailFormat
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	if len(password) < 8 {
		return nil, ErrPasswordTooShort
	}
	if len(password) > 72 {
		return nil, ErrPasswordTooLong
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateCredential
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, ErrDuplicateCredential
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser, err := s.users.Create(ctx, username, email, passwordHash)
	if err != nil {
		if errors.Is(err, user.ErrDuplicate) {
			return nil, ErrDuplicateCredential
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", "user_id", newUser.ID, "username", newUser.Username)

	return newUser, nil
}

// Login authenticates by email and password and mints a bearer token.
// An unknown email, an account without a local password, and a wrong password
// are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !existing.HasPassword() {
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, *existing.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(existing.ID, existing.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &AuthResult{Token: token, User: existing}, nil
}

// LoginExternal upserts a provider-originated account and mints a token.
// First login creates a passwordless record keyed by the provider's stable
// user ID; later logins reuse it.
func (s *Service) LoginExternal(ctx context.Context, externalID, email, name string) (*AuthResult, error) {
	if externalID == "" {
		return nil, ErrInvalidCredentials
	}
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := s.users.GetByExternalID(ctx, externalID)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("failed to get user by external id: %w", err)
	}

	if existing == nil {
		existing, err = s.createExternalUser(ctx, externalID, email, name)
		if err != nil {
			return nil, err
		}
		s.logger.Info("external user created", "user_id", existing.ID, "username", existing.Username)
	}

	token, err := s.tokens.Issue(existing.ID, existing.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &AuthResult{Token: token, User: existing}, nil
}

// createExternalUser derives a username from the provider profile and retries
// with a random suffix when it collides with an existing account.
func (s *Service) createExternalUser(ctx context.Context, externalID, email, name string) (*user.User, error) {
	base := deriveUsername(name, email)

	candidate := base
	for attempt := 0; attempt < 4; attempt++ {
		created, err := s.users.CreateExternal(ctx, candidate, email, externalID)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, user.ErrDuplicate) {
			return nil, fmt.Errorf("failed to create external user: %w", err)
		}

		suffix, err := generateRandomToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate username suffix: %w", err)
		}
		candidate = fmt.Sprintf("%s-%s", base, strings.ToLower(suffix[:6]))
	}

	return nil, ErrDuplicateCredential
}

// RequestPasswordReset starts the reset flow. It always reports success to
// the caller so an attacker cannot probe which emails are registered. The
// stored token hash replaces any previous one, so only the latest emailed
// link works.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			s.logger.Warn("failed to get user for password reset", "error", err)
		}
		return nil
	}

	token, err := generateRandomToken()
	if err != nil {
		s.logger.Warn("failed to generate reset token", "error", err)
		return nil
	}

	expiry := time.Now().Add(s.resetTokenTTL)
	if err := s.users.SetResetToken(ctx, existing.ID, hashToken(token), expiry); err != nil {
		s.logger.Warn("failed to store reset token", "error", err)
		return nil
	}

	go func() {
		emailCtx := context.Background()
		if err := s.email.SendPasswordResetEmail(emailCtx, email, token); err != nil {
			s.logger.Warn("failed to send password reset email", "email", email, "error", err)
		}
	}()

	return nil
}

// ResetPassword completes the reset flow. Token consumption is at-most-once:
// the store clears the token in the same write that sets the new hash, so a
// replayed or raced confirmation fails with ErrInvalidResetToken.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return ErrPasswordRequired
	}
	if len(newPassword) < 8 {
		return ErrPasswordTooShort
	}
	if len(newPassword) > 72 {
		return ErrPasswordTooLong
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	userID, err := s.users.ConsumePasswordReset(ctx, hashToken(token), passwordHash)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("failed to consume reset token: %w", err)
	}

	// Stolen session cookies stop working once the password changes
	if err := s.sessions.DeleteAllForUser(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke sessions after password reset", "user_id", userID, "error", err)
	}

	s.logger.Info("password reset completed", "user_id", userID)

	return nil
}

// deriveUsername builds a username candidate from an OAuth profile.
func deriveUsername(name, email string) string {
	base := strings.TrimSpace(name)
	if base == "" && email != "" {
		base = strings.SplitN(email, "@", 2)[0]
	}
	if base == "" {
		base = "player"
	}

	base = strings.ToLower(base)
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '.', r == '-', r == '_':
			b.WriteRune('-')
		}
	}

	cleaned := strings.Trim(b.String(), "-")
	if cleaned == "" {
		cleaned = "player"
	}
	if len(cleaned) > 30 {
		cleaned = cleaned[:30]
	}
	return cleaned
}
