package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/gameshelf/api/internal/database"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("username or email already exists")
)

// Repository handles user persistence over Postgres.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new local account. Unique-index violations on username or
// email surface as ErrDuplicate, which closes the race left open by the
// service-level pre-checks.
func (r *Repository) Create(ctx context.Context, username, email, passwordHash string) (*User, error) {
	dbUser := &database.User{
		Username:      username,
		Email:         email,
		PasswordHash:  &passwordHash,
		Notifications: true,
		EmailUpdates:  true,
		Language:      "English",
		Privacy:       "Public",
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// CreateExternal inserts a provider-originated account with no local password.
func (r *Repository) CreateExternal(ctx context.Context, username, email, externalID string) (*User, error) {
	dbUser := &database.User{
		Username:      username,
		Email:         email,
		ExternalID:    &externalID,
		Notifications: true,
		EmailUpdates:  true,
		Language:      "English",
		Privacy:       "Public",
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create external user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "email = ?", email)
}

// GetByUsername retrieves a user by username
func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, "username = ?", username)
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByExternalID retrieves a provider-originated user by external identity.
func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (*User, error) {
	return r.getOne(ctx, "external_id = ?", externalID)
}

func (r *Repository) getOne(ctx context.Context, where string, arg any) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where(where, arg).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// UpdatePassword replaces a user's password hash.
func (r *Repository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return requireRowsAffected(result)
}

// SetResetToken stores the hashed reset token and its expiry, replacing any
// previous token so only the most recently issued one verifies.
func (r *Repository) SetResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiry time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("reset_token_hash = ?", tokenHash).
		Set("reset_token_expiry = ?", expiry).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}

	return requireRowsAffected(result)
}

// ConsumePasswordReset writes the new password hash and clears the reset
// token in one guarded UPDATE. The WHERE clause matches the hashed token and
// an unexpired expiry, so of two racing confirmations exactly one sees a row;
// the loser gets ErrNotFound. Returns the ID of the affected user.
func (r *Repository) ConsumePasswordReset(ctx context.Context, tokenHash, newPasswordHash string) (uuid.UUID, error) {
	var userID uuid.UUID

	_, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", newPasswordHash).
		Set("reset_token_hash = NULL").
		Set("reset_token_expiry = NULL").
		Set("updated_at = NOW()").
		Where("reset_token_hash = ?", tokenHash).
		Where("reset_token_expiry > NOW()").
		Returning("id").
		Exec(ctx, &userID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to consume reset token: %w", err)
	}

	return userID, nil
}

// UpdateSettings writes the full settings block. Merging of partial patches
// happens in the service; by the time this runs the values are validated.
func (r *Repository) UpdateSettings(ctx context.Context, userID uuid.UUID, s Settings) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("notifications = ?", s.Notifications).
		Set("email_updates = ?", s.EmailUpdates).
		Set("language = ?", s.Language).
		Set("privacy = ?", s.Privacy).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}

	return requireRowsAffected(result)
}

// UpdateProfile applies a partial profile update and returns the fresh record.
func (r *Repository) UpdateProfile(ctx context.Context, userID uuid.UUID, displayName, bio *string) (*User, error) {
	dbUser := new(database.User)

	q := r.db.NewUpdate().
		Model(dbUser).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Returning("*")

	if displayName != nil {
		q = q.Set("display_name = ?", *displayName)
	}
	if bio != nil {
		q = q.Set("bio = ?", *bio)
	}

	_, err := q.Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// UpdateProfilePicture stores the public URL of an uploaded profile picture.
func (r *Repository) UpdateProfilePicture(ctx context.Context, userID uuid.UUID, url string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("profile_pic_url = ?", url).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update profile picture: %w", err)
	}

	return requireRowsAffected(result)
}

// AddToWishlist records a game on the user's wishlist. Adding the same game
// twice is a no-op.
func (r *Repository) AddToWishlist(ctx context.Context, userID uuid.UUID, gameID string) error {
	entry := &database.WishlistEntry{
		UserID: userID,
		GameID: gameID,
	}

	_, err := r.db.NewInsert().
		Model(entry).
		On("CONFLICT (user_id, game_id) DO NOTHING").
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to add wishlist entry: %w", err)
	}

	return nil
}

// RemoveFromWishlist deletes a wishlist entry. Removing an absent entry is a no-op.
func (r *Repository) RemoveFromWishlist(ctx context.Context, userID uuid.UUID, gameID string) error {
	_, err := r.db.NewDelete().
		Model((*database.WishlistEntry)(nil)).
		Where("user_id = ?", userID).
		Where("game_id = ?", gameID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to remove wishlist entry: %w", err)
	}

	return nil
}

// ListWishlist returns the game IDs on the user's wishlist, oldest first.
func (r *Repository) ListWishlist(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var gameIDs []string

	err := r.db.NewSelect().
		Model((*database.WishlistEntry)(nil)).
		Column("game_id").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Scan(ctx, &gameIDs)

	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist: %w", err)
	}

	return gameIDs, nil
}

func requireRowsAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:               dbu.ID,
		Username:         dbu.Username,
		Email:            dbu.Email,
		PasswordHash:     dbu.PasswordHash,
		ExternalID:       dbu.ExternalID,
		DisplayName:      dbu.DisplayName,
		Bio:              dbu.Bio,
		ProfilePicURL:    dbu.ProfilePicURL,
		ResetTokenHash:   dbu.ResetTokenHash,
		ResetTokenExpiry: dbu.ResetTokenExpiry,
		Settings: Settings{
			Notifications: dbu.Notifications,
			EmailUpdates:  dbu.EmailUpdates,
			Language:      dbu.Language,
			Privacy:       dbu.Privacy,
		},
		CreatedAt: dbu.CreatedAt,
		UpdatedAt: dbu.UpdatedAt,
	}
}
