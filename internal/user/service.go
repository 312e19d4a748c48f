package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/gameshelf/api/internal/logging"
)

const maxBioLength = 500

var (
	ErrInvalidSetting = errors.New("invalid setting value")
	ErrBioTooLong     = errors.New("bio must be 500 characters or fewer")
	ErrGameIDRequired = errors.New("game id is required")
)

// Store is the slice of the repository the profile/settings service needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	UpdateSettings(ctx context.Context, userID uuid.UUID, s Settings) error
	UpdateProfile(ctx context.Context, userID uuid.UUID, displayName, bio *string) (*User, error)
	UpdateProfilePicture(ctx context.Context, userID uuid.UUID, url string) error
	AddToWishlist(ctx context.Context, userID uuid.UUID, gameID string) error
	RemoveFromWishlist(ctx context.Context, userID uuid.UUID, gameID string) error
	ListWishlist(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// ImageStore persists uploaded images and returns their public URL.
type ImageStore interface {
	SaveImage(r io.Reader, originalName string) (string, error)
}

// Service handles profile, settings, and wishlist operations for
// authenticated users.
type Service struct {
	store  Store
	images ImageStore
	logger *logging.Logger
}

func NewService(store Store, images ImageStore, logger *logging.Logger) *Service {
	return &Service{store: store, images: images, logger: logger}
}

// Get returns the user record for an authenticated ID.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*User, error) {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetSettings returns the user's current settings.
func (s *Service) GetSettings(ctx context.Context, userID uuid.UUID) (Settings, error) {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to get user: %w", err)
	}
	return u.Settings, nil
}

// UpdateSettings merges the patch into the stored settings. Fields absent
// from the patch keep their prior values; an invalid enum value rejects the
// whole patch and nothing is written.
func (s *Service) UpdateSettings(ctx context.Context, userID uuid.UUID, patch SettingsPatch) (Settings, error) {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to get user: %w", err)
	}

	merged := u.Settings
	if patch.Notifications != nil {
		merged.Notifications = *patch.Notifications
	}
	if patch.EmailUpdates != nil {
		merged.EmailUpdates = *patch.EmailUpdates
	}
	if patch.Language != nil {
		if !validLanguage(*patch.Language) {
			return Settings{}, ErrInvalidSetting
		}
		merged.Language = *patch.Language
	}
	if patch.Privacy != nil {
		if !validPrivacy(*patch.Privacy) {
			return Settings{}, ErrInvalidSetting
		}
		merged.Privacy = *patch.Privacy
	}

	if err := s.store.UpdateSettings(ctx, userID, merged); err != nil {
		return Settings{}, fmt.Errorf("failed to update settings: %w", err)
	}

	return merged, nil
}

// UpdateProfile applies a partial profile update. Nil fields are untouched.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, displayName, bio *string) (*User, error) {
	if displayName != nil {
		trimmed := strings.TrimSpace(*displayName)
		displayName = &trimmed
	}
	if bio != nil {
		trimmed := strings.TrimSpace(*bio)
		// Characters, not bytes: a multibyte bio under the limit is fine
		if utf8.RuneCountInString(trimmed) > maxBioLength {
			return nil, ErrBioTooLong
		}
		bio = &trimmed
	}

	updated, err := s.store.UpdateProfile(ctx, userID, displayName, bio)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return updated, nil
}

// SetProfilePicture stores the uploaded image and records its URL on the user.
func (s *Service) SetProfilePicture(ctx context.Context, userID uuid.UUID, r io.Reader, filename string) (string, error) {
	url, err := s.images.SaveImage(r, filename)
	if err != nil {
		return "", err
	}

	if err := s.store.UpdateProfilePicture(ctx, userID, url); err != nil {
		return "", fmt.Errorf("failed to store profile picture url: %w", err)
	}

	s.logger.Info("profile picture updated", "user_id", userID)

	return url, nil
}

// AddToWishlist puts a game on the user's wishlist; duplicates are a no-op.
func (s *Service) AddToWishlist(ctx context.Context, userID uuid.UUID, gameID string) error {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return ErrGameIDRequired
	}
	return s.store.AddToWishlist(ctx, userID, gameID)
}

// RemoveFromWishlist takes a game off the user's wishlist.
func (s *Service) RemoveFromWishlist(ctx context.Context, userID uuid.UUID, gameID string) error {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return ErrGameIDRequired
	}
	return s.store.RemoveFromWishlist(ctx, userID, gameID)
}

// Wishlist returns the user's wishlisted game IDs.
func (s *Service) Wishlist(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return s.store.ListWishlist(ctx, userID)
}
