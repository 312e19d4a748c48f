package user

import (
	"time"

	"github.com/google/uuid"
)

// Supported values for the settings enums. Anything outside these sets is
// rejected before any write happens.
var (
	Languages = []string{"English", "Spanish", "French", "German"}
	Privacies = []string{"Public", "Friends", "Private"}
)

// Settings holds per-account preferences.
type Settings struct {
	Notifications bool   `json:"notifications"`
	EmailUpdates  bool   `json:"emailUpdates"`
	Language      string `json:"language"`
	Privacy       string `json:"privacy"`
}

// DefaultSettings returns the values applied to every new account.
func DefaultSettings() Settings {
	return Settings{
		Notifications: true,
		EmailUpdates:  true,
		Language:      "English",
		Privacy:       "Public",
	}
}

// SettingsPatch is a partial settings update. Nil fields are left untouched.
type SettingsPatch struct {
	Notifications *bool   `json:"notifications"`
	EmailUpdates  *bool   `json:"emailUpdates"`
	Language      *string `json:"language"`
	Privacy       *string `json:"privacy"`
}

// User is the domain model for one registered account.
//
// PasswordHash is present if and only if ExternalID is absent: local accounts
// authenticate with a password, provider-originated accounts never have one.
// Account deletion is intentionally unsupported.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash *string   `json:"-"` // never serialized, never logged
	ExternalID   *string   `json:"-"`

	DisplayName   string `json:"displayName,omitempty"`
	Bio           string `json:"bio,omitempty"`
	ProfilePicURL string `json:"profilePic,omitempty"`

	ResetTokenHash   *string    `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`

	Settings Settings `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`
}

// PublicView is the sanitized projection returned by the API. It carries no
// credential or recovery material.
type PublicView struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"displayName,omitempty"`
	Bio           string    `json:"bio,omitempty"`
	ProfilePicURL string    `json:"profilePic,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Public returns the sanitized view of the user.
func (u *User) Public() PublicView {
	return PublicView{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		Bio:           u.Bio,
		ProfilePicURL: u.ProfilePicURL,
		CreatedAt:     u.CreatedAt,
	}
}

// HasPassword reports whether the account can use the password login path.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

func validLanguage(v string) bool {
	for _, l := range Languages {
		if v == l {
			return true
		}
	}
	return false
}

func validPrivacy(v string) bool {
	for _, p := range Privacies {
		if v == p {
			return true
		}
	}
	return false
}
