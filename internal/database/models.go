package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the persistence model for an account. Uniqueness of username and
// email is enforced by unique indexes, not application code, so a race
// between two concurrent registrations is closed at the store boundary.
//
// PasswordHash is null exactly when ExternalID is set: provider-originated
// accounts have no local password and cannot use the password login path.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Username     string    `bun:"username,notnull,unique"`
	Email        string    `bun:"email,notnull,unique"`
	PasswordHash *string   `bun:"password_hash"`
	ExternalID   *string   `bun:"external_id,unique,nullzero"`

	DisplayName   string `bun:"display_name,notnull,default:''"`
	Bio           string `bun:"bio,notnull,default:''"`
	ProfilePicURL string `bun:"profile_pic_url,notnull,default:''"`

	// Reset tokens are stored hashed; the plaintext token only ever travels
	// in the reset email.
	ResetTokenHash   *string    `bun:"reset_token_hash"`
	ResetTokenExpiry *time.Time `bun:"reset_token_expiry"`

	Notifications bool   `bun:"notifications,notnull,default:true"`
	EmailUpdates  bool   `bun:"email_updates,notnull,default:true"`
	Language      string `bun:"language,notnull,default:'English'"`
	Privacy       string `bun:"privacy,notnull,default:'Public'"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// WishlistEntry links a user to a catalog game. GameID is the external
// catalog identifier; the games themselves live in another service.
type WishlistEntry struct {
	bun.BaseModel `bun:"table:wishlist_entries,alias:w"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    uuid.UUID `bun:"user_id,notnull,type:uuid,unique:user_game"`
	GameID    string    `bun:"game_id,notnull,unique:user_game"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
