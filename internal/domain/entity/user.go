// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// User is the core identity in the system. Usernames are stored lower-cased
// so uniqueness is case-insensitive. RefreshToken holds the single currently
// valid refresh token for the account; nil means no active session.
type User struct {
	ID            uuid.UUID // The unique identifier for the user, immutable after creation.
	Username      string    // Unique handle, always lower-case.
	Email         string    // Unique login email.
	FullName      string    // Display name.
	PasswordHash  string    // Bcrypt hash of the password. Never serialized outward.
	AvatarURL     string    // Public URL of the uploaded avatar image.
	CoverImageURL string    // Public URL of the uploaded cover image; empty when none was supplied.
	RefreshToken  *string   // The currently valid refresh token; nil when logged out.
	CreatedAt     time.Time // Timestamp of account creation.
	UpdatedAt     time.Time // Timestamp of the last modification.
}

// PublicUser is the sanitized view of a User returned by the API.
// It never carries the password hash or the stored refresh token.
type PublicUser struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PublicView strips credentials from the user record.
func (u *User) PublicView() *PublicUser {
	if u == nil {
		return nil
	}

	return &PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
	}
}
