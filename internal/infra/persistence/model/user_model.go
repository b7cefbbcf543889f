package model

import (
	"time"

	"github.com/google/uuid"
)

// UserModel mirrors the 'users' table. PostgreSQL generates UUIDs via uuid_generate_v7().
// Username and Email carry unique indexes; usernames are lower-cased before
// they reach this layer, which makes the username uniqueness case-insensitive.
// RefreshToken is the single currently valid refresh token for the account
// and is NULL when the user is logged out.
type UserModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	Username      string    `gorm:"type:varchar(100);unique;not null"`
	Email         string    `gorm:"type:varchar(255);unique;not null"`
	FullName      string    `gorm:"type:varchar(100);not null"`
	PasswordHash  string    `gorm:"type:varchar(255);not null"`
	AvatarURL     string    `gorm:"type:varchar(512);not null"`
	CoverImageURL string    `gorm:"type:varchar(512)"`
	RefreshToken  *string   `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName explicitly sets the table name for GORM.
func (UserModel) TableName() string {
	return "users"
}
