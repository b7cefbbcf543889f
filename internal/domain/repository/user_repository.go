// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"vidstream/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrUserNotFound is a domain-specific error returned when a user is not found.
var ErrUserNotFound = errors.New("user not found")

// ErrRefreshTokenStale is returned when a conditional rotation matches no row:
// the stored refresh token changed between read and write, meaning a concurrent
// rotation or a logout got there first.
var ErrRefreshTokenStale = errors.New("refresh token stale")

// UserRepository defines the standard operations for user persistence.
// The application layer will depend on this interface, not the concrete implementation.
type UserRepository interface {
	// FindByID retrieves a single user by their unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// FindByUsernameOrEmail retrieves a single user matching either the
	// username or the email. Empty arguments are ignored.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*entity.User, error)

	// Create persists a new user entity to the storage.
	Create(ctx context.Context, user *entity.User) error

	// UpdateRefreshToken overwrites the stored refresh token for a user.
	// Passing nil clears it (logout). The write touches only the refresh
	// token column so it cannot fail on unrelated field constraints.
	UpdateRefreshToken(ctx context.Context, id uuid.UUID, token *string) error

	// RotateRefreshToken replaces the stored refresh token with next, but
	// only while the stored value still equals current. The compare and the
	// write are a single atomic statement, so of any number of concurrent
	// rotations presenting the same token exactly one succeeds; the rest
	// get ErrRefreshTokenStale.
	RotateRefreshToken(ctx context.Context, id uuid.UUID, current, next string) error
}
