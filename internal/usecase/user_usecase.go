// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"vidstream/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// RegisterInput defines the data required to register a new user.
// The avatar and cover image arrive as paths to files the delivery layer
// already saved to local disk; the usecase owns uploading them.
type RegisterInput struct {
	FullName            string
	Email               string
	Username            string
	Password            string
	AvatarLocalPath     string
	CoverImageLocalPath string
}

// LoginInput defines the data required for a user to log in.
// Either Username or Email identifies the account.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// RefreshInput carries the refresh token presented by the client.
type RefreshInput struct {
	RefreshToken string
}

// LogoutInput identifies the session owner to log out.
type LogoutInput struct {
	UserID uuid.UUID
}

// --- Output DTOs ---

// RegisterOutput returns the newly created user's public information.
type RegisterOutput struct {
	User *entity.PublicUser
}

// LoginOutput returns the generated token pair after a successful login.
type LoginOutput struct {
	User   *entity.PublicUser
	Tokens entity.TokenPair
}

// RefreshOutput returns the freshly rotated token pair.
type RefreshOutput struct {
	Tokens entity.TokenPair
}

// UserUsecase defines the interface for user-related business operations.
// This is the contract that the delivery layer (e.g., API handlers) will depend on.
type UserUsecase interface {
	Register(ctx context.Context, input *RegisterInput) (*RegisterOutput, error)
	Login(ctx context.Context, input *LoginInput) (*LoginOutput, error)
	Refresh(ctx context.Context, input *RefreshInput) (*RefreshOutput, error)
	Logout(ctx context.Context, input *LogoutInput) error
}
