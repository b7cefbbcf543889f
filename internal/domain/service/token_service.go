package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind discriminates the two token flavors carried in the "kind" claim.
type TokenKind string

const (
	// TokenKindAccess is the short-lived per-request credential.
	TokenKindAccess TokenKind = "access"
	// TokenKindRefresh is the long-lived credential exchanged for a new pair.
	TokenKindRefresh TokenKind = "refresh"
)

// Typed verification failures. Malformed input never panics; it surfaces
// as ErrTokenInvalid.
var (
	// ErrTokenInvalid is returned when the signature does not verify or the
	// token cannot be parsed at all.
	ErrTokenInvalid = errors.New("token signature is invalid or malformed")
	// ErrTokenExpired is returned when the token verified but its expiry has passed.
	ErrTokenExpired = errors.New("token has expired")
	// ErrTokenWrongKind is returned when the encoded kind disagrees with the expected one.
	ErrTokenWrongKind = errors.New("token kind mismatch")
)

// Claims defines the custom claims carried by both token kinds.
type Claims struct {
	UserID uuid.UUID
	Kind   TokenKind
	jwt.RegisteredClaims
}

// TokenService mints and verifies the signed access/refresh tokens.
// Implementations are pure functions of their input and the configured
// signing keys; they keep no state between calls.
type TokenService interface {
	// GenerateTokenPair mints a fresh access + refresh token for a subject.
	GenerateTokenPair(userID uuid.UUID) (accessToken string, refreshToken string, err error)

	// ValidateToken verifies signature, expiry and kind, returning the
	// decoded claims. Failures map onto ErrTokenInvalid, ErrTokenExpired
	// and ErrTokenWrongKind.
	ValidateToken(tokenString string, expected TokenKind) (*Claims, error)

	// AccessTokenDuration returns the configured access token lifetime.
	AccessTokenDuration() time.Duration

	// RefreshTokenDuration returns the configured refresh token lifetime.
	RefreshTokenDuration() time.Duration
}
