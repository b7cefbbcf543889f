// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"vidstream/config"
	"vidstream/internal/domain/service"
)

// jwtService is a concrete implementation of the TokenService interface using the JWT standard.
// Access and refresh tokens are signed with separate secrets, so a leaked
// refresh secret never validates access tokens and vice versa.
type jwtService struct {
	accessSecret  string
	refreshSecret string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewJWTService is the constructor for jwtService.
// It rejects missing secrets and an access TTL that is not strictly shorter
// than the refresh TTL.
func NewJWTService(cfg *config.Config) (service.TokenService, error) {
	if cfg.SecretKey.Access == "" || cfg.SecretKey.Refresh == "" {
		return nil, errors.New("jwt secrets must be provided")
	}

	accessTTL := cfg.Auth.AccessTokenTTL
	refreshTTL := cfg.Auth.RefreshTokenTTL
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("jwt token TTLs must be positive")
	}
	if accessTTL >= refreshTTL {
		return nil, errors.Errorf("access token TTL (%s) must be shorter than refresh token TTL (%s)", accessTTL, refreshTTL)
	}

	return &jwtService{
		accessSecret:  cfg.SecretKey.Access,
		refreshSecret: cfg.SecretKey.Refresh,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// GenerateTokenPair mints a new access token and refresh token for a given user.
func (s *jwtService) GenerateTokenPair(userID uuid.UUID) (accessToken string, refreshToken string, err error) {
	accessToken, err = s.mint(userID, service.TokenKindAccess)
	if err != nil {
		return "", "", err
	}

	refreshToken, err = s.mint(userID, service.TokenKindRefresh)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

// ValidateToken verifies a token string against the secret for the expected kind.
func (s *jwtService) ValidateToken(tokenString string, expected service.TokenKind) (*service.Claims, error) {
	claims := &service.Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		// Only HMAC is accepted; an attacker must not be able to downgrade
		// to "none" or swap in an asymmetric scheme.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}

		return []byte(s.secretFor(expected)), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Wrap(service.ErrTokenExpired, err.Error())
		}

		return nil, errors.Wrap(service.ErrTokenInvalid, err.Error())
	}

	if !token.Valid {
		return nil, errors.WithStack(service.ErrTokenInvalid)
	}

	if claims.Kind != expected {
		return nil, errors.Wrapf(service.ErrTokenWrongKind, "expected %s, got %s", expected, claims.Kind)
	}

	return claims, nil
}

// AccessTokenDuration returns the configured lifetime for access tokens.
func (s *jwtService) AccessTokenDuration() time.Duration {
	return s.accessTTL
}

// RefreshTokenDuration returns the configured lifetime for refresh tokens.
func (s *jwtService) RefreshTokenDuration() time.Duration {
	return s.refreshTTL
}

func (s *jwtService) secretFor(kind service.TokenKind) string {
	if kind == service.TokenKindRefresh {
		return s.refreshSecret
	}

	return s.accessSecret
}

func (s *jwtService) ttlFor(kind service.TokenKind) time.Duration {
	if kind == service.TokenKindRefresh {
		return s.refreshTTL
	}

	return s.accessTTL
}

// mint is a private helper to create a JWT with the service's claims.
func (s *jwtService) mint(userID uuid.UUID, kind service.TokenKind) (string, error) {
	now := time.Now()
	claims := &service.Claims{
		UserID: userID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttlFor(kind))),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secretFor(kind)))
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}

	return signed, nil
}
