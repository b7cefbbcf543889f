package middleware

import (
	"strings"

	domainerrors "vidstream/internal/domain/errors"
	"vidstream/internal/domain/service"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// ContextKeyUserID is where Authenticate stores the verified subject for handlers.
const ContextKeyUserID = "userID"

// AuthMiddleware provides middleware for JWT authentication.
type AuthMiddleware struct {
	tokenSvc service.TokenService
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(tokenSvc service.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc}
}

// Authenticate validates the access token before the request reaches a
// protected handler. The token is read from the Authorization header, with
// the accessToken cookie as a fallback for browser clients. A refresh token
// presented here fails the kind check and is rejected.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenString := extractAccessToken(c)
		if tokenString == "" {
			return errors.Wrap(domainerrors.ErrUnauthorized, "access token is missing")
		}

		claims, err := m.tokenSvc.ValidateToken(tokenString, service.TokenKindAccess)
		if err != nil {
			return errors.Wrap(domainerrors.ErrUnauthorized, "access token verification failed")
		}

		c.Set(ContextKeyUserID, claims.UserID)

		return next(c)
	}
}

func extractAccessToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString != authHeader {
			return tokenString
		}

		return ""
	}

	if cookie, err := c.Cookie("accessToken"); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return ""
}
