// Package handler contains the HTTP handlers for the application.
package handler

import (
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"vidstream/internal/delivery/http/middleware"
	"vidstream/internal/delivery/http/response"
	"vidstream/internal/domain/entity"
	domainerrors "vidstream/internal/domain/errors"
	"vidstream/internal/domain/service"
	"vidstream/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// UserHandler holds dependencies for user-related handlers.
type UserHandler struct {
	uc       usecase.UserUsecase
	tokenSvc service.TokenService
	logger   *slog.Logger
}

// NewUserHandler is the constructor for UserHandler, injected by Fx.
func NewUserHandler(uc usecase.UserUsecase, tokenSvc service.TokenService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		uc:       uc,
		tokenSvc: tokenSvc,
		logger:   logger,
	}
}

// registerRequest binds the text fields of the multipart registration form.
type registerRequest struct {
	FullName string `form:"fullName" validate:"required"`
	Email    string `form:"email" validate:"required,email"`
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// loginRequest binds the JSON login body. Username and email are
// interchangeable identifiers; at least one must be present.
type loginRequest struct {
	Username string `json:"username" validate:"required_without=Email"`
	Email    string `json:"email" validate:"required_without=Username,omitempty,email"`
	Password string `json:"password" validate:"required"`
}

// refreshRequest binds the JSON refresh body, used when no cookie is present.
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Register handles the multipart user registration request. Text fields and
// the uploaded files are staged to local temp files; the usecase owns moving
// them to media storage.
func (h *UserHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid registration input")
	}

	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	input := &usecase.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	}

	avatarPath, err := h.stageUploadedFile(c, "avatar")
	if err != nil {
		return errors.WithStack(err)
	}
	input.AvatarLocalPath = avatarPath

	coverPath, err := h.stageUploadedFile(c, "coverImage")
	if err != nil {
		removeStagedFile(avatarPath)

		return errors.WithStack(err)
	}
	input.CoverImageLocalPath = coverPath

	output, err := h.uc.Register(c.Request().Context(), input)
	if err != nil {
		// Media storage removes the files it touched; these calls only catch
		// staged files the usecase rejected before uploading.
		removeStagedFile(input.AvatarLocalPath)
		removeStagedFile(input.CoverImageLocalPath)

		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusCreated, output.User, "User registered successfully")
}

// Login handles the user login request and installs the token cookies.
func (h *UserHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid login input")
	}

	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	output, err := h.uc.Login(c.Request().Context(), &usecase.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	h.setTokenCookies(c, output.Tokens)

	return response.Success(c, http.StatusOK, map[string]any{
		"user":         output.User,
		"accessToken":  output.Tokens.AccessToken,
		"refreshToken": output.Tokens.RefreshToken,
	}, "User logged in successfully")
}

// Refresh rotates the session. The refresh token comes from the cookie when
// present, otherwise from the JSON body.
func (h *UserHandler) Refresh(c echo.Context) error {
	refreshToken := ""
	if cookie, err := c.Cookie(refreshTokenCookie); err == nil {
		refreshToken = cookie.Value
	}
	if refreshToken == "" {
		var req refreshRequest
		if err := c.Bind(&req); err == nil {
			refreshToken = req.RefreshToken
		}
	}

	output, err := h.uc.Refresh(c.Request().Context(), &usecase.RefreshInput{
		RefreshToken: refreshToken,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	h.setTokenCookies(c, output.Tokens)

	return response.Success(c, http.StatusOK, output.Tokens, "Access token refreshed")
}

// Logout invalidates the caller's session and clears the token cookies.
// Requires the Authenticate middleware.
func (h *UserHandler) Logout(c echo.Context) error {
	userID, ok := c.Get(middleware.ContextKeyUserID).(uuid.UUID)
	if !ok {
		return errors.Wrap(domainerrors.ErrUnauthorized, "user identity missing from request")
	}

	if err := h.uc.Logout(c.Request().Context(), &usecase.LogoutInput{UserID: userID}); err != nil {
		return errors.WithStack(err)
	}

	h.clearTokenCookies(c)

	return response.Success(c, http.StatusOK, map[string]string{}, "User logged out successfully")
}

// HealthCheck is a simple handler to check if the service is up.
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{"status": "ok"}, "Service is healthy")
}

// stageUploadedFile copies the named multipart file to a local temp file and
// returns its path. A missing file is not an error here; the usecase decides
// which uploads are mandatory.
func (h *UserHandler) stageUploadedFile(c echo.Context, field string) (string, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}

		return "", errors.Wrapf(domainerrors.ErrValidationFailed, "failed to read uploaded %s", field)
	}

	path, err := copyToTempFile(fileHeader)
	if err != nil {
		h.logger.Error("Failed to stage uploaded file", slog.String("field", field), slog.Any("error", err))

		return "", errors.Wrap(domainerrors.ErrUploadFailed, "failed to stage uploaded file")
	}

	return path, nil
}

func copyToTempFile(fileHeader *multipart.FileHeader) (string, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return "", errors.Wrap(err, "failed to open multipart file")
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "upload-*"+filepath.Ext(fileHeader.Filename))
	if err != nil {
		return "", errors.Wrap(err, "failed to create temp file")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())

		return "", errors.Wrap(err, "failed to copy multipart file")
	}

	return dst.Name(), nil
}

func removeStagedFile(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}

func (h *UserHandler) setTokenCookies(c echo.Context, tokens entity.TokenPair) {
	setCookie(c, accessTokenCookie, tokens.AccessToken, h.tokenSvc.AccessTokenDuration())
	setCookie(c, refreshTokenCookie, tokens.RefreshToken, h.tokenSvc.RefreshTokenDuration())
}

func (h *UserHandler) clearTokenCookies(c echo.Context) {
	setCookie(c, accessTokenCookie, "", -time.Second)
	setCookie(c, refreshTokenCookie, "", -time.Second)
}

func setCookie(c echo.Context, name, value string, ttl time.Duration) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}
