// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"
	"strings"

	deliverycontext "vidstream/internal/delivery/context"
	"vidstream/internal/domain/entity"
	domainerrors "vidstream/internal/domain/errors"
	"vidstream/internal/domain/repository"
	"vidstream/internal/domain/service"
	"vidstream/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// userService implements the UserUsecase interface.
type userService struct {
	txManager    repository.TransactionManager
	userRepo     repository.UserRepository
	hasher       service.PasswordHasher
	tokenService service.TokenService
	mediaStorage service.MediaStorage
	logger       *slog.Logger
}

// UserServiceParams holds dependencies for UserService, injected by Fx.
type UserServiceParams struct {
	fx.In

	TxManager    repository.TransactionManager
	UserRepo     repository.UserRepository
	Hasher       service.PasswordHasher
	TokenService service.TokenService
	MediaStorage service.MediaStorage
	Logger       *slog.Logger
}

// NewUserService is the constructor for userService. It receives all dependencies as interfaces.
func NewUserService(params UserServiceParams) usecase.UserUsecase {
	return &userService{
		txManager:    params.TxManager,
		userRepo:     params.UserRepo,
		hasher:       params.Hasher,
		tokenService: params.TokenService,
		mediaStorage: params.MediaStorage,
		logger:       params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *userService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Register orchestrates the complete user registration process: field
// validation, uniqueness check, media uploads, password hashing and the
// final insert. The created user is re-read so the caller only ever sees
// the public projection.
func (srv *userService) Register(ctx context.Context, input *usecase.RegisterInput) (*usecase.RegisterOutput, error) {
	fullName := strings.TrimSpace(input.FullName)
	email := strings.TrimSpace(input.Email)
	username := strings.ToLower(strings.TrimSpace(input.Username))
	password := input.Password

	if fullName == "" || email == "" || username == "" || strings.TrimSpace(password) == "" {
		return nil, errors.Wrap(domainerrors.ErrValidationFailed, "missing required registration fields")
	}

	srv.log(ctx).Info("Starting registration", slog.String("username", username), slog.String("email", email))

	// Reject early on a known duplicate. The unique constraints on the users
	// table remain the authority when two registrations race.
	if _, err := srv.userRepo.FindByUsernameOrEmail(ctx, username, email); err == nil {
		srv.log(ctx).Warn("Registration rejected, account exists", slog.String("username", username))

		return nil, errors.Wrap(domainerrors.ErrUserAlreadyExists, "registration rejected")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, errors.Wrap(err, "failed to check existing account")
	}

	avatarURL, coverImageURL, err := srv.uploadRegistrationMedia(ctx, input)
	if err != nil {
		return nil, err
	}

	passwordHash, err := srv.hasher.Hash(password)
	if err != nil {
		srv.log(ctx).Error("Failed to hash password during registration", slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to hash password during registration")
	}

	newUser := &entity.User{
		Username:      username,
		Email:         email,
		FullName:      fullName,
		PasswordHash:  passwordHash,
		AvatarURL:     avatarURL,
		CoverImageURL: coverImageURL,
	}

	var createdUser *entity.User
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.UserRepo()

		if err := userRepo.Create(ctx, newUser); err != nil {
			return errors.Wrap(err, "failed to create user during registration")
		}

		// Re-read so the response reflects exactly what was stored,
		// including database-generated fields.
		var findErr error
		createdUser, findErr = userRepo.FindByID(ctx, newUser.ID)
		if findErr != nil {
			return errors.Wrap(findErr, "failed to load created user")
		}

		return nil
	})
	if err != nil {
		srv.log(ctx).Error("Failed to execute registration transaction", slog.String("username", username), slog.Any("error", err))

		return nil, err
	}

	srv.log(ctx).Debug("Registration completed", slog.Any("userID", createdUser.ID))

	return &usecase.RegisterOutput{User: createdUser.PublicView()}, nil
}

// uploadRegistrationMedia uploads the avatar and optional cover image.
// The avatar is mandatory and its upload failure aborts registration.
// A cover image failure only degrades to an empty URL.
func (srv *userService) uploadRegistrationMedia(ctx context.Context, input *usecase.RegisterInput) (string, string, error) {
	if input.AvatarLocalPath == "" {
		return "", "", errors.Wrap(domainerrors.ErrValidationFailed, "avatar file is required")
	}

	avatarURL, err := srv.mediaStorage.Upload(ctx, input.AvatarLocalPath)
	if err != nil {
		srv.log(ctx).Error("Failed to upload avatar", slog.Any("error", err))

		return "", "", errors.Wrap(domainerrors.ErrUploadFailed, "failed to upload avatar")
	}

	var coverImageURL string
	if input.CoverImageLocalPath != "" {
		coverImageURL, err = srv.mediaStorage.Upload(ctx, input.CoverImageLocalPath)
		if err != nil {
			srv.log(ctx).Warn("Failed to upload cover image, continuing without it", slog.Any("error", err))
			coverImageURL = ""
		}
	}

	return avatarURL, coverImageURL, nil
}

// Login orchestrates the user login process.
func (srv *userService) Login(ctx context.Context, input *usecase.LoginInput) (*usecase.LoginOutput, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.TrimSpace(input.Email)

	if username == "" && email == "" {
		return nil, errors.Wrap(domainerrors.ErrValidationFailed, "username or email is required")
	}

	srv.log(ctx).Debug("Starting user login", slog.String("username", username), slog.String("email", email))

	user, err := srv.userRepo.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			srv.log(ctx).Warn("Login failed, account not found", slog.String("username", username))

			return nil, errors.Wrap(domainerrors.ErrUserNotFound, "login failed")
		}

		return nil, errors.Wrap(err, "failed to find user for login")
	}

	// bcrypt is CPU-bound, keep it outside any transaction.
	if !srv.hasher.Check(input.Password, user.PasswordHash) {
		srv.log(ctx).Warn("Login failed, password mismatch", slog.Any("userID", user.ID))

		return nil, errors.Wrap(domainerrors.ErrInvalidCredentials, "login failed")
	}

	tokens, err := srv.issueSession(ctx, user.ID)
	if err != nil {
		srv.log(ctx).Error("Login failed", slog.Any("userID", user.ID), slog.Any("error", err))

		return nil, err
	}

	srv.log(ctx).Debug("User logged in successfully", slog.Any("userID", user.ID))

	return &usecase.LoginOutput{
		User:   user.PublicView(),
		Tokens: *tokens,
	}, nil
}

// issueSession mints a fresh token pair and stores the refresh token as the
// single active one for the user, replacing whatever was there before.
func (srv *userService) issueSession(ctx context.Context, userID uuid.UUID) (*entity.TokenPair, error) {
	accessToken, refreshToken, err := srv.tokenService.GenerateTokenPair(userID)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrTokenGeneration, err.Error())
	}

	if err := srv.userRepo.UpdateRefreshToken(ctx, userID, &refreshToken); err != nil {
		return nil, errors.Wrap(err, "failed to store refresh token")
	}

	return &entity.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Refresh rotates a session: the presented refresh token must verify
// cryptographically and be bit-equal to the stored one, then a new pair is
// minted and the new refresh token replaces the old. A verified token that
// no longer matches storage means it was already rotated or revoked, and is
// rejected without touching the stored session.
func (srv *userService) Refresh(ctx context.Context, input *usecase.RefreshInput) (*usecase.RefreshOutput, error) {
	srv.log(ctx).Info("Attempting to refresh session")

	if input.RefreshToken == "" {
		return nil, errors.Wrap(domainerrors.ErrUnauthorized, "refresh token is missing")
	}

	claims, err := srv.tokenService.ValidateToken(input.RefreshToken, service.TokenKindRefresh)
	if err != nil {
		srv.log(ctx).Warn("Refresh rejected, token failed verification", slog.Any("error", err))

		return nil, errors.Wrap(domainerrors.ErrRefreshTokenInvalid, "refresh token verification failed")
	}

	var tokens *entity.TokenPair
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.UserRepo()

		user, err := userRepo.FindByID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return errors.Wrap(domainerrors.ErrRefreshTokenInvalid, "refresh token owner not found")
			}

			return errors.Wrap(err, "failed to find user for refresh")
		}

		// Anti-replay: only the most recently issued refresh token is valid.
		if user.RefreshToken == nil || *user.RefreshToken != input.RefreshToken {
			return errors.Wrap(domainerrors.ErrRefreshTokenReused, "presented token is not the active session token")
		}

		accessToken, refreshToken, err := srv.tokenService.GenerateTokenPair(user.ID)
		if err != nil {
			return errors.Wrap(domainerrors.ErrTokenGeneration, err.Error())
		}

		// The conditional swap is what actually serializes concurrent
		// rotations; the check above only rejects the common replay early.
		if err := userRepo.RotateRefreshToken(ctx, user.ID, input.RefreshToken, refreshToken); err != nil {
			if errors.Is(err, repository.ErrRefreshTokenStale) {
				return errors.Wrap(domainerrors.ErrRefreshTokenReused, "refresh token was rotated concurrently")
			}

			return errors.Wrap(err, "failed to rotate refresh token")
		}

		tokens = &entity.TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
		}

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Failed to refresh session", slog.Any("userID", claims.UserID), slog.Any("error", err))

		return nil, err
	}

	srv.log(ctx).Debug("Session refreshed", slog.Any("userID", claims.UserID))

	return &usecase.RefreshOutput{Tokens: *tokens}, nil
}

// Logout invalidates the user's session by clearing the stored refresh
// token. Logging out an already logged-out user succeeds.
func (srv *userService) Logout(ctx context.Context, input *usecase.LogoutInput) error {
	srv.log(ctx).Info("Attempting to log out", slog.Any("userID", input.UserID))

	if err := srv.userRepo.UpdateRefreshToken(ctx, input.UserID, nil); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return errors.Wrap(domainerrors.ErrUserNotFound, "logout failed")
		}

		srv.log(ctx).Error("Failed to clear refresh token", slog.Any("userID", input.UserID), slog.Any("error", err))

		return errors.Wrap(err, "failed to clear refresh token")
	}

	srv.log(ctx).Info("Successfully logged out", slog.Any("userID", input.UserID))

	return nil
}
