package impl

import (
	"context"
	"sync"
	"testing"

	domainerrors "vidstream/internal/domain/errors"
	"vidstream/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegisterInput() *usecase.RegisterInput {
	return &usecase.RegisterInput{
		FullName:            "Test User",
		Email:               "test@example.com",
		Username:            "TestUser",
		Password:            "Password123!",
		AvatarLocalPath:     "/tmp/avatar.png",
		CoverImageLocalPath: "/tmp/cover.png",
	}
}

func TestUserService_Register_Success(t *testing.T) {
	fixtures := createTestUserService()

	output, err := fixtures.service.Register(context.Background(), validRegisterInput())
	require.NoError(t, err)
	require.NotNil(t, output.User)

	assert.Equal(t, "testuser", output.User.Username, "username should be lower-cased")
	assert.Equal(t, "test@example.com", output.User.Email)
	assert.Equal(t, "https://cdn.test/avatar.png", output.User.AvatarURL)
	assert.Equal(t, "https://cdn.test/cover.png", output.User.CoverImageURL)
	assert.NotEqual(t, uuid.Nil, output.User.ID)

	stored := fixtures.userRepo.stored(output.User.ID)
	require.NotNil(t, stored)
	assert.Equal(t, "hashed:Password123!", stored.PasswordHash, "password must be stored hashed")
	assert.Nil(t, stored.RefreshToken, "registration must not open a session")
}

func TestUserService_Register_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*usecase.RegisterInput)
	}{
		{"empty full name", func(in *usecase.RegisterInput) { in.FullName = "  " }},
		{"empty email", func(in *usecase.RegisterInput) { in.Email = "" }},
		{"empty username", func(in *usecase.RegisterInput) { in.Username = "" }},
		{"whitespace password", func(in *usecase.RegisterInput) { in.Password = "   " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixtures := createTestUserService()
			input := validRegisterInput()
			tt.mutate(input)

			_, err := fixtures.service.Register(context.Background(), input)
			assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
			assert.Empty(t, fixtures.mediaStorage.uploads, "no uploads on rejected input")
		})
	}
}

func TestUserService_Register_DuplicateAccount(t *testing.T) {
	fixtures := createTestUserService()
	seedAccount(fixtures, "testuser", "other@example.com", "pw")

	_, err := fixtures.service.Register(context.Background(), validRegisterInput())
	assert.ErrorIs(t, err, domainerrors.ErrUserAlreadyExists)
}

func TestUserService_Register_AvatarRequired(t *testing.T) {
	fixtures := createTestUserService()
	input := validRegisterInput()
	input.AvatarLocalPath = ""

	_, err := fixtures.service.Register(context.Background(), input)
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
}

func TestUserService_Register_AvatarUploadFailure(t *testing.T) {
	fixtures := createTestUserService()
	fixtures.mediaStorage.failOn["/tmp/avatar.png"] = errBoom

	_, err := fixtures.service.Register(context.Background(), validRegisterInput())
	assert.ErrorIs(t, err, domainerrors.ErrUploadFailed)
}

func TestUserService_Register_CoverUploadFailureDegrades(t *testing.T) {
	fixtures := createTestUserService()
	fixtures.mediaStorage.failOn["/tmp/cover.png"] = errBoom

	output, err := fixtures.service.Register(context.Background(), validRegisterInput())
	require.NoError(t, err, "cover image failure must not abort registration")
	assert.Empty(t, output.User.CoverImageURL)
	assert.Equal(t, "https://cdn.test/avatar.png", output.User.AvatarURL)
}

func TestUserService_Register_WithoutCoverImage(t *testing.T) {
	fixtures := createTestUserService()
	input := validRegisterInput()
	input.CoverImageLocalPath = ""

	output, err := fixtures.service.Register(context.Background(), input)
	require.NoError(t, err)
	assert.Empty(t, output.User.CoverImageURL)
	assert.Equal(t, []string{"/tmp/avatar.png"}, fixtures.mediaStorage.uploads)
}

func TestUserService_Login_Success(t *testing.T) {
	fixtures := createTestUserService()
	seeded := seedAccount(fixtures, "testuser", "test@example.com", "Password123!")

	output, err := fixtures.service.Login(context.Background(), &usecase.LoginInput{
		Username: "TestUser",
		Password: "Password123!",
	})
	require.NoError(t, err)

	assert.Equal(t, seeded.ID, output.User.ID)
	assert.NotEmpty(t, output.Tokens.AccessToken)
	assert.NotEmpty(t, output.Tokens.RefreshToken)

	stored := fixtures.userRepo.stored(seeded.ID)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, output.Tokens.RefreshToken, *stored.RefreshToken, "issued refresh token must become the active one")
}

func TestUserService_Login_ByEmail(t *testing.T) {
	fixtures := createTestUserService()
	seeded := seedAccount(fixtures, "testuser", "test@example.com", "Password123!")

	output, err := fixtures.service.Login(context.Background(), &usecase.LoginInput{
		Email:    "test@example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, output.User.ID)
}

func TestUserService_Login_MissingIdentifier(t *testing.T) {
	fixtures := createTestUserService()

	_, err := fixtures.service.Login(context.Background(), &usecase.LoginInput{Password: "pw"})
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
}

func TestUserService_Login_UserNotFound(t *testing.T) {
	fixtures := createTestUserService()

	_, err := fixtures.service.Login(context.Background(), &usecase.LoginInput{
		Username: "ghost",
		Password: "pw",
	})
	assert.ErrorIs(t, err, domainerrors.ErrUserNotFound)
}

func TestUserService_Login_WrongPassword(t *testing.T) {
	fixtures := createTestUserService()
	seeded := seedAccount(fixtures, "testuser", "test@example.com", "Password123!")

	_, err := fixtures.service.Login(context.Background(), &usecase.LoginInput{
		Username: "testuser",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	assert.Nil(t, fixtures.userRepo.stored(seeded.ID).RefreshToken, "failed login must not open a session")
}

func TestUserService_Login_TokenGenerationFailure(t *testing.T) {
	fixtures := createTestUserService()
	seedAccount(fixtures, "testuser", "test@example.com", "Password123!")
	fixtures.tokenService.generateErr = errBoom

	_, err := fixtures.service.Login(context.Background(), &usecase.LoginInput{
		Username: "testuser",
		Password: "Password123!",
	})
	assert.ErrorIs(t, err, domainerrors.ErrTokenGeneration)
}

func loginSeededUser(t *testing.T, fixtures userServiceFixtures, username, password string) *usecase.LoginOutput {
	t.Helper()
	output, err := fixtures.service.Login(context.Background(), &usecase.LoginInput{
		Username: username,
		Password: password,
	})
	require.NoError(t, err)

	return output
}

func TestUserService_Refresh_Success(t *testing.T) {
	fixtures := createTestUserService()
	seeded := seedAccount(fixtures, "testuser", "test@example.com", "Password123!")
	login := loginSeededUser(t, fixtures, "testuser", "Password123!")

	output, err := fixtures.service.Refresh(context.Background(), &usecase.RefreshInput{
		RefreshToken: login.Tokens.RefreshToken,
	})
	require.NoError(t, err)

	assert.NotEqual(t, login.Tokens.RefreshToken, output.Tokens.RefreshToken, "refresh must rotate the token")
	stored := fixtures.userRepo.stored(seeded.ID)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, output.Tokens.RefreshToken, *stored.RefreshToken)
}

func TestUserService_Refresh_MissingToken(t *testing.T) {
	fixtures := createTestUserService()

	_, err := fixtures.service.Refresh(context.Background(), &usecase.RefreshInput{})
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestUserService_Refresh_InvalidToken(t *testing.T) {
	fixtures := createTestUserService()

	_, err := fixtures.service.Refresh(context.Background(), &usecase.RefreshInput{
		RefreshToken: "not-a-token",
	})
	assert.ErrorIs(t, err, domainerrors.ErrRefreshTokenInvalid)
	assert.Zero(t, fixtures.userRepo.updateCalls, "rejected refresh must not write")
	assert.Zero(t, fixtures.userRepo.rotateCalls, "rejected refresh must not rotate")
}

func TestUserService_Refresh_ExpiredToken(t *testing.T) {
	fixtures := createTestUserService()
	seeded := seedAccount(fixtures, "testuser", "test@example.com", "Password123!")
	login := loginSeededUser(t, fixtures, "testuser", "Password123!")

	// The token is still the stored one and still well signed, only past
	// its lifetime.
	fixtures.tokenService.expireToken(login.Tokens.RefreshToken)
	writesBefore := fixtures.userRepo.updateCalls

	_, err := fixtures.service.Refresh(context.Background(), &usecase.RefreshInput{
		RefreshToken: login.Tokens.RefreshToken,
	})
	assert.ErrorIs(t, err, domainerrors.ErrRefreshTokenInvalid)
	assert.Equal(t, writesBefore, fixtures.userRepo.updateCalls, "expired refresh must not write")
	assert.Zero(t, fixtures.userRepo.rotateCalls, "expired refresh must not rotate")

	stored := fixtures.userRepo.stored(seeded.ID)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, login.Tokens.RefreshToken, *stored.RefreshToken, "stored session must be untouched")
}

func TestUserService_Refresh_AccessTokenRejected(t *testing.T) {
	fixtures := createTestUserService()
	seedAccount(fixtures, "testuser", "test@example.com", "Password123!")
	login := loginSeededUser(t, fixtures, "testuser", "Password123!")

	_, err := fixtures.service.Refresh(context.Background(), &usecase.RefreshInput{
		RefreshToken: login.Tokens.AccessToken,
	})
	assert.ErrorIs(t, err, domainerrors.ErrRefreshTokenInvalid)
}

func TestUserService_Refresh_ReusedTokenRejected(t *testing.T) {
	fixtures := createTestUserService()
	seeded := seedAccount(fixtures, "testuser", "test@example.com", "Password123!")
	login := loginSeededUser(t, fixtures, "testuser", "Password123!")

	first, err := fixtures.service.Refresh(context.Background(), &usecase.RefreshInput{
		RefreshToken: login.Tokens.RefreshToken,
	})
	require.NoError(t, err)

	writesBefore := fixtures.userRepo.updateCalls
	rotationsBefore := fixtures.userRepo.rotateCalls

	// The pre-rotation token still verifies cryptographically but is no
	// longer the stored one.
	_, err = fixtures.service.Refresh(context.Background(), &usecase.RefreshInput{
		RefreshToken: login.Tokens.RefreshToken,
	})
	assert.ErrorIs(t, err, domainerrors.ErrRefreshTokenReused)
	assert.Equal(t, writesBefore, fixtures.userRepo.updateCalls, "rejected refresh must not touch the stored session")
	assert.Equal(t, rotationsBefore, fixtures.userRepo.rotateCalls, "rejected refresh must not attempt a rotation")

	stored := fixtures.userRepo.stored(seeded.ID)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, first.Tokens.RefreshToken, *stored.RefreshToken)
}

func TestUserService_Refresh_ConcurrentRotationSingleWinner(t *testing.T) {
	fixtures := createTestUserService()
	seeded := seedAccount(fixtures, "testuser", "test@example.com", "Password123!")
	login := loginSeededUser(t, fixtures, "testuser", "Password123!")

	// Force the lost-update interleaving: both rotations read the stored
	// session before either one writes.
	var reads sync.WaitGroup
	reads.Add(2)
	fixtures.userRepo.afterFind = func() {
		reads.Done()
		reads.Wait()
	}

	results := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := fixtures.service.Refresh(context.Background(), &usecase.RefreshInput{
				RefreshToken: login.Tokens.RefreshToken,
			})
			results <- err
		}()
	}

	var wins, rejections int
	for range 2 {
		if err := <-results; err != nil {
			assert.ErrorIs(t, err, domainerrors.ErrRefreshTokenReused)
			rejections++
		} else {
			wins++
		}
	}

	assert.Equal(t, 1, wins, "exactly one concurrent rotation may succeed")
	assert.Equal(t, 1, rejections, "the losing rotation must be rejected as a reuse")

	stored := fixtures.userRepo.stored(seeded.ID)
	require.NotNil(t, stored.RefreshToken)
	assert.NotEqual(t, login.Tokens.RefreshToken, *stored.RefreshToken, "the winner's token must be the active one")
}

func TestUserService_Refresh_OwnerMissing(t *testing.T) {
	fixtures := createTestUserService()
	seeded := seedAccount(fixtures, "testuser", "test@example.com", "Password123!")
	login := loginSeededUser(t, fixtures, "testuser", "Password123!")

	// Simulate a deleted account with a token that still verifies.
	delete(fixtures.userRepo.users, seeded.ID)

	_, err := fixtures.service.Refresh(context.Background(), &usecase.RefreshInput{
		RefreshToken: login.Tokens.RefreshToken,
	})
	assert.ErrorIs(t, err, domainerrors.ErrRefreshTokenInvalid)
}

func TestUserService_Logout_ClearsSession(t *testing.T) {
	fixtures := createTestUserService()
	seeded := seedAccount(fixtures, "testuser", "test@example.com", "Password123!")
	login := loginSeededUser(t, fixtures, "testuser", "Password123!")

	err := fixtures.service.Logout(context.Background(), &usecase.LogoutInput{UserID: seeded.ID})
	require.NoError(t, err)
	assert.Nil(t, fixtures.userRepo.stored(seeded.ID).RefreshToken)

	// The old refresh token must no longer rotate.
	_, err = fixtures.service.Refresh(context.Background(), &usecase.RefreshInput{
		RefreshToken: login.Tokens.RefreshToken,
	})
	assert.ErrorIs(t, err, domainerrors.ErrRefreshTokenReused)
}

func TestUserService_Logout_Idempotent(t *testing.T) {
	fixtures := createTestUserService()
	seeded := seedAccount(fixtures, "testuser", "test@example.com", "Password123!")

	require.NoError(t, fixtures.service.Logout(context.Background(), &usecase.LogoutInput{UserID: seeded.ID}))
	require.NoError(t, fixtures.service.Logout(context.Background(), &usecase.LogoutInput{UserID: seeded.ID}),
		"logging out an already logged-out user must succeed")
}

func TestUserService_Logout_UnknownUser(t *testing.T) {
	fixtures := createTestUserService()

	err := fixtures.service.Logout(context.Background(), &usecase.LogoutInput{UserID: uuid.New()})
	assert.ErrorIs(t, err, domainerrors.ErrUserNotFound)
}

func TestUserService_Logout_RepositoryFailure(t *testing.T) {
	fixtures := createTestUserService()
	seeded := seedAccount(fixtures, "testuser", "test@example.com", "Password123!")
	fixtures.userRepo.updateErr = errors.Wrap(errBoom, "write failed")

	err := fixtures.service.Logout(context.Background(), &usecase.LogoutInput{UserID: seeded.ID})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domainerrors.ErrUserNotFound)
}
