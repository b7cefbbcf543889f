package impl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"vidstream/internal/domain/entity"
	"vidstream/internal/domain/repository"
	"vidstream/internal/domain/service"
	"vidstream/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// In-memory fakes standing in for the persistence and crypto layers.

type fakeUserRepo struct {
	mu sync.Mutex

	users map[uuid.UUID]*entity.User

	findErr     error
	createErr   error
	updateErr   error
	updateCalls int
	rotateCalls int

	// afterFind, when set, runs after a successful FindByID with the lock
	// released. Tests use it to pin down read/write interleavings.
	afterFind func()
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*entity.User)}
}

func (r *fakeUserRepo) seed(user *entity.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.users[user.ID] = &copied
}

func (r *fakeUserRepo) stored(id uuid.UUID) *entity.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		copied := *u

		return &copied
	}

	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	if r.findErr != nil {
		r.mu.Unlock()

		return nil, r.findErr
	}
	user, ok := r.users[id]
	if !ok {
		r.mu.Unlock()

		return nil, repository.ErrUserNotFound
	}
	copied := *user
	r.mu.Unlock()

	if r.afterFind != nil {
		r.afterFind()
	}

	return &copied, nil
}

func (r *fakeUserRepo) FindByUsernameOrEmail(_ context.Context, username, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, user := range r.users {
		if (username != "" && user.Username == username) || (email != "" && user.Email == email) {
			copied := *user

			return &copied, nil
		}
	}

	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	r.users[user.ID] = &copied

	return nil
}

func (r *fakeUserRepo) UpdateRefreshToken(_ context.Context, id uuid.UUID, token *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	if r.updateErr != nil {
		return r.updateErr
	}
	user, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if token != nil {
		copied := *token
		user.RefreshToken = &copied
	} else {
		user.RefreshToken = nil
	}

	return nil
}

func (r *fakeUserRepo) RotateRefreshToken(_ context.Context, id uuid.UUID, current, next string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rotateCalls++
	user, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if user.RefreshToken == nil || *user.RefreshToken != current {
		return repository.ErrRefreshTokenStale
	}
	copied := next
	user.RefreshToken = &copied

	return nil
}

type fakeRepoFactory struct {
	userRepo repository.UserRepository
}

func (f *fakeRepoFactory) UserRepo() repository.UserRepository {
	return f.userRepo
}

type fakeTxManager struct {
	factory repository.RepositoryFactory
}

func (m *fakeTxManager) Execute(_ context.Context, fn func(repository.RepositoryFactory) error) error {
	return fn(m.factory)
}

type fakeHasher struct {
	hashErr error
}

func (h *fakeHasher) Hash(password string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}

	return "hashed:" + password, nil
}

func (h *fakeHasher) Check(password, hash string) bool {
	return hash == "hashed:"+password
}

type fakeTokenService struct {
	mu sync.Mutex

	minted      int
	claims      map[string]*service.Claims
	expired     map[string]bool
	generateErr error
}

func newFakeTokenService() *fakeTokenService {
	return &fakeTokenService{
		claims:  make(map[string]*service.Claims),
		expired: make(map[string]bool),
	}
}

// expireToken marks a previously minted token as past its lifetime while
// keeping its signature valid.
func (s *fakeTokenService) expireToken(tokenString string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired[tokenString] = true
}

func (s *fakeTokenService) GenerateTokenPair(userID uuid.UUID) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generateErr != nil {
		return "", "", s.generateErr
	}
	s.minted++
	access := fmt.Sprintf("access-%d", s.minted)
	refresh := fmt.Sprintf("refresh-%d", s.minted)
	s.claims[access] = &service.Claims{UserID: userID, Kind: service.TokenKindAccess}
	s.claims[refresh] = &service.Claims{UserID: userID, Kind: service.TokenKindRefresh}

	return access, refresh, nil
}

func (s *fakeTokenService) ValidateToken(tokenString string, expected service.TokenKind) (*service.Claims, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	claims, ok := s.claims[tokenString]
	if !ok {
		return nil, service.ErrTokenInvalid
	}
	if s.expired[tokenString] {
		return nil, service.ErrTokenExpired
	}
	if claims.Kind != expected {
		return nil, service.ErrTokenWrongKind
	}

	return claims, nil
}

func (s *fakeTokenService) AccessTokenDuration() time.Duration {
	return 15 * time.Minute
}

func (s *fakeTokenService) RefreshTokenDuration() time.Duration {
	return 7 * 24 * time.Hour
}

type fakeMediaStorage struct {
	mu sync.Mutex

	uploads []string
	failOn  map[string]error
}

func newFakeMediaStorage() *fakeMediaStorage {
	return &fakeMediaStorage{failOn: make(map[string]error)}
}

func (s *fakeMediaStorage) Upload(_ context.Context, localPath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failOn[localPath]; ok {
		return "", err
	}
	s.uploads = append(s.uploads, localPath)

	return "https://cdn.test/" + filepath.Base(localPath), nil
}

// userServiceFixtures holds all test dependencies for user service tests.
type userServiceFixtures struct {
	service      usecase.UserUsecase
	userRepo     *fakeUserRepo
	hasher       *fakeHasher
	tokenService *fakeTokenService
	mediaStorage *fakeMediaStorage
}

func createTestUserService() userServiceFixtures {
	userRepo := newFakeUserRepo()
	hasher := &fakeHasher{}
	tokenService := newFakeTokenService()
	mediaStorage := newFakeMediaStorage()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewUserService(UserServiceParams{
		TxManager:    &fakeTxManager{factory: &fakeRepoFactory{userRepo: userRepo}},
		UserRepo:     userRepo,
		Hasher:       hasher,
		TokenService: tokenService,
		MediaStorage: mediaStorage,
		Logger:       logger,
	})

	return userServiceFixtures{
		service:      svc,
		userRepo:     userRepo,
		hasher:       hasher,
		tokenService: tokenService,
		mediaStorage: mediaStorage,
	}
}

func seedAccount(fixtures userServiceFixtures, username, email, password string) *entity.User {
	user := &entity.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		FullName:     "Seeded User",
		PasswordHash: "hashed:" + password,
		AvatarURL:    "https://cdn.test/avatar.png",
		CreatedAt:    time.Now(),
	}
	fixtures.userRepo.seed(user)

	return user
}

var errBoom = errors.New("boom")
