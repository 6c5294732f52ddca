package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmfonseca/go-task-hub/config"
	"github.com/dmfonseca/go-task-hub/internal/api"
	"github.com/dmfonseca/go-task-hub/internal/types"
)

type MockAuthRepo struct {
	mock.Mock
}

func (m *MockAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*types.UserAuth)
	return user, args.Error(1)
}

func (m *MockAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*types.UserAuth)
	return user, args.Error(1)
}

func (m *MockAuthRepo) GetUserByRefreshToken(ctx context.Context, refreshToken string) (*types.UserAuth, error) {
	args := m.Called(ctx, refreshToken)
	user, _ := args.Get(0).(*types.UserAuth)
	return user, args.Error(1)
}

func (m *MockAuthRepo) CreateUser(ctx context.Context, name, email, passwordHash string) (*types.UserAuth, error) {
	args := m.Called(ctx, name, email, passwordHash)
	user, _ := args.Get(0).(*types.UserAuth)
	return user, args.Error(1)
}

func (m *MockAuthRepo) RecordLogin(ctx context.Context, userID uuid.UUID, refreshToken string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, refreshToken, expiresAt)
	return args.Error(0)
}

func (m *MockAuthRepo) SetRefreshToken(ctx context.Context, userID uuid.UUID, refreshToken string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, refreshToken, expiresAt)
	return args.Error(0)
}

func (m *MockAuthRepo) RotateRefreshToken(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (*types.UserAuth, error) {
	args := m.Called(ctx, oldToken, newToken, expiresAt)
	user, _ := args.Get(0).(*types.UserAuth)
	return user, args.Error(1)
}

func (m *MockAuthRepo) ClearRefreshTokenByValue(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *MockAuthRepo) ClearRefreshToken(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockAuthRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, newHash, refreshToken string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, newHash, refreshToken, expiresAt)
	return args.Error(0)
}

var _ AuthRepo = (*MockAuthRepo)(nil)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		SecretKey:       "test-secret-key-for-unit-tests",
		Issuer:          "task-hub",
		Audience:        "task-hub-api",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}
}

func newTestService(repo AuthRepo) *AuthServiceImpl {
	logger := slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewAuthService(repo, testJWTConfig(), 5, logger)
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

// Test hashes use the minimum cost so the suite stays fast.
func hashFor(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func activeUser(t *testing.T, password string) *types.UserAuth {
	t.Helper()
	return &types.UserAuth{
		ID:           uuid.New(),
		Name:         "Test User",
		Email:        "test@example.com",
		PasswordHash: hashFor(t, password),
		Role:         types.RoleUser,
		IsActive:     true,
	}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var appErr *api.AppError
	require.True(t, errors.As(err, &appErr), "expected an AppError, got %v", err)
	return appErr.Status
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc := newTestService(repo)
		user := activeUser(t, "correct-horse-1A")

		repo.On("GetUserByEmail", ctx, user.Email).Return(user, nil)
		repo.On("RecordLogin", ctx, user.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)

		got, accessToken, refreshToken, err := svc.Login(ctx, user.Email, "correct-horse-1A")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.NotEmpty(t, accessToken)
		assert.NotEmpty(t, refreshToken)
		assert.NotNil(t, got.LastLogin)
		repo.AssertExpectations(t)
	})

	t.Run("UserNotFound", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc := newTestService(repo)

		repo.On("GetUserByEmail", ctx, "nobody@example.com").Return(nil, api.ErrNotFound)

		_, _, _, err := svc.Login(ctx, "nobody@example.com", "whatever1A")
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
		assert.Contains(t, err.Error(), genericLoginFailure)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc := newTestService(repo)
		user := activeUser(t, "correct-horse-1A")

		repo.On("GetUserByEmail", ctx, user.Email).Return(user, nil)

		_, _, _, err := svc.Login(ctx, user.Email, "wrong-password-1A")
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
		assert.Contains(t, err.Error(), genericLoginFailure)
	})

	t.Run("InactiveAccountGetsSameMessage", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc := newTestService(repo)
		user := activeUser(t, "correct-horse-1A")
		user.IsActive = false

		repo.On("GetUserByEmail", ctx, user.Email).Return(user, nil)

		_, _, _, err := svc.Login(ctx, user.Email, "correct-horse-1A")
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
		assert.Contains(t, err.Error(), genericLoginFailure)
	})

	t.Run("ThrottledAfterRepeatedFailures", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc := newTestService(repo)

		repo.On("GetUserByEmail", ctx, "brute@example.com").Return(nil, api.ErrNotFound)

		for i := 0; i < 5; i++ {
			_, _, _, err := svc.Login(ctx, "brute@example.com", "guess1A")
			require.Error(t, err)
			assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
		}

		_, _, _, err := svc.Login(ctx, "brute@example.com", "guess1A")
		require.Error(t, err)
		assert.Equal(t, http.StatusTooManyRequests, statusOf(t, err))
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc := newTestService(repo)
		created := activeUser(t, "ValidPass1")

		repo.On("CreateUser", ctx, "Test User", "test@example.com", mock.AnythingOfType("string")).Return(created, nil)
		repo.On("SetRefreshToken", ctx, created.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)

		user, accessToken, refreshToken, err := svc.Register(ctx, "Test User", "test@example.com", "ValidPass1")
		require.NoError(t, err)
		assert.Equal(t, created.ID, user.ID)
		assert.NotEmpty(t, accessToken)
		assert.NotEmpty(t, refreshToken)
		repo.AssertExpectations(t)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc := newTestService(repo)

		repo.On("CreateUser", ctx, "Test User", "test@example.com", mock.AnythingOfType("string")).Return(nil, api.ErrConflict)

		_, _, _, err := svc.Register(ctx, "Test User", "test@example.com", "ValidPass1")
		require.Error(t, err)
		assert.Equal(t, http.StatusConflict, statusOf(t, err))
	})
}

func TestRefreshSession(t *testing.T) {
	ctx := context.Background()

	t.Run("RotationSucceeds", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc := newTestService(repo)
		user := activeUser(t, "ValidPass1")
		oldToken := uuid.NewString()

		repo.On("RotateRefreshToken", ctx, oldToken, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(user, nil)

		accessToken, newToken, err := svc.RefreshSession(ctx, oldToken)
		require.NoError(t, err)
		assert.NotEmpty(t, accessToken)
		assert.NotEmpty(t, newToken)
		assert.NotEqual(t, oldToken, newToken)

		// The minted access token carries the expected identity.
		claims := &types.Claims{}
		_, err = jwt.ParseWithClaims(accessToken, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(testJWTConfig().SecretKey), nil
		})
		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), claims.Subject)
		assert.Equal(t, user.Email, claims.Email)
	})

	t.Run("UnknownTokenIsRejected", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc := newTestService(repo)
		token := uuid.NewString()

		repo.On("RotateRefreshToken", ctx, token, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil, api.ErrNotFound)
		repo.On("GetUserByRefreshToken", ctx, token).Return(nil, api.ErrNotFound)

		_, _, err := svc.RefreshSession(ctx, token)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
		assert.Contains(t, err.Error(), "Invalid refresh token.")
	})

	t.Run("ExpiredTokenIsPurged", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc := newTestService(repo)
		token := uuid.NewString()
		expired := time.Now().Add(-time.Hour)
		holder := activeUser(t, "ValidPass1")
		holder.RefreshToken = &token
		holder.RefreshTokenExpiry = &expired

		repo.On("RotateRefreshToken", ctx, token, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil, api.ErrNotFound)
		repo.On("GetUserByRefreshToken", ctx, token).Return(holder, nil)
		repo.On("ClearRefreshTokenByValue", ctx, token).Return(nil)

		_, _, err := svc.RefreshSession(ctx, token)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
		assert.Contains(t, err.Error(), "Refresh token expired. Please log in again.")
		repo.AssertCalled(t, "ClearRefreshTokenByValue", ctx, token)
	})
}

func TestUpdatePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc := newTestService(repo)
		user := activeUser(t, "OldPass1x")

		repo.On("GetUserByID", ctx, user.ID).Return(user, nil)
		repo.On("UpdatePassword", ctx, user.ID, mock.AnythingOfType("string"), mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)

		updated, accessToken, refreshToken, err := svc.UpdatePassword(ctx, user.ID, "OldPass1x", "NewPass1x")
		require.NoError(t, err)
		assert.NotEmpty(t, accessToken)
		assert.NotEmpty(t, refreshToken)
		assert.NotNil(t, updated.PasswordChangedAt)
		repo.AssertExpectations(t)
	})

	t.Run("WrongCurrentPassword", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc := newTestService(repo)
		user := activeUser(t, "OldPass1x")

		repo.On("GetUserByID", ctx, user.ID).Return(user, nil)

		_, _, _, err := svc.UpdatePassword(ctx, user.ID, "wrong-current1A", "NewPass1x")
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
		assert.Contains(t, err.Error(), "Current password is incorrect.")
	})

	t.Run("SamePasswordRejected", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc := newTestService(repo)
		user := activeUser(t, "OldPass1x")

		repo.On("GetUserByID", ctx, user.ID).Return(user, nil)

		_, _, _, err := svc.UpdatePassword(ctx, user.ID, "OldPass1x", "OldPass1x")
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
		assert.Contains(t, err.Error(), "New password must be different from current password.")
	})
}

func TestLogout(t *testing.T) {
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	userID := uuid.New()

	repo.On("ClearRefreshToken", mock.Anything, userID).Return(nil)

	require.NoError(t, svc.Logout(context.Background(), userID))
	// Idempotent: a second logout is still fine.
	require.NoError(t, svc.Logout(context.Background(), userID))
}
