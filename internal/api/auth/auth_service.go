package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/dmfonseca/go-task-hub/config"
	"github.com/dmfonseca/go-task-hub/internal/api"
	"github.com/dmfonseca/go-task-hub/internal/types"
)

const bcryptCost = 12

// All login failures share one message so responses cannot be used to
// enumerate accounts.
const genericLoginFailure = "Invalid email or password."

const (
	failedLoginWindow = 15 * time.Minute
)

// AuthService orchestrates the session lifecycle: registration, login,
// refresh-token rotation, logout and password updates.
type AuthService interface {
	// Register creates a new identity and returns it with a fresh token pair.
	Register(ctx context.Context, name, email, password string) (*types.UserAuth, string, string, error)

	// Login authenticates a user and returns the identity with new tokens.
	Login(ctx context.Context, email, password string) (*types.UserAuth, string, string, error)

	// RefreshSession exchanges a refresh token for a new token pair. The old
	// token is single-use: rotation invalidates it.
	RefreshSession(ctx context.Context, refreshToken string) (string, string, error)

	// Logout clears the stored refresh token. Idempotent.
	Logout(ctx context.Context, userID uuid.UUID) error

	// UpdatePassword rotates the password and re-issues tokens so the caller
	// is not locked out by its own password-change invalidation.
	UpdatePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) (*types.UserAuth, string, string, error)

	// GetUserByID resolves an identity, used by /auth/me and the middleware.
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error)
}

type AuthServiceImpl struct {
	logger          *slog.Logger
	repo            AuthRepo
	jwtCfg          config.JWTConfig
	hashSem         *semaphore.Weighted
	failedLogins    *gocache.Cache
	maxFailedLogins int
}

var _ AuthService = (*AuthServiceImpl)(nil)

func NewAuthService(repo AuthRepo, jwtCfg config.JWTConfig, maxFailedLogins int, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger: logger,
		repo:   repo,
		jwtCfg: jwtCfg,
		// bcrypt is CPU-bound; bound it so a login burst cannot starve the
		// scheduler.
		hashSem:         semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
		failedLogins:    gocache.New(failedLoginWindow, 2*failedLoginWindow),
		maxFailedLogins: maxFailedLogins,
	}
}

func (s *AuthServiceImpl) Register(ctx context.Context, name, email, password string) (*types.UserAuth, string, string, error) {
	hash, err := s.hashPassword(ctx, password)
	if err != nil {
		return nil, "", "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, name, email, hash)
	if err != nil {
		if errors.Is(err, api.ErrConflict) {
			return nil, "", "", api.NewError(http.StatusConflict, "An account with this email already exists.")
		}
		return nil, "", "", err
	}

	accessToken, refreshToken, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, "", "", err
	}

	s.logger.InfoContext(ctx, "New user registered", slog.String("email", user.Email))
	return user, accessToken, refreshToken, nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*types.UserAuth, string, string, error) {
	if s.tooManyFailures(email) {
		return nil, "", "", api.NewError(http.StatusTooManyRequests, "Too many failed login attempts. Please try again later.")
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			s.recordFailure(ctx, email)
			return nil, "", "", api.NewError(http.StatusUnauthorized, genericLoginFailure)
		}
		return nil, "", "", err
	}

	if !user.IsActive {
		s.recordFailure(ctx, email)
		return nil, "", "", api.NewError(http.StatusUnauthorized, genericLoginFailure)
	}

	if err := s.comparePassword(ctx, user.PasswordHash, password); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.recordFailure(ctx, email)
			return nil, "", "", api.NewError(http.StatusUnauthorized, genericLoginFailure)
		}
		return nil, "", "", fmt.Errorf("compare password: %w", err)
	}

	refreshToken := uuid.NewString()
	refreshExpiry := time.Now().Add(s.jwtCfg.RefreshTokenTTL)
	if err := s.repo.RecordLogin(ctx, user.ID, refreshToken, refreshExpiry); err != nil {
		return nil, "", "", err
	}

	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, "", "", fmt.Errorf("generate access token: %w", err)
	}

	s.failedLogins.Delete(loginKey(email))
	now := time.Now()
	user.LastLogin = &now

	s.logger.InfoContext(ctx, "User logged in", slog.String("email", user.Email))
	return user, accessToken, refreshToken, nil
}

func (s *AuthServiceImpl) RefreshSession(ctx context.Context, refreshToken string) (string, string, error) {
	newRefreshToken := uuid.NewString()
	newExpiry := time.Now().Add(s.jwtCfg.RefreshTokenTTL)

	user, err := s.repo.RotateRefreshToken(ctx, refreshToken, newRefreshToken, newExpiry)
	if err == nil {
		accessToken, err := s.generateAccessToken(user)
		if err != nil {
			return "", "", fmt.Errorf("generate access token: %w", err)
		}
		return accessToken, newRefreshToken, nil
	}
	if !errors.Is(err, api.ErrNotFound) {
		return "", "", err
	}

	// The conditional update matched nothing: either the token is unknown
	// (or already rotated), or it is the current token but expired. Expired
	// tokens are purged, keyed on their value, and are not retryable.
	holder, lookupErr := s.repo.GetUserByRefreshToken(ctx, refreshToken)
	if lookupErr == nil && holder.RefreshTokenExpiry != nil && holder.RefreshTokenExpiry.Before(time.Now()) {
		if clearErr := s.repo.ClearRefreshTokenByValue(ctx, refreshToken); clearErr != nil {
			s.logger.WarnContext(ctx, "Failed to purge expired refresh token", slog.Any("error", clearErr))
		}
		return "", "", api.NewError(http.StatusUnauthorized, "Refresh token expired. Please log in again.")
	}
	if lookupErr != nil && !errors.Is(lookupErr, api.ErrNotFound) {
		return "", "", lookupErr
	}
	return "", "", api.NewError(http.StatusUnauthorized, "Invalid refresh token.")
}

func (s *AuthServiceImpl) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.repo.ClearRefreshToken(ctx, userID)
}

func (s *AuthServiceImpl) UpdatePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) (*types.UserAuth, string, string, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, "", "", err
	}

	if err := s.comparePassword(ctx, user.PasswordHash, currentPassword); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, "", "", api.NewError(http.StatusBadRequest, "Current password is incorrect.")
		}
		return nil, "", "", fmt.Errorf("compare password: %w", err)
	}

	if currentPassword == newPassword {
		return nil, "", "", api.NewError(http.StatusBadRequest, "New password must be different from current password.")
	}

	newHash, err := s.hashPassword(ctx, newPassword)
	if err != nil {
		return nil, "", "", fmt.Errorf("hash password: %w", err)
	}

	refreshToken := uuid.NewString()
	refreshExpiry := time.Now().Add(s.jwtCfg.RefreshTokenTTL)
	if err := s.repo.UpdatePassword(ctx, userID, newHash, refreshToken, refreshExpiry); err != nil {
		return nil, "", "", err
	}

	changedAt := time.Now()
	user.PasswordChangedAt = &changedAt
	user.PasswordHash = newHash

	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, "", "", fmt.Errorf("generate access token: %w", err)
	}

	s.logger.InfoContext(ctx, "Password updated", slog.String("email", user.Email))
	return user, accessToken, refreshToken, nil
}

func (s *AuthServiceImpl) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// issueTokens mints an access token and persists a fresh refresh token,
// overwriting whatever token the identity held before.
func (s *AuthServiceImpl) issueTokens(ctx context.Context, user *types.UserAuth) (string, string, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return "", "", fmt.Errorf("generate access token: %w", err)
	}

	refreshToken := uuid.NewString()
	expiresAt := time.Now().Add(s.jwtCfg.RefreshTokenTTL)
	if err := s.repo.SetRefreshToken(ctx, user.ID, refreshToken, expiresAt); err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func (s *AuthServiceImpl) generateAccessToken(user *types.UserAuth) (string, error) {
	now := time.Now()
	claims := &types.Claims{
		UserID: user.ID.String(),
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.jwtCfg.Issuer,
			Audience:  jwt.ClaimStrings{s.jwtCfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtCfg.AccessTokenTTL)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtCfg.SecretKey))
}

func (s *AuthServiceImpl) hashPassword(ctx context.Context, password string) (string, error) {
	if err := s.hashSem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer s.hashSem.Release(1)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *AuthServiceImpl) comparePassword(ctx context.Context, hash, password string) error {
	if err := s.hashSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.hashSem.Release(1)

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func loginKey(email string) string {
	return "login-failures:" + email
}

func (s *AuthServiceImpl) tooManyFailures(email string) bool {
	if s.maxFailedLogins <= 0 {
		return false
	}
	if count, found := s.failedLogins.Get(loginKey(email)); found {
		return count.(int) >= s.maxFailedLogins
	}
	return false
}

func (s *AuthServiceImpl) recordFailure(ctx context.Context, email string) {
	key := loginKey(email)
	if _, err := s.failedLogins.IncrementInt(key, 1); err != nil {
		s.failedLogins.Set(key, 1, failedLoginWindow)
	}
	s.logger.WarnContext(ctx, "Failed login attempt", slog.String("email", email))
}
