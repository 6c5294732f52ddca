package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmfonseca/go-task-hub/internal/api"
	"github.com/dmfonseca/go-task-hub/internal/types"
)

func newRepoHarness(t *testing.T) (*PostgresAuthRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	logger := slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
	repo := NewPostgresAuthRepo(mockPool, 5*time.Second, logger)
	return repo, mockPool
}

func userRows(user *types.UserAuth) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "name", "email", "password_hash", "role", "is_active",
		"refresh_token", "refresh_token_expiry", "last_login", "password_changed_at",
		"avatar_initials", "created_at", "updated_at",
	}).AddRow(user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.IsActive,
		user.RefreshToken, user.RefreshTokenExpiry, user.LastLogin, user.PasswordChangedAt,
		user.AvatarInitials, user.CreatedAt, user.UpdatedAt)
}

func storedUser() *types.UserAuth {
	return &types.UserAuth{
		ID:             uuid.New(),
		Name:           "Stored User",
		Email:          "stored@example.com",
		PasswordHash:   "$2a$04$notarealhash",
		Role:           types.RoleUser,
		IsActive:       true,
		AvatarInitials: "SU",
		CreatedAt:      time.Now().Add(-24 * time.Hour),
		UpdatedAt:      time.Now(),
	}
}

func TestGetUserByEmail(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		repo, mockPool := newRepoHarness(t)
		user := storedUser()

		mockPool.ExpectQuery(`SELECT (.+) FROM users WHERE lower\(email\) = lower\(\$1\)`).
			WithArgs(user.Email).
			WillReturnRows(userRows(user))

		got, err := repo.GetUserByEmail(context.Background(), user.Email)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, user.Email, got.Email)
		require.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		repo, mockPool := newRepoHarness(t)

		mockPool.ExpectQuery(`SELECT (.+) FROM users WHERE lower\(email\) = lower\(\$1\)`).
			WithArgs("missing@example.com").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetUserByEmail(context.Background(), "missing@example.com")
		require.Error(t, err)
		assert.ErrorIs(t, err, api.ErrNotFound)
	})
}

func TestCreateUser(t *testing.T) {
	t.Run("DuplicateEmailMapsToConflict", func(t *testing.T) {
		repo, mockPool := newRepoHarness(t)

		mockPool.ExpectQuery(`INSERT INTO users`).
			WithArgs("Dup User", "dup@example.com", "hash", "DU").
			WillReturnError(&pgconn.PgError{Code: "23505"})

		_, err := repo.CreateUser(context.Background(), "Dup User", "dup@example.com", "hash")
		require.Error(t, err)
		assert.ErrorIs(t, err, api.ErrConflict)
	})
}

func TestRotateRefreshToken(t *testing.T) {
	t.Run("CurrentTokenWins", func(t *testing.T) {
		repo, mockPool := newRepoHarness(t)
		user := storedUser()
		oldToken := uuid.NewString()
		newToken := uuid.NewString()
		expiry := time.Now().Add(24 * time.Hour)

		mockPool.ExpectQuery(`UPDATE users`).
			WithArgs(oldToken, newToken, expiry).
			WillReturnRows(userRows(user))

		got, err := repo.RotateRefreshToken(context.Background(), oldToken, newToken, expiry)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		require.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("ConsumedTokenMatchesNoRow", func(t *testing.T) {
		repo, mockPool := newRepoHarness(t)
		oldToken := uuid.NewString()
		newToken := uuid.NewString()
		expiry := time.Now().Add(24 * time.Hour)

		// A token that was already rotated away matches no row, which the
		// service reports as an invalid refresh token.
		mockPool.ExpectQuery(`UPDATE users`).
			WithArgs(oldToken, newToken, expiry).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.RotateRefreshToken(context.Background(), oldToken, newToken, expiry)
		require.Error(t, err)
		assert.ErrorIs(t, err, api.ErrNotFound)
	})
}

func TestClearRefreshToken(t *testing.T) {
	t.Run("IdempotentWhenNothingStored", func(t *testing.T) {
		repo, mockPool := newRepoHarness(t)
		userID := uuid.New()

		mockPool.ExpectExec(`UPDATE users`).
			WithArgs(userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		require.NoError(t, repo.ClearRefreshToken(context.Background(), userID))
		require.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestRecordLogin(t *testing.T) {
	t.Run("MissingUser", func(t *testing.T) {
		repo, mockPool := newRepoHarness(t)
		userID := uuid.New()
		token := uuid.NewString()
		expiry := time.Now().Add(24 * time.Hour)

		mockPool.ExpectExec(`UPDATE users`).
			WithArgs(userID, token, expiry).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.RecordLogin(context.Background(), userID, token, expiry)
		require.Error(t, err)
		assert.ErrorIs(t, err, api.ErrNotFound)
	})
}
