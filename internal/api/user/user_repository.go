package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmfonseca/go-task-hub/internal/api"
	"github.com/dmfonseca/go-task-hub/internal/types"
)

// UserRepo covers self-service profile reads and writes. Credential fields
// are owned by the auth repository and never touched here.
type UserRepo interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error)
	UpdateName(ctx context.Context, userID uuid.UUID, name string) (*types.UserAuth, error)
	// Deactivate flips is_active off and severs the session in one statement.
	Deactivate(ctx context.Context, userID uuid.UUID) error
}

const profileColumns = `id, name, email, password_hash, role, is_active,
       refresh_token, refresh_token_expiry, last_login, password_changed_at,
       avatar_initials, created_at, updated_at`

type PostgresUserRepo struct {
	logger  *slog.Logger
	db      api.DBTX
	timeout time.Duration
}

func NewPostgresUserRepo(db api.DBTX, timeout time.Duration, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger:  logger,
		db:      db,
		timeout: timeout,
	}
}

var _ UserRepo = (*PostgresUserRepo)(nil)

func (r *PostgresUserRepo) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func scanProfile(row pgx.Row) (*types.UserAuth, error) {
	var u types.UserAuth
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive,
		&u.RefreshToken, &u.RefreshTokenExpiry, &u.LastLogin, &u.PasswordChangedAt,
		&u.AvatarInitials, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func mapProfileStoreError(err error, op string) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, api.ErrNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, api.ErrUnavailable)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanProfile(row)
	if err != nil {
		return nil, mapProfileStoreError(err, "get profile")
	}
	return user, nil
}

// UpdateName also refreshes the derived avatar initials so the two can never
// drift apart.
func (r *PostgresUserRepo) UpdateName(ctx context.Context, userID uuid.UUID, name string) (*types.UserAuth, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	name = strings.TrimSpace(name)
	row := r.db.QueryRow(ctx,
		`UPDATE users
	     SET name = $2, avatar_initials = $3, updated_at = now()
	     WHERE id = $1
	     RETURNING `+profileColumns,
		userID, name, types.AvatarInitialsFor(name))
	user, err := scanProfile(row)
	if err != nil {
		return nil, mapProfileStoreError(err, "update profile name")
	}
	return user, nil
}

func (r *PostgresUserRepo) Deactivate(ctx context.Context, userID uuid.UUID) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx,
		`UPDATE users
	     SET is_active = FALSE, refresh_token = NULL, refresh_token_expiry = NULL, updated_at = now()
	     WHERE id = $1`,
		userID)
	if err != nil {
		return mapProfileStoreError(err, "deactivate account")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deactivate account: %w", api.ErrNotFound)
	}
	return nil
}
