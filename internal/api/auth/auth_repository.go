package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmfonseca/go-task-hub/internal/api"
	"github.com/dmfonseca/go-task-hub/internal/types"
)

// AuthRepo is the credential store: it owns every read and write of user
// credential fields.
type AuthRepo interface {
	GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error)
	GetUserByRefreshToken(ctx context.Context, refreshToken string) (*types.UserAuth, error)
	CreateUser(ctx context.Context, name, email, passwordHash string) (*types.UserAuth, error)
	RecordLogin(ctx context.Context, userID uuid.UUID, refreshToken string, expiresAt time.Time) error
	SetRefreshToken(ctx context.Context, userID uuid.UUID, refreshToken string, expiresAt time.Time) error
	// RotateRefreshToken atomically swaps oldToken for newToken, succeeding
	// only if oldToken is the user's current, unexpired token. Exactly one of
	// two concurrent rotations with the same token can win.
	RotateRefreshToken(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (*types.UserAuth, error)
	// ClearRefreshTokenByValue purges a stale token, keyed on the token value
	// so it can never clobber a token issued by a concurrent rotation.
	ClearRefreshTokenByValue(ctx context.Context, refreshToken string) error
	ClearRefreshToken(ctx context.Context, userID uuid.UUID) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, newHash, refreshToken string, expiresAt time.Time) error
}

const userColumns = `id, name, email, password_hash, role, is_active,
       refresh_token, refresh_token_expiry, last_login, password_changed_at,
       avatar_initials, created_at, updated_at`

type PostgresAuthRepo struct {
	logger  *slog.Logger
	db      api.DBTX
	timeout time.Duration
}

func NewPostgresAuthRepo(db api.DBTX, timeout time.Duration, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger:  logger,
		db:      db,
		timeout: timeout,
	}
}

var _ AuthRepo = (*PostgresAuthRepo)(nil)

func (r *PostgresAuthRepo) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func scanUser(row pgx.Row) (*types.UserAuth, error) {
	var u types.UserAuth
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive,
		&u.RefreshToken, &u.RefreshTokenExpiry, &u.LastLogin, &u.PasswordChangedAt,
		&u.AvatarInitials, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func mapStoreError(err error, op string) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, api.ErrNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, api.ErrUnavailable)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, api.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`,
		strings.TrimSpace(email))
	user, err := scanUser(row)
	if err != nil {
		return nil, mapStoreError(err, "get user by email")
	}
	return user, nil
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if err != nil {
		return nil, mapStoreError(err, "get user by id")
	}
	return user, nil
}

func (r *PostgresAuthRepo) GetUserByRefreshToken(ctx context.Context, refreshToken string) (*types.UserAuth, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE refresh_token = $1`, refreshToken)
	user, err := scanUser(row)
	if err != nil {
		return nil, mapStoreError(err, "get user by refresh token")
	}
	return user, nil
}

func (r *PostgresAuthRepo) CreateUser(ctx context.Context, name, email, passwordHash string) (*types.UserAuth, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash, avatar_initials)
         VALUES ($1, lower($2), $3, $4)
         RETURNING `+userColumns,
		strings.TrimSpace(name), strings.TrimSpace(email), passwordHash,
		types.AvatarInitialsFor(name))
	user, err := scanUser(row)
	if err != nil {
		return nil, mapStoreError(err, "create user")
	}
	return user, nil
}

// RecordLogin stores the new refresh token (overwriting any prior one) and
// stamps last_login in a single statement.
func (r *PostgresAuthRepo) RecordLogin(ctx context.Context, userID uuid.UUID, refreshToken string, expiresAt time.Time) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx,
		`UPDATE users
         SET refresh_token = $2, refresh_token_expiry = $3, last_login = now(), updated_at = now()
         WHERE id = $1`,
		userID, refreshToken, expiresAt)
	if err != nil {
		return mapStoreError(err, "record login")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record login: %w", api.ErrNotFound)
	}
	return nil
}

func (r *PostgresAuthRepo) SetRefreshToken(ctx context.Context, userID uuid.UUID, refreshToken string, expiresAt time.Time) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx,
		`UPDATE users
         SET refresh_token = $2, refresh_token_expiry = $3, updated_at = now()
         WHERE id = $1`,
		userID, refreshToken, expiresAt)
	if err != nil {
		return mapStoreError(err, "set refresh token")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set refresh token: %w", api.ErrNotFound)
	}
	return nil
}

func (r *PostgresAuthRepo) RotateRefreshToken(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (*types.UserAuth, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	// Single conditional update keyed on the current token value: the row
	// lock serializes concurrent rotations, the losing call matches no row.
	row := r.db.QueryRow(ctx,
		`UPDATE users
         SET refresh_token = $2, refresh_token_expiry = $3, updated_at = now()
         WHERE refresh_token = $1 AND refresh_token_expiry > now()
         RETURNING `+userColumns,
		oldToken, newToken, expiresAt)
	user, err := scanUser(row)
	if err != nil {
		return nil, mapStoreError(err, "rotate refresh token")
	}
	return user, nil
}

func (r *PostgresAuthRepo) ClearRefreshTokenByValue(ctx context.Context, refreshToken string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx,
		`UPDATE users
         SET refresh_token = NULL, refresh_token_expiry = NULL, updated_at = now()
         WHERE refresh_token = $1`,
		refreshToken)
	if err != nil {
		return mapStoreError(err, "clear refresh token by value")
	}
	return nil
}

// ClearRefreshToken is idempotent: logging out twice is not an error.
func (r *PostgresAuthRepo) ClearRefreshToken(ctx context.Context, userID uuid.UUID) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx,
		`UPDATE users
         SET refresh_token = NULL, refresh_token_expiry = NULL, updated_at = now()
         WHERE id = $1`,
		userID)
	if err != nil {
		return mapStoreError(err, "clear refresh token")
	}
	return nil
}

// UpdatePassword swaps the hash, stamps password_changed_at and installs the
// replacement refresh token in one statement so the caller's new session is
// never torn.
func (r *PostgresAuthRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, newHash, refreshToken string, expiresAt time.Time) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx,
		`UPDATE users
         SET password_hash = $2, password_changed_at = now(),
             refresh_token = $3, refresh_token_expiry = $4, updated_at = now()
         WHERE id = $1`,
		userID, newHash, refreshToken, expiresAt)
	if err != nil {
		return mapStoreError(err, "update password")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update password: %w", api.ErrNotFound)
	}
	return nil
}
