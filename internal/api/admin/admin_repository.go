package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmfonseca/go-task-hub/internal/api"
	"github.com/dmfonseca/go-task-hub/internal/types"
)

// AdminRepo covers privileged reads and writes over the user population.
type AdminRepo interface {
	ListUsers(ctx context.Context, filter types.UserListFilter, page types.Page) ([]types.UserAuth, error)
	CountUsers(ctx context.Context, filter types.UserListFilter) (int64, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, update types.AdminUserUpdate) (*types.UserAuth, error)
	// DeleteUser removes the row; owned tasks go with it via the foreign key.
	DeleteUser(ctx context.Context, userID uuid.UUID) error
	UserStats(ctx context.Context) (*types.UserStats, error)
}

const adminUserColumns = `id, name, email, password_hash, role, is_active,
       refresh_token, refresh_token_expiry, last_login, password_changed_at,
       avatar_initials, created_at, updated_at`

type PostgresAdminRepo struct {
	logger  *slog.Logger
	db      api.DBTX
	timeout time.Duration
}

func NewPostgresAdminRepo(db api.DBTX, timeout time.Duration, logger *slog.Logger) *PostgresAdminRepo {
	return &PostgresAdminRepo{
		logger:  logger,
		db:      db,
		timeout: timeout,
	}
}

var _ AdminRepo = (*PostgresAdminRepo)(nil)

func (r *PostgresAdminRepo) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func scanAdminUser(row pgx.Row) (*types.UserAuth, error) {
	var u types.UserAuth
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive,
		&u.RefreshToken, &u.RefreshTokenExpiry, &u.LastLogin, &u.PasswordChangedAt,
		&u.AvatarInitials, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func mapAdminStoreError(err error, op string) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, api.ErrNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, api.ErrUnavailable)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func buildUserFilter(filter types.UserListFilter) (string, []interface{}) {
	conds := []string{}
	args := []interface{}{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Role != "" {
		conds = append(conds, "role = "+arg(filter.Role))
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = "+arg(*filter.IsActive))
	}
	if filter.Search != "" {
		placeholder := arg("%" + filter.Search + "%")
		conds = append(conds, "(name ILIKE "+placeholder+" OR email ILIKE "+placeholder+")")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *PostgresAdminRepo) ListUsers(ctx context.Context, filter types.UserListFilter, page types.Page) ([]types.UserAuth, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	where, args := buildUserFilter(filter)
	query := `SELECT ` + adminUserColumns + ` FROM users` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapAdminStoreError(err, "list users")
	}
	defer rows.Close()

	users := []types.UserAuth{}
	for rows.Next() {
		user, err := scanAdminUser(rows)
		if err != nil {
			return nil, mapAdminStoreError(err, "list users")
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, mapAdminStoreError(err, "list users")
	}
	return users, nil
}

func (r *PostgresAdminRepo) CountUsers(ctx context.Context, filter types.UserListFilter) (int64, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	where, args := buildUserFilter(filter)
	var total int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total)
	if err != nil {
		return 0, mapAdminStoreError(err, "count users")
	}
	return total, nil
}

func (r *PostgresAdminRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx, `SELECT `+adminUserColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanAdminUser(row)
	if err != nil {
		return nil, mapAdminStoreError(err, "get user by id")
	}
	return user, nil
}

// UpdateUser applies only the fields set in the typed command. Deactivation
// also severs the target's session so the refresh token dies with the access.
func (r *PostgresAdminRepo) UpdateUser(ctx context.Context, userID uuid.UUID, update types.AdminUserUpdate) (*types.UserAuth, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	sets := []string{}
	args := []interface{}{userID}

	set := func(column string, v interface{}) {
		args = append(args, v)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}

	if update.Role != nil {
		set("role", *update.Role)
	}
	if update.IsActive != nil {
		set("is_active", *update.IsActive)
		if !*update.IsActive {
			sets = append(sets, "refresh_token = NULL", "refresh_token_expiry = NULL")
		}
	}
	sets = append(sets, "updated_at = now()")

	row := r.db.QueryRow(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+`
	     WHERE id = $1
	     RETURNING `+adminUserColumns,
		args...)
	user, err := scanAdminUser(row)
	if err != nil {
		return nil, mapAdminStoreError(err, "update user")
	}
	return user, nil
}

func (r *PostgresAdminRepo) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return mapAdminStoreError(err, "delete user")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete user: %w", api.ErrNotFound)
	}
	return nil
}

func (r *PostgresAdminRepo) UserStats(ctx context.Context) (*types.UserStats, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	var stats types.UserStats
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*),
	       COUNT(*) FILTER (WHERE is_active),
	       COUNT(*) FILTER (WHERE role = 'admin'),
	       COUNT(*) FILTER (WHERE role = 'user')
	     FROM users`).Scan(&stats.Total, &stats.Active, &stats.Admins, &stats.Users)
	if err != nil {
		return nil, mapAdminStoreError(err, "user stats")
	}
	return &stats, nil
}
