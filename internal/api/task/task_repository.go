package task

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
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmfonseca/go-task-hub/internal/api"
	"github.com/dmfonseca/go-task-hub/internal/types"
)

// CreateTaskParams carries the validated fields for a new task.
type CreateTaskParams struct {
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     *time.Time
	Tags        []string
}

// TaskRepo owns all task persistence. List and Count are split so the service
// can run them concurrently against the same filter.
type TaskRepo interface {
	Create(ctx context.Context, ownerID uuid.UUID, params CreateTaskParams) (*types.Task, error)
	GetByID(ctx context.Context, taskID uuid.UUID) (*types.Task, error)
	List(ctx context.Context, filter types.TaskListFilter, page types.Page) ([]types.Task, error)
	Count(ctx context.Context, filter types.TaskListFilter) (int64, error)
	Update(ctx context.Context, taskID uuid.UUID, update types.TaskUpdate) (*types.Task, error)
	Delete(ctx context.Context, taskID uuid.UUID) error
	SetArchived(ctx context.Context, taskID uuid.UUID, archived bool) (*types.Task, error)
	// Stats aggregates the unarchived population; a nil ownerID means the
	// whole platform.
	Stats(ctx context.Context, ownerID *uuid.UUID) (*types.TaskStats, error)
	StatusCounts(ctx context.Context, ownerID uuid.UUID) ([]types.StatusCount, error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
}

const taskColumns = `t.id, t.title, t.description, t.status, t.priority, t.due_date,
       t.tags, t.owner_id, t.is_archived, t.created_at, t.updated_at,
       u.name, u.email, u.avatar_initials`

// Whitelisted sort keys; anything else falls back to creation time.
var taskSortColumns = map[string]string{
	"createdAt": "t.created_at",
	"updatedAt": "t.updated_at",
	"dueDate":   "t.due_date",
	"title":     "t.title",
	"status":    "t.status",
	"priority":  "t.priority",
}

type PostgresTaskRepo struct {
	logger  *slog.Logger
	db      api.DBTX
	timeout time.Duration
}

func NewPostgresTaskRepo(db api.DBTX, timeout time.Duration, logger *slog.Logger) *PostgresTaskRepo {
	return &PostgresTaskRepo{
		logger:  logger,
		db:      db,
		timeout: timeout,
	}
}

var _ TaskRepo = (*PostgresTaskRepo)(nil)

func (r *PostgresTaskRepo) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func scanTask(row pgx.Row) (*types.Task, error) {
	var t types.Task
	var owner types.TaskOwner
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.DueDate,
		&t.Tags, &t.OwnerID, &t.IsArchived, &t.CreatedAt, &t.UpdatedAt,
		&owner.Name, &owner.Email, &owner.AvatarInitials)
	if err != nil {
		return nil, err
	}
	owner.ID = t.OwnerID
	t.Owner = &owner
	if t.Tags == nil {
		t.Tags = []string{}
	}
	t.IsOverdue = t.Overdue(time.Now())
	return &t, nil
}

func mapTaskStoreError(err error, op string) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, api.ErrNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, api.ErrUnavailable)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23514" {
		return fmt.Errorf("%s: %w", op, api.ErrValidation)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *PostgresTaskRepo) Create(ctx context.Context, ownerID uuid.UUID, params CreateTaskParams) (*types.Task, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if params.Tags == nil {
		params.Tags = []string{}
	}
	row := r.db.QueryRow(ctx,
		`WITH inserted AS (
	         INSERT INTO tasks (title, description, status, priority, due_date, tags, owner_id)
	         VALUES ($1, $2, $3, $4, $5, $6, $7)
	         RETURNING *
	     )
	     SELECT `+taskColumns+`
	     FROM inserted t JOIN users u ON u.id = t.owner_id`,
		strings.TrimSpace(params.Title), params.Description, params.Status,
		params.Priority, params.DueDate, params.Tags, ownerID)
	task, err := scanTask(row)
	if err != nil {
		return nil, mapTaskStoreError(err, "create task")
	}
	return task, nil
}

func (r *PostgresTaskRepo) GetByID(ctx context.Context, taskID uuid.UUID) (*types.Task, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx,
		`SELECT `+taskColumns+`
	     FROM tasks t JOIN users u ON u.id = t.owner_id
	     WHERE t.id = $1`, taskID)
	task, err := scanTask(row)
	if err != nil {
		return nil, mapTaskStoreError(err, "get task by id")
	}
	return task, nil
}

// buildTaskFilter renders the WHERE clause for a filter. Archived defaults to
// false so archived tasks only surface when asked for.
func buildTaskFilter(filter types.TaskListFilter) (string, []interface{}) {
	conds := []string{}
	args := []interface{}{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.OwnerID != nil {
		conds = append(conds, "t.owner_id = "+arg(*filter.OwnerID))
	}
	if filter.Status != "" {
		conds = append(conds, "t.status = "+arg(filter.Status))
	}
	if filter.Priority != "" {
		conds = append(conds, "t.priority = "+arg(filter.Priority))
	}
	if filter.Tag != "" {
		conds = append(conds, arg(filter.Tag)+" = ANY(t.tags)")
	}
	if filter.Search != "" {
		conds = append(conds,
			"to_tsvector('english', t.title || ' ' || t.description) @@ plainto_tsquery('english', "+arg(filter.Search)+")")
	}
	if filter.Archived != nil {
		conds = append(conds, "t.is_archived = "+arg(*filter.Archived))
	} else {
		conds = append(conds, "t.is_archived = FALSE")
	}
	if filter.DueBefore != nil {
		conds = append(conds, "t.due_date <= "+arg(*filter.DueBefore))
	}
	if filter.DueAfter != nil {
		conds = append(conds, "t.due_date >= "+arg(*filter.DueAfter))
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

func taskOrderBy(filter types.TaskListFilter) string {
	column, ok := taskSortColumns[filter.SortBy]
	if !ok {
		column = "t.created_at"
	}
	direction := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		direction = "ASC"
	}
	return " ORDER BY " + column + " " + direction + ", t.id"
}

func (r *PostgresTaskRepo) List(ctx context.Context, filter types.TaskListFilter, page types.Page) ([]types.Task, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	where, args := buildTaskFilter(filter)
	query := `SELECT ` + taskColumns + `
	     FROM tasks t JOIN users u ON u.id = t.owner_id` +
		where + taskOrderBy(filter) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapTaskStoreError(err, "list tasks")
	}
	defer rows.Close()

	tasks := []types.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, mapTaskStoreError(err, "list tasks")
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, mapTaskStoreError(err, "list tasks")
	}
	return tasks, nil
}

func (r *PostgresTaskRepo) Count(ctx context.Context, filter types.TaskListFilter) (int64, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	where, args := buildTaskFilter(filter)
	var total int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tasks t`+where, args...).Scan(&total)
	if err != nil {
		return 0, mapTaskStoreError(err, "count tasks")
	}
	return total, nil
}

func (r *PostgresTaskRepo) Update(ctx context.Context, taskID uuid.UUID, update types.TaskUpdate) (*types.Task, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	sets := []string{}
	args := []interface{}{taskID}

	set := func(column string, v interface{}) {
		args = append(args, v)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}

	if update.Title != nil {
		set("title", strings.TrimSpace(*update.Title))
	}
	if update.Description != nil {
		set("description", *update.Description)
	}
	if update.Status != nil {
		set("status", *update.Status)
	}
	if update.Priority != nil {
		set("priority", *update.Priority)
	}
	if update.DueDate != nil {
		set("due_date", *update.DueDate)
	}
	if update.Tags != nil {
		set("tags", *update.Tags)
	}
	sets = append(sets, "updated_at = now()")

	row := r.db.QueryRow(ctx,
		`WITH updated AS (
	         UPDATE tasks SET `+strings.Join(sets, ", ")+`
	         WHERE id = $1
	         RETURNING *
	     )
	     SELECT `+taskColumns+`
	     FROM updated t JOIN users u ON u.id = t.owner_id`,
		args...)
	task, err := scanTask(row)
	if err != nil {
		return nil, mapTaskStoreError(err, "update task")
	}
	return task, nil
}

func (r *PostgresTaskRepo) Delete(ctx context.Context, taskID uuid.UUID) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID)
	if err != nil {
		return mapTaskStoreError(err, "delete task")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete task: %w", api.ErrNotFound)
	}
	return nil
}

func (r *PostgresTaskRepo) SetArchived(ctx context.Context, taskID uuid.UUID, archived bool) (*types.Task, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx,
		`WITH updated AS (
	         UPDATE tasks SET is_archived = $2, updated_at = now()
	         WHERE id = $1
	         RETURNING *
	     )
	     SELECT `+taskColumns+`
	     FROM updated t JOIN users u ON u.id = t.owner_id`,
		taskID, archived)
	task, err := scanTask(row)
	if err != nil {
		return nil, mapTaskStoreError(err, "set task archived")
	}
	return task, nil
}

func (r *PostgresTaskRepo) Stats(ctx context.Context, ownerID *uuid.UUID) (*types.TaskStats, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	query := `SELECT COUNT(*),
	       COUNT(*) FILTER (WHERE status = 'todo'),
	       COUNT(*) FILTER (WHERE status = 'in-progress'),
	       COUNT(*) FILTER (WHERE status = 'completed'),
	       COUNT(*) FILTER (WHERE priority = 'high'),
	       COUNT(*) FILTER (WHERE due_date < now() AND status <> 'completed')
	     FROM tasks WHERE is_archived = FALSE`
	args := []interface{}{}
	if ownerID != nil {
		query += ` AND owner_id = $1`
		args = append(args, *ownerID)
	}

	var stats types.TaskStats
	err := r.db.QueryRow(ctx, query, args...).Scan(&stats.Total, &stats.Todo,
		&stats.InProgress, &stats.Completed, &stats.HighPriority, &stats.Overdue)
	if err != nil {
		return nil, mapTaskStoreError(err, "task stats")
	}
	return &stats, nil
}

func (r *PostgresTaskRepo) StatusCounts(ctx context.Context, ownerID uuid.UUID) ([]types.StatusCount, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx,
		`SELECT status, COUNT(*)
	     FROM tasks WHERE owner_id = $1
	     GROUP BY status ORDER BY status`, ownerID)
	if err != nil {
		return nil, mapTaskStoreError(err, "task status counts")
	}
	defer rows.Close()

	counts := []types.StatusCount{}
	for rows.Next() {
		var c types.StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, mapTaskStoreError(err, "task status counts")
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapTaskStoreError(err, "task status counts")
	}
	return counts, nil
}

func (r *PostgresTaskRepo) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	var total int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE owner_id = $1`, ownerID).Scan(&total)
	if err != nil {
		return 0, mapTaskStoreError(err, "count tasks by owner")
	}
	return total, nil
}
