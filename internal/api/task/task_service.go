package task

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmfonseca/go-task-hub/internal/api"
	"github.com/dmfonseca/go-task-hub/internal/types"
)

// Caller identifies the authenticated identity acting on tasks. Admins may
// act on any task; everyone else only on their own.
type Caller struct {
	ID   uuid.UUID
	Role string
}

func (c Caller) isAdmin() bool {
	return c.Role == types.RoleAdmin
}

type TaskService interface {
	Create(ctx context.Context, caller Caller, params CreateTaskParams) (*types.Task, error)
	Get(ctx context.Context, caller Caller, taskID uuid.UUID) (*types.Task, error)
	List(ctx context.Context, caller Caller, filter types.TaskListFilter, page types.Page) ([]types.Task, *types.Pagination, error)
	Update(ctx context.Context, caller Caller, taskID uuid.UUID, update types.TaskUpdate) (*types.Task, error)
	Delete(ctx context.Context, caller Caller, taskID uuid.UUID) error
	// ToggleArchive flips the archived flag: archived tasks come back,
	// active tasks are shelved.
	ToggleArchive(ctx context.Context, caller Caller, taskID uuid.UUID) (*types.Task, error)
	Stats(ctx context.Context, caller Caller) (*types.TaskStats, error)
}

type TaskServiceImpl struct {
	logger *slog.Logger
	repo   TaskRepo
}

var _ TaskService = (*TaskServiceImpl)(nil)

func NewTaskService(repo TaskRepo, logger *slog.Logger) *TaskServiceImpl {
	return &TaskServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func (s *TaskServiceImpl) Create(ctx context.Context, caller Caller, params CreateTaskParams) (*types.Task, error) {
	if params.Status == "" {
		params.Status = types.TaskStatusTodo
	}
	if params.Priority == "" {
		params.Priority = types.TaskPriorityMedium
	}

	task, err := s.repo.Create(ctx, caller.ID, params)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Task created",
		slog.String("taskID", task.ID.String()), slog.String("ownerID", caller.ID.String()))
	return task, nil
}

// Get hides other users' tasks behind a 404 rather than a 403 so task IDs
// cannot be probed for existence.
func (s *TaskServiceImpl) Get(ctx context.Context, caller Caller, taskID uuid.UUID) (*types.Task, error) {
	task, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(caller, task) {
		return nil, api.NewError(http.StatusNotFound, "Task not found.")
	}
	return task, nil
}

// List scopes non-admin callers to their own tasks and fetches the page and
// the total concurrently.
func (s *TaskServiceImpl) List(ctx context.Context, caller Caller, filter types.TaskListFilter, page types.Page) ([]types.Task, *types.Pagination, error) {
	if !caller.isAdmin() {
		ownerID := caller.ID
		filter.OwnerID = &ownerID
	}

	var (
		tasks []types.Task
		total int64
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasks, err = s.repo.List(gCtx, filter, page)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.Count(gCtx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	pagination := types.NewPagination(total, page)
	return tasks, &pagination, nil
}

func (s *TaskServiceImpl) Update(ctx context.Context, caller Caller, taskID uuid.UUID, update types.TaskUpdate) (*types.Task, error) {
	if update.Empty() {
		return nil, api.NewError(http.StatusBadRequest, "No fields provided to update.")
	}
	if _, err := s.Get(ctx, caller, taskID); err != nil {
		return nil, err
	}

	task, err := s.repo.Update(ctx, taskID, update)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Task updated", slog.String("taskID", taskID.String()))
	return task, nil
}

func (s *TaskServiceImpl) Delete(ctx context.Context, caller Caller, taskID uuid.UUID) error {
	if _, err := s.Get(ctx, caller, taskID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, taskID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Task deleted", slog.String("taskID", taskID.String()))
	return nil
}

func (s *TaskServiceImpl) ToggleArchive(ctx context.Context, caller Caller, taskID uuid.UUID) (*types.Task, error) {
	task, err := s.Get(ctx, caller, taskID)
	if err != nil {
		return nil, err
	}
	return s.repo.SetArchived(ctx, taskID, !task.IsArchived)
}

func (s *TaskServiceImpl) Stats(ctx context.Context, caller Caller) (*types.TaskStats, error) {
	if caller.isAdmin() {
		return s.repo.Stats(ctx, nil)
	}
	ownerID := caller.ID
	return s.repo.Stats(ctx, &ownerID)
}

func (s *TaskServiceImpl) canAccess(caller Caller, task *types.Task) bool {
	return caller.isAdmin() || task.OwnerID == caller.ID
}
