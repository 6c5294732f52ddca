package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmfonseca/go-task-hub/internal/api"
	"github.com/dmfonseca/go-task-hub/internal/api/task"
	"github.com/dmfonseca/go-task-hub/internal/types"
)

// UserDetail is the admin view of one account: the identity plus its task
// breakdown.
type UserDetail struct {
	User        *types.UserAuth     `json:"user"`
	TaskCount   int64               `json:"taskCount"`
	TasksByStat []types.StatusCount `json:"tasksByStatus"`
}

// PlatformStats is the admin dashboard aggregate.
type PlatformStats struct {
	Users *types.UserStats `json:"users"`
	Tasks *types.TaskStats `json:"tasks"`
}

// DeleteResult reports what a hard delete removed.
type DeleteResult struct {
	DeletedTasks int64 `json:"deletedTasks"`
}

type AdminService interface {
	ListUsers(ctx context.Context, filter types.UserListFilter, page types.Page) ([]types.UserAuth, *types.Pagination, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*UserDetail, error)
	// UpdateUser applies a typed command. Self-modification of role or
	// active status is rejected so an admin cannot lock themselves out.
	UpdateUser(ctx context.Context, actorID, userID uuid.UUID, update types.AdminUserUpdate) (*types.UserAuth, error)
	DeleteUser(ctx context.Context, actorID, userID uuid.UUID) (*DeleteResult, error)
	PlatformStats(ctx context.Context) (*PlatformStats, error)
}

type AdminServiceImpl struct {
	logger   *slog.Logger
	repo     AdminRepo
	taskRepo task.TaskRepo
}

var _ AdminService = (*AdminServiceImpl)(nil)

func NewAdminService(repo AdminRepo, taskRepo task.TaskRepo, logger *slog.Logger) *AdminServiceImpl {
	return &AdminServiceImpl{
		logger:   logger,
		repo:     repo,
		taskRepo: taskRepo,
	}
}

func (s *AdminServiceImpl) ListUsers(ctx context.Context, filter types.UserListFilter, page types.Page) ([]types.UserAuth, *types.Pagination, error) {
	var (
		users []types.UserAuth
		total int64
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.repo.ListUsers(gCtx, filter, page)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.CountUsers(gCtx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	pagination := types.NewPagination(total, page)
	return users, &pagination, nil
}

func (s *AdminServiceImpl) GetUser(ctx context.Context, userID uuid.UUID) (*UserDetail, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		taskCount int64
		byStatus  []types.StatusCount
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		taskCount, err = s.taskRepo.CountByOwner(gCtx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		byStatus, err = s.taskRepo.StatusCounts(gCtx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &UserDetail{User: user, TaskCount: taskCount, TasksByStat: byStatus}, nil
}

func (s *AdminServiceImpl) UpdateUser(ctx context.Context, actorID, userID uuid.UUID, update types.AdminUserUpdate) (*types.UserAuth, error) {
	if update.Empty() {
		return nil, api.NewError(http.StatusBadRequest, "No fields provided to update.")
	}
	if actorID == userID {
		return nil, api.NewError(http.StatusBadRequest, "Admins cannot modify their own admin status.")
	}

	user, err := s.repo.UpdateUser(ctx, userID, update)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "User updated by admin",
		slog.String("actorID", actorID.String()), slog.String("userID", userID.String()))
	return user, nil
}

func (s *AdminServiceImpl) DeleteUser(ctx context.Context, actorID, userID uuid.UUID) (*DeleteResult, error) {
	if actorID == userID {
		return nil, api.NewError(http.StatusBadRequest, "Admins cannot delete their own account.")
	}

	// Tally first; the foreign key cascade removes the tasks with the row.
	taskCount, err := s.taskRepo.CountByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "User deleted by admin",
		slog.String("actorID", actorID.String()), slog.String("userID", userID.String()),
		slog.Int64("deletedTasks", taskCount))
	return &DeleteResult{DeletedTasks: taskCount}, nil
}

func (s *AdminServiceImpl) PlatformStats(ctx context.Context) (*PlatformStats, error) {
	var (
		userStats *types.UserStats
		taskStats *types.TaskStats
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		userStats, err = s.repo.UserStats(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		taskStats, err = s.taskRepo.Stats(gCtx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &PlatformStats{Users: userStats, Tasks: taskStats}, nil
}
