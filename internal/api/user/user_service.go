package user

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmfonseca/go-task-hub/internal/api/task"
	"github.com/dmfonseca/go-task-hub/internal/types"
)

// Profile is the self-service view: the identity plus a task tally.
type Profile struct {
	User      *types.UserAuth `json:"user"`
	TaskCount int64           `json:"taskCount"`
}

type UserService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, name string) (*types.UserAuth, error)
	DeactivateAccount(ctx context.Context, userID uuid.UUID) error
}

type UserServiceImpl struct {
	logger   *slog.Logger
	repo     UserRepo
	taskRepo task.TaskRepo
}

var _ UserService = (*UserServiceImpl)(nil)

func NewUserService(repo UserRepo, taskRepo task.TaskRepo, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		logger:   logger,
		repo:     repo,
		taskRepo: taskRepo,
	}
}

// GetProfile fetches the identity and the task tally concurrently.
func (s *UserServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	var (
		user      *types.UserAuth
		taskCount int64
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.repo.GetByID(gCtx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		taskCount, err = s.taskRepo.CountByOwner(gCtx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Profile{User: user, TaskCount: taskCount}, nil
}

func (s *UserServiceImpl) UpdateProfile(ctx context.Context, userID uuid.UUID, name string) (*types.UserAuth, error) {
	user, err := s.repo.UpdateName(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Profile updated", slog.String("userID", userID.String()))
	return user, nil
}

// DeactivateAccount is the self-service soft delete: tasks survive, the
// session is severed, and only an admin can reactivate the account.
func (s *UserServiceImpl) DeactivateAccount(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Deactivate(ctx, userID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Account deactivated", slog.String("userID", userID.String()))
	return nil
}
