package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmfonseca/go-task-hub/internal/api"
	"github.com/dmfonseca/go-task-hub/internal/api/task"
	"github.com/dmfonseca/go-task-hub/internal/types"
)

type MockAdminRepo struct {
	mock.Mock
}

func (m *MockAdminRepo) ListUsers(ctx context.Context, filter types.UserListFilter, page types.Page) ([]types.UserAuth, error) {
	args := m.Called(ctx, filter, page)
	users, _ := args.Get(0).([]types.UserAuth)
	return users, args.Error(1)
}

func (m *MockAdminRepo) CountUsers(ctx context.Context, filter types.UserListFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAdminRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*types.UserAuth)
	return user, args.Error(1)
}

func (m *MockAdminRepo) UpdateUser(ctx context.Context, userID uuid.UUID, update types.AdminUserUpdate) (*types.UserAuth, error) {
	args := m.Called(ctx, userID, update)
	user, _ := args.Get(0).(*types.UserAuth)
	return user, args.Error(1)
}

func (m *MockAdminRepo) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockAdminRepo) UserStats(ctx context.Context) (*types.UserStats, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*types.UserStats)
	return stats, args.Error(1)
}

var _ AdminRepo = (*MockAdminRepo)(nil)

type MockTaskRepo struct {
	mock.Mock
	task.TaskRepo
}

func (m *MockTaskRepo) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTaskRepo) StatusCounts(ctx context.Context, ownerID uuid.UUID) ([]types.StatusCount, error) {
	args := m.Called(ctx, ownerID)
	counts, _ := args.Get(0).([]types.StatusCount)
	return counts, args.Error(1)
}

func (m *MockTaskRepo) Stats(ctx context.Context, ownerID *uuid.UUID) (*types.TaskStats, error) {
	args := m.Called(ctx, ownerID)
	stats, _ := args.Get(0).(*types.TaskStats)
	return stats, args.Error(1)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestAdminService(repo AdminRepo, taskRepo task.TaskRepo) *AdminServiceImpl {
	logger := slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewAdminService(repo, taskRepo, logger)
}

func adminStatus(t *testing.T, err error) int {
	t.Helper()
	var appErr *api.AppError
	require.True(t, errors.As(err, &appErr), "expected an AppError, got %v", err)
	return appErr.Status
}

func TestAdminUpdateUser(t *testing.T) {
	ctx := context.Background()
	actorID := uuid.New()
	targetID := uuid.New()
	adminRole := types.RoleAdmin

	t.Run("SelfModificationRejected", func(t *testing.T) {
		repo := new(MockAdminRepo)
		svc := newTestAdminService(repo, new(MockTaskRepo))

		_, err := svc.UpdateUser(ctx, actorID, actorID, types.AdminUserUpdate{Role: &adminRole})
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, adminStatus(t, err))
		assert.Contains(t, err.Error(), "Admins cannot modify their own admin status.")
		repo.AssertNotCalled(t, "UpdateUser")
	})

	t.Run("EmptyUpdateRejected", func(t *testing.T) {
		repo := new(MockAdminRepo)
		svc := newTestAdminService(repo, new(MockTaskRepo))

		_, err := svc.UpdateUser(ctx, actorID, targetID, types.AdminUserUpdate{})
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, adminStatus(t, err))
		repo.AssertNotCalled(t, "UpdateUser")
	})

	t.Run("PromotesAnotherUser", func(t *testing.T) {
		repo := new(MockAdminRepo)
		svc := newTestAdminService(repo, new(MockTaskRepo))
		update := types.AdminUserUpdate{Role: &adminRole}
		updated := &types.UserAuth{ID: targetID, Role: types.RoleAdmin, IsActive: true}

		repo.On("UpdateUser", ctx, targetID, update).Return(updated, nil)

		user, err := svc.UpdateUser(ctx, actorID, targetID, update)
		require.NoError(t, err)
		assert.Equal(t, types.RoleAdmin, user.Role)
		repo.AssertExpectations(t)
	})
}

func TestAdminDeleteUser(t *testing.T) {
	ctx := context.Background()
	actorID := uuid.New()
	targetID := uuid.New()

	t.Run("SelfDeletionRejected", func(t *testing.T) {
		repo := new(MockAdminRepo)
		svc := newTestAdminService(repo, new(MockTaskRepo))

		_, err := svc.DeleteUser(ctx, actorID, actorID)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, adminStatus(t, err))
		assert.Contains(t, err.Error(), "Admins cannot delete their own account.")
		repo.AssertNotCalled(t, "DeleteUser")
	})

	t.Run("ReportsCascadedTaskCount", func(t *testing.T) {
		repo := new(MockAdminRepo)
		taskRepo := new(MockTaskRepo)
		svc := newTestAdminService(repo, taskRepo)

		taskRepo.On("CountByOwner", ctx, targetID).Return(int64(7), nil)
		repo.On("DeleteUser", ctx, targetID).Return(nil)

		result, err := svc.DeleteUser(ctx, actorID, targetID)
		require.NoError(t, err)
		assert.Equal(t, int64(7), result.DeletedTasks)
		repo.AssertExpectations(t)
	})

	t.Run("MissingUser", func(t *testing.T) {
		repo := new(MockAdminRepo)
		taskRepo := new(MockTaskRepo)
		svc := newTestAdminService(repo, taskRepo)

		taskRepo.On("CountByOwner", ctx, targetID).Return(int64(0), nil)
		repo.On("DeleteUser", ctx, targetID).Return(api.ErrNotFound)

		_, err := svc.DeleteUser(ctx, actorID, targetID)
		require.Error(t, err)
		assert.ErrorIs(t, err, api.ErrNotFound)
	})
}

func TestPlatformStats(t *testing.T) {
	repo := new(MockAdminRepo)
	taskRepo := new(MockTaskRepo)
	svc := newTestAdminService(repo, taskRepo)

	repo.On("UserStats", mock.Anything).Return(&types.UserStats{Total: 10, Active: 8, Admins: 1, Users: 9}, nil)
	taskRepo.On("Stats", mock.Anything, (*uuid.UUID)(nil)).Return(&types.TaskStats{Total: 55}, nil)

	stats, err := svc.PlatformStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.Users.Total)
	assert.Equal(t, int64(55), stats.Tasks.Total)
}

func TestAdminListUsers(t *testing.T) {
	repo := new(MockAdminRepo)
	svc := newTestAdminService(repo, new(MockTaskRepo))
	page := types.Page{Number: 2, Limit: 5}
	filter := types.UserListFilter{Role: types.RoleUser}

	repo.On("ListUsers", mock.Anything, filter, page).Return([]types.UserAuth{{ID: uuid.New()}}, nil)
	repo.On("CountUsers", mock.Anything, filter).Return(int64(11), nil)

	users, pagination, err := svc.ListUsers(context.Background(), filter, page)
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, int64(11), pagination.Total)
	assert.Equal(t, 3, pagination.Pages)
	assert.True(t, pagination.HasPrev)
	assert.True(t, pagination.HasNext)
}
