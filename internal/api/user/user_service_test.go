package user

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmfonseca/go-task-hub/internal/api"
	"github.com/dmfonseca/go-task-hub/internal/api/task"
	"github.com/dmfonseca/go-task-hub/internal/types"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) GetByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*types.UserAuth)
	return user, args.Error(1)
}

func (m *MockUserRepo) UpdateName(ctx context.Context, userID uuid.UUID, name string) (*types.UserAuth, error) {
	args := m.Called(ctx, userID, name)
	user, _ := args.Get(0).(*types.UserAuth)
	return user, args.Error(1)
}

func (m *MockUserRepo) Deactivate(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

var _ UserRepo = (*MockUserRepo)(nil)

type MockTaskRepo struct {
	mock.Mock
	task.TaskRepo
}

func (m *MockTaskRepo) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(int64), args.Error(1)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestUserService(repo UserRepo, taskRepo task.TaskRepo) *UserServiceImpl {
	logger := slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewUserService(repo, taskRepo, logger)
}

func TestGetProfile(t *testing.T) {
	userID := uuid.New()

	t.Run("CombinesIdentityAndTaskCount", func(t *testing.T) {
		repo := new(MockUserRepo)
		taskRepo := new(MockTaskRepo)
		svc := newTestUserService(repo, taskRepo)

		repo.On("GetByID", mock.Anything, userID).Return(&types.UserAuth{ID: userID, Name: "Test User"}, nil)
		taskRepo.On("CountByOwner", mock.Anything, userID).Return(int64(4), nil)

		profile, err := svc.GetProfile(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, userID, profile.User.ID)
		assert.Equal(t, int64(4), profile.TaskCount)
	})

	t.Run("MissingUser", func(t *testing.T) {
		repo := new(MockUserRepo)
		taskRepo := new(MockTaskRepo)
		svc := newTestUserService(repo, taskRepo)

		repo.On("GetByID", mock.Anything, userID).Return(nil, api.ErrNotFound)
		taskRepo.On("CountByOwner", mock.Anything, userID).Return(int64(0), nil)

		_, err := svc.GetProfile(context.Background(), userID)
		require.Error(t, err)
		assert.ErrorIs(t, err, api.ErrNotFound)
	})
}

func TestUpdateProfile(t *testing.T) {
	repo := new(MockUserRepo)
	svc := newTestUserService(repo, new(MockTaskRepo))
	userID := uuid.New()

	repo.On("UpdateName", mock.Anything, userID, "Renamed User").
		Return(&types.UserAuth{ID: userID, Name: "Renamed User", AvatarInitials: "RU"}, nil)

	user, err := svc.UpdateProfile(context.Background(), userID, "Renamed User")
	require.NoError(t, err)
	assert.Equal(t, "Renamed User", user.Name)
	assert.Equal(t, "RU", user.AvatarInitials)
}

func TestDeactivateAccount(t *testing.T) {
	repo := new(MockUserRepo)
	svc := newTestUserService(repo, new(MockTaskRepo))
	userID := uuid.New()

	repo.On("Deactivate", mock.Anything, userID).Return(nil)

	require.NoError(t, svc.DeactivateAccount(context.Background(), userID))
	repo.AssertExpectations(t)
}

func TestUpdateProfileRequestValidate(t *testing.T) {
	assert.Nil(t, UpdateProfileRequest{Name: "Valid Name"}.Validate())

	fields := UpdateProfileRequest{Name: ""}.Validate()
	require.NotEmpty(t, fields)
	assert.Equal(t, "name", fields[0].Field)

	fields = UpdateProfileRequest{Name: "x"}.Validate()
	require.NotEmpty(t, fields)
}
