package task

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmfonseca/go-task-hub/internal/api"
	"github.com/dmfonseca/go-task-hub/internal/api/auth"
	"github.com/dmfonseca/go-task-hub/internal/types"
)

type TaskHandler struct {
	taskService TaskService
	logger      *slog.Logger
}

func NewTaskHandler(taskService TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
	}
}

// callerFrom resolves the acting identity placed in the context by the
// Authenticate middleware.
func callerFrom(r *http.Request) (Caller, bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		return Caller{}, false
	}
	role, _ := auth.GetUserRoleFromContext(r.Context())
	return Caller{ID: userID, Role: role}, true
}

func taskIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "taskID"))
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required.")
		return
	}

	var req CreateTaskRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if fields := req.Validate(); fields != nil {
		api.HandleError(w, r, api.NewValidationError("Validation failed. Please check your input.", fields))
		return
	}

	task, err := h.taskService.Create(r.Context(), caller, CreateTaskParams{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		Tags:        req.Tags,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.SuccessResponse(w, r, http.StatusCreated, "Task created successfully!", api.Envelope{
		"task": task,
	})
}

// ListTasks returns the caller's tasks filtered by the query string. Admins
// see everyone's tasks unless they filter by owner.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required.")
		return
	}

	filter, err := parseTaskFilter(r)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	page := api.ParsePage(r)

	tasks, pagination, err := h.taskService.List(r.Context(), caller, filter, page)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "Tasks retrieved successfully", api.Envelope{
		"tasks": tasks,
		"meta":  api.Envelope{"pagination": pagination},
	})
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required.")
		return
	}
	taskID, err := taskIDParam(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid task ID.")
		return
	}

	task, err := h.taskService.Get(r.Context(), caller, taskID)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "Task retrieved successfully", api.Envelope{
		"task": task,
	})
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required.")
		return
	}
	taskID, err := taskIDParam(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid task ID.")
		return
	}

	var req UpdateTaskRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if fields := req.Validate(); fields != nil {
		api.HandleError(w, r, api.NewValidationError("Validation failed. Please check your input.", fields))
		return
	}

	task, err := h.taskService.Update(r.Context(), caller, taskID, types.TaskUpdate(req))
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "Task updated successfully!", api.Envelope{
		"task": task,
	})
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required.")
		return
	}
	taskID, err := taskIDParam(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid task ID.")
		return
	}

	if err := h.taskService.Delete(r.Context(), caller, taskID); err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "Task deleted successfully.", nil)
}

// ToggleArchive archives an active task or restores an archived one.
func (h *TaskHandler) ToggleArchive(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required.")
		return
	}
	taskID, err := taskIDParam(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid task ID.")
		return
	}

	task, err := h.taskService.ToggleArchive(r.Context(), caller, taskID)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	message := "Task restored successfully."
	if task.IsArchived {
		message = "Task archived successfully."
	}
	api.SuccessResponse(w, r, http.StatusOK, message, api.Envelope{
		"task": task,
	})
}

func (h *TaskHandler) TaskStats(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required.")
		return
	}

	stats, err := h.taskService.Stats(r.Context(), caller)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "Task statistics retrieved successfully", api.Envelope{
		"stats": stats,
	})
}

func parseTaskFilter(r *http.Request) (types.TaskListFilter, error) {
	q := r.URL.Query()
	filter := types.TaskListFilter{
		Status:    q.Get("status"),
		Priority:  q.Get("priority"),
		Tag:       q.Get("tag"),
		Search:    q.Get("search"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}

	if v := q.Get("archived"); v != "" {
		archived := v == "true"
		filter.Archived = &archived
	}
	if v := q.Get("dueBefore"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, api.NewError(http.StatusBadRequest, "dueBefore must be an RFC 3339 timestamp.")
		}
		filter.DueBefore = &t
	}
	if v := q.Get("dueAfter"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, api.NewError(http.StatusBadRequest, "dueAfter must be an RFC 3339 timestamp.")
		}
		filter.DueAfter = &t
	}
	if v := q.Get("ownerId"); v != "" {
		ownerID, err := uuid.Parse(v)
		if err != nil {
			return filter, api.NewError(http.StatusBadRequest, "ownerId must be a valid UUID.")
		}
		filter.OwnerID = &ownerID
	}
	return filter, nil
}
