package admin

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"

	"github.com/dmfonseca/go-task-hub/internal/api"
	"github.com/dmfonseca/go-task-hub/internal/api/auth"
	"github.com/dmfonseca/go-task-hub/internal/types"
)

// UpdateUserRequest mirrors the typed admin command; only role and active
// status are mutable through this endpoint.
type UpdateUserRequest types.AdminUserUpdate

func (r UpdateUserRequest) Validate() []api.FieldError {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.By(func(value interface{}) error {
			role, ok := value.(*string)
			if !ok || role == nil {
				return nil
			}
			if *role != types.RoleUser && *role != types.RoleAdmin {
				return fmt.Errorf("Role must be user or admin")
			}
			return nil
		})),
	)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validation.Errors)
	if !ok {
		return []api.FieldError{{Field: "", Message: err.Error()}}
	}
	fields := make([]api.FieldError, 0, len(verrs))
	for field, ferr := range verrs {
		fields = append(fields, api.FieldError{Field: field, Message: ferr.Error()})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return fields
}

type AdminHandler struct {
	adminService AdminService
	logger       *slog.Logger
}

func NewAdminHandler(adminService AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		logger:       logger,
	}
}

func userIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "userID"))
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := types.UserListFilter{
		Role:   q.Get("role"),
		Search: q.Get("search"),
	}
	if v := q.Get("isActive"); v != "" {
		isActive := v == "true"
		filter.IsActive = &isActive
	}
	page := api.ParsePage(r)

	users, pagination, err := h.adminService.ListUsers(r.Context(), filter, page)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "Users retrieved successfully", api.Envelope{
		"users": users,
		"meta":  api.Envelope{"pagination": pagination},
	})
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID.")
		return
	}

	detail, err := h.adminService.GetUser(r.Context(), userID)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "User retrieved successfully", api.Envelope{
		"user":          detail.User,
		"taskCount":     detail.TaskCount,
		"tasksByStatus": detail.TasksByStat,
	})
}

func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actorID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required.")
		return
	}
	userID, err := userIDParam(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID.")
		return
	}

	var req UpdateUserRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if fields := req.Validate(); fields != nil {
		api.HandleError(w, r, api.NewValidationError("Validation failed. Please check your input.", fields))
		return
	}

	user, err := h.adminService.UpdateUser(r.Context(), actorID, userID, types.AdminUserUpdate(req))
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "User updated successfully!", api.Envelope{
		"user": user,
	})
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actorID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required.")
		return
	}
	userID, err := userIDParam(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID.")
		return
	}

	result, err := h.adminService.DeleteUser(r.Context(), actorID, userID)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "User deleted successfully.", api.Envelope{
		"deletedTasks": result.DeletedTasks,
	})
}

func (h *AdminHandler) PlatformStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.PlatformStats(r.Context())
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "Platform statistics retrieved successfully", api.Envelope{
		"stats": stats,
	})
}
