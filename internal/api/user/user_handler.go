package user

import (
	"log/slog"
	"net/http"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/dmfonseca/go-task-hub/internal/api"
	"github.com/dmfonseca/go-task-hub/internal/api/auth"
)

// UpdateProfileRequest is deliberately narrow: email, role and credentials
// have their own flows.
type UpdateProfileRequest struct {
	Name string `json:"name"`
}

func (r UpdateProfileRequest) Validate() []api.FieldError {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Name,
			validation.Required.Error("Name is required"),
			validation.Length(2, 50).Error("Name must be 2-50 characters"),
		),
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

type UserHandler struct {
	userService UserService
	logger      *slog.Logger
}

func NewUserHandler(userService UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required.")
		return
	}

	profile, err := h.userService.GetProfile(r.Context(), userID)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "Profile retrieved successfully", api.Envelope{
		"user":      profile.User,
		"taskCount": profile.TaskCount,
	})
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required.")
		return
	}

	var req UpdateProfileRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if fields := req.Validate(); fields != nil {
		api.HandleError(w, r, api.NewValidationError("Validation failed. Please check your input.", fields))
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, req.Name)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "Profile updated successfully!", api.Envelope{
		"user": user,
	})
}

// DeactivateAccount disables the caller's own account. Existing access
// tokens die at the middleware on the next request.
func (h *UserHandler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required.")
		return
	}

	if err := h.userService.DeactivateAccount(r.Context(), userID); err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "Your account has been deactivated.", nil)
}
