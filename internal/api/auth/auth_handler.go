package auth

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dmfonseca/go-task-hub/app/observability/metrics"
	"github.com/dmfonseca/go-task-hub/internal/api"
)

type AuthHandler struct {
	authService AuthService
	metrics     *metrics.AppMetrics
	logger      *slog.Logger
}

func NewAuthHandler(authService AuthService, appMetrics *metrics.AppMetrics, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		metrics:     appMetrics,
		logger:      logger,
	}
}

func (h *AuthHandler) countAuth(r *http.Request, operation string, failed bool) {
	if h.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("operation", operation))
	h.metrics.AuthRequestsTotal.Add(r.Context(), 1, attrs)
	if failed {
		h.metrics.AuthFailuresTotal.Add(r.Context(), 1, attrs)
	}
}

// Register creates a new identity and responds with a fresh token pair and
// the redacted identity view.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if fields := req.Validate(); fields != nil {
		api.HandleError(w, r, api.NewValidationError("Validation failed. Please check your input.", fields))
		return
	}

	user, accessToken, refreshToken, err := h.authService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.countAuth(r, "register", true)
		api.HandleError(w, r, err)
		return
	}

	h.countAuth(r, "register", false)
	api.SuccessResponse(w, r, http.StatusCreated, "Account created successfully!", api.Envelope{
		"token":        accessToken,
		"refreshToken": refreshToken,
		"user":         user,
	})
}

// Login authenticates a user. All failure modes share one message and status.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if fields := req.Validate(); fields != nil {
		api.HandleError(w, r, api.NewValidationError("Validation failed. Please check your input.", fields))
		return
	}

	user, accessToken, refreshToken, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.countAuth(r, "login", true)
		api.HandleError(w, r, err)
		return
	}

	h.countAuth(r, "login", false)
	api.SuccessResponse(w, r, http.StatusOK, "Login successful!", api.Envelope{
		"token":        accessToken,
		"refreshToken": refreshToken,
		"user":         user,
	})
}

// RefreshSession rotates the refresh token: the presented token is consumed
// and a brand-new pair is returned.
func (h *AuthHandler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Refresh token is required.")
		return
	}

	accessToken, refreshToken, err := h.authService.RefreshSession(r.Context(), req.RefreshToken)
	if err != nil {
		h.countAuth(r, "refresh", true)
		api.HandleError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.TokenRefreshesTotal.Add(r.Context(), 1)
	}
	h.countAuth(r, "refresh", false)
	api.SuccessResponse(w, r, http.StatusOK, "Token refreshed successfully", api.Envelope{
		"token":        accessToken,
		"refreshToken": refreshToken,
	})
}

// Logout clears the caller's refresh token. Safe to call repeatedly.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required.")
		return
	}

	if err := h.authService.Logout(r.Context(), userID); err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "Logged out successfully.", nil)
}

// Me returns the caller's redacted identity.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required.")
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "User retrieved successfully", api.Envelope{
		"user": user,
	})
}

// UpdatePassword rotates the password and re-issues tokens so the caller's
// own session survives the change.
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required.")
		return
	}

	var req UpdatePasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if fields := req.Validate(); fields != nil {
		api.HandleError(w, r, api.NewValidationError("Validation failed. Please check your input.", fields))
		return
	}

	user, accessToken, refreshToken, err := h.authService.UpdatePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.countAuth(r, "update_password", true)
		api.HandleError(w, r, err)
		return
	}

	h.countAuth(r, "update_password", false)
	api.SuccessResponse(w, r, http.StatusOK, "Password updated successfully!", api.Envelope{
		"token":        accessToken,
		"refreshToken": refreshToken,
		"user":         user,
	})
}
