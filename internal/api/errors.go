package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Sentinel errors form the failure taxonomy. Services wrap these with
// internal detail; AppError carries the message that is safe for clients.
var (
	ErrValidation      = errors.New("invalid input")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrNotFound        = errors.New("requested item not found")
	ErrUnavailable     = errors.New("service temporarily unavailable")
	ErrTooManyRequests = errors.New("too many requests")
)

// FieldError describes a single failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError is an operational error: a status code plus a message that is safe
// to surface to clients. It unwraps to one of the taxonomy sentinels so
// callers can still branch with errors.Is.
type AppError struct {
	Status  int
	Message string
	Fields  []FieldError
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	return sentinelFor(e.Status)
}

func sentinelFor(status int) error {
	switch status {
	case http.StatusBadRequest:
		return ErrValidation
	case http.StatusUnauthorized:
		return ErrUnauthenticated
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrTooManyRequests
	case http.StatusServiceUnavailable:
		return ErrUnavailable
	default:
		return nil
	}
}

// NewError builds an operational error with a client-safe message.
func NewError(status int, message string) *AppError {
	return &AppError{Status: status, Message: message}
}

// NewValidationError carries every failing field in one response.
func NewValidationError(message string, fields []FieldError) *AppError {
	return &AppError{Status: http.StatusBadRequest, Message: message, Fields: fields}
}

// WrapError attaches an internal cause for server-side logs. The cause is
// never serialized.
func WrapError(status int, message string, cause error) *AppError {
	return &AppError{Status: status, Message: message, cause: cause}
}

// HandleError converts any error into a JSON error response. Operational
// errors keep their message; anything unrecognized is logged in full and
// surfaced as a generic 500.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		writeErrorEnvelope(w, r, appErr.Status, appErr.Message, appErr.Fields)
		return
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrUnavailable):
		writeErrorEnvelope(w, r, http.StatusServiceUnavailable, "Service temporarily unavailable. Please try again.", nil)
	case errors.Is(err, ErrValidation):
		writeErrorEnvelope(w, r, http.StatusBadRequest, "Validation failed. Please check your input.", nil)
	case errors.Is(err, ErrUnauthenticated):
		writeErrorEnvelope(w, r, http.StatusUnauthorized, "Authentication required.", nil)
	case errors.Is(err, ErrForbidden):
		writeErrorEnvelope(w, r, http.StatusForbidden, "You do not have permission to perform this action.", nil)
	case errors.Is(err, ErrNotFound):
		writeErrorEnvelope(w, r, http.StatusNotFound, "Resource not found.", nil)
	case errors.Is(err, ErrConflict):
		writeErrorEnvelope(w, r, http.StatusConflict, "Resource already exists.", nil)
	case errors.Is(err, ErrTooManyRequests):
		writeErrorEnvelope(w, r, http.StatusTooManyRequests, "Too many requests. Please try again later.", nil)
	default:
		slog.ErrorContext(r.Context(), "Unhandled error", slog.Any("error", err),
			slog.String("path", r.URL.Path), slog.String("method", r.Method))
		writeErrorEnvelope(w, r, http.StatusInternalServerError, "Something went wrong. Please try again later.", nil)
	}
}
