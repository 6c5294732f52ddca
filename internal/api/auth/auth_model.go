package auth

import (
	"regexp"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/dmfonseca/go-task-hub/internal/api"
)

var (
	nameRe      = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	lowercaseRe = regexp.MustCompile(`[a-z]`)
	uppercaseRe = regexp.MustCompile(`[A-Z]`)
	digitRe     = regexp.MustCompile(`\d`)
)

// RegisterRequest represents the expected JSON body for user registration.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r RegisterRequest) Validate() []api.FieldError {
	return collectFieldErrors(validation.ValidateStruct(&r,
		validation.Field(&r.Name,
			validation.Required.Error("Name is required"),
			validation.Length(2, 50).Error("Name must be 2-50 characters"),
			validation.Match(nameRe).Error("Name can only contain letters, spaces, hyphens, and apostrophes"),
		),
		validation.Field(&r.Email,
			validation.Required.Error("Email is required"),
			is.Email.Error("Please provide a valid email"),
			validation.Length(0, 100).Error("Email cannot exceed 100 characters"),
		),
		validation.Field(&r.Password, passwordRules()...),
	))
}

// LoginRequest represents the expected JSON body for user login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() []api.FieldError {
	return collectFieldErrors(validation.ValidateStruct(&r,
		validation.Field(&r.Email,
			validation.Required.Error("Email is required"),
			is.Email.Error("Please provide a valid email"),
		),
		validation.Field(&r.Password,
			validation.Required.Error("Password is required"),
		),
	))
}

// RefreshTokenRequest represents the expected JSON body for refreshing tokens.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// UpdatePasswordRequest represents the expected JSON body for changing the
// authenticated user's password.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r UpdatePasswordRequest) Validate() []api.FieldError {
	return collectFieldErrors(validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword,
			validation.Required.Error("Current password is required"),
		),
		validation.Field(&r.NewPassword, passwordRules()...),
	))
}

func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("Password is required"),
		validation.Length(8, 0).Error("Password must be at least 8 characters"),
		validation.Match(lowercaseRe).Error("Password must contain at least one lowercase letter"),
		validation.Match(uppercaseRe).Error("Password must contain at least one uppercase letter"),
		validation.Match(digitRe).Error("Password must contain at least one number"),
	}
}

// collectFieldErrors flattens ozzo's per-field error map so a single response
// enumerates every failing field.
func collectFieldErrors(err error) []api.FieldError {
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
