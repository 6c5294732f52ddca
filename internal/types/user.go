package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// UserAuth represents the core user entity in the domain.
// Credential fields carry `json:"-"` so they can never leave the system boundary.
type UserAuth struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	Role               string     `json:"role"`
	IsActive           bool       `json:"isActive"`
	RefreshToken       *string    `json:"-"`
	RefreshTokenExpiry *time.Time `json:"-"`
	LastLogin          *time.Time `json:"lastLogin,omitempty"`
	PasswordChangedAt  *time.Time `json:"passwordChangedAt,omitempty"`
	AvatarInitials     string     `json:"avatarInitials"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// ChangedPasswordAfter reports whether the password was mutated after the
// given token issue time, which invalidates tokens minted before the change.
func (u *UserAuth) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	// JWT iat has second precision; truncate so a token minted in the same
	// second as the change is not treated as stale.
	return issuedAt.Before(u.PasswordChangedAt.Truncate(time.Second))
}

// AvatarInitialsFor derives up to two uppercase initials from a display name.
func AvatarInitialsFor(name string) string {
	var b strings.Builder
	for _, part := range strings.Fields(name) {
		if b.Len() >= 2 {
			break
		}
		runes := []rune(part)
		if len(runes) > 0 {
			b.WriteString(strings.ToUpper(string(runes[0])))
		}
	}
	return b.String()
}

// UserListFilter narrows admin user listings.
type UserListFilter struct {
	Role     string
	IsActive *bool
	Search   string
}

// AdminUserUpdate enumerates exactly the fields an admin may mutate on
// another account. Nil means "leave unchanged".
type AdminUserUpdate struct {
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
}

func (u AdminUserUpdate) Empty() bool {
	return u.Role == nil && u.IsActive == nil
}

// UserStats summarizes the user population for the admin dashboard.
type UserStats struct {
	Total  int64 `json:"total"`
	Active int64 `json:"active"`
	Admins int64 `json:"admins"`
	Users  int64 `json:"users"`
}
