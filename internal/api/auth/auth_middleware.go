package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmfonseca/go-task-hub/config"
	"github.com/dmfonseca/go-task-hub/internal/api"
	"github.com/dmfonseca/go-task-hub/internal/types"
)

// Typed context keys; handlers receive the resolved identity through these,
// never through ambient globals.
type contextKey string

const (
	UserKey     contextKey = "currentUser"
	UserIDKey   contextKey = "userID"
	UserRoleKey contextKey = "userRole"
)

// GetUserFromContext returns the identity resolved by Authenticate.
func GetUserFromContext(ctx context.Context) (*types.UserAuth, bool) {
	user, ok := ctx.Value(UserKey).(*types.UserAuth)
	return user, ok
}

func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return id, ok
}

func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(UserRoleKey).(string)
	return role, ok
}

// Authenticate validates the Bearer access token, resolves the identity and
// attaches it to the request context. The token must be present, carry a valid
// signature and expiry, belong to an existing active identity, and have been
// minted after the last password change.
func Authenticate(service AuthService, jwtCfg config.JWTConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	secretKey := []byte(jwtCfg.SecretKey)
	if len(secretKey) == 0 {
		panic("JWT secret key cannot be empty")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			user, errMsg := resolveIdentity(ctx, service, jwtCfg, secretKey, r)
			if errMsg != "" {
				l.WarnContext(ctx, "Authentication failed", slog.String("reason", errMsg))
				api.ErrorResponse(w, r, http.StatusUnauthorized, errMsg)
				return
			}

			ctx = context.WithValue(ctx, UserKey, user)
			ctx = context.WithValue(ctx, UserIDKey, user.ID)
			ctx = context.WithValue(ctx, UserRoleKey, user.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth runs the same chain but silently proceeds without an identity
// on any failure. Used for endpoints that personalize output without
// requiring login.
func OptionalAuth(service AuthService, jwtCfg config.JWTConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	secretKey := []byte(jwtCfg.SecretKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			user, errMsg := resolveIdentity(ctx, service, jwtCfg, secretKey, r)
			if errMsg == "" && user != nil {
				ctx = context.WithValue(ctx, UserKey, user)
				ctx = context.WithValue(ctx, UserIDKey, user.ID)
				ctx = context.WithValue(ctx, UserRoleKey, user.Role)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole composes after Authenticate and rejects identities whose role
// is not in the allowed set.
func RequireRole(logger *slog.Logger, roles ...string) func(next http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role, ok := GetUserRoleFromContext(ctx)
			if !ok {
				logger.ErrorContext(ctx, "Role check ran without an authenticated identity")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required.")
				return
			}
			if _, member := allowed[role]; !member {
				api.ErrorResponse(w, r, http.StatusForbidden,
					fmt.Sprintf("Access denied. This action requires %s privileges.", strings.Join(roles, " or ")))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolveIdentity walks the full validation chain and returns either the
// identity or the message describing which step rejected the request.
func resolveIdentity(ctx context.Context, service AuthService, jwtCfg config.JWTConfig, secretKey []byte, r *http.Request) (*types.UserAuth, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, "Authentication required. Please log in."
	}

	headerParts := strings.Split(authHeader, " ")
	if len(headerParts) != 2 || !strings.EqualFold(headerParts[0], "bearer") {
		return nil, "Authorization header format must be Bearer {token}"
	}
	tokenString := headerParts[1]

	claims := &types.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secretKey, nil
	}, jwt.WithIssuer(jwtCfg.Issuer), jwt.WithAudience(jwtCfg.Audience))

	if err != nil {
		// Expired and invalid tokens get distinguished messages, not
		// distinguished recovery paths.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, "Your session has expired. Please log in again."
		}
		return nil, "Invalid authentication token."
	}
	if !token.Valid {
		return nil, "Invalid authentication token."
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, "Invalid authentication token."
	}

	user, err := service.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, "The user belonging to this token no longer exists."
		}
		return nil, "Authentication failed."
	}

	if !user.IsActive {
		return nil, "Your account has been deactivated. Contact support."
	}

	if claims.IssuedAt != nil && user.ChangedPasswordAfter(claims.IssuedAt.Time) {
		return nil, "Password recently changed. Please log in again."
	}

	return user, ""
}
