package types

import "github.com/golang-jwt/jwt/v5"

// Claims represents the custom claims included in the JWT access token.
type Claims struct {
	UserID               string `json:"uid"`
	Email                string `json:"eml"`
	Role                 string `json:"rol"`
	jwt.RegisteredClaims        // Standard claims (ExpiresAt, IssuedAt, Subject, ...).
}
