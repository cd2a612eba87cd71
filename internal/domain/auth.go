package domain

import "time"

// RoleAdmin is the only role accepted by the admin API.
const RoleAdmin = "admin"

// JWTClaims represents the JWT payload.
type JWTClaims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
}

// IssuedToken is a freshly signed admin token.
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
