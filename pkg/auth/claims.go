package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	Username string
	// JTI keys the refresh session; a fresh one is generated when empty.
	JTI string
}

// AccessTokenClaims represents the typed JWT issued to clients. Roles are not
// carried in the token; they are resolved from the profiles on every request.
type AccessTokenClaims struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	jwt.RegisteredClaims
}
