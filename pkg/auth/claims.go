package auth

import (
	"github.com/cabinetworks/contractor-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID  int64
	Role    enums.UserRole
	GroupID *int64
	JTI     string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID  int64          `json:"user_id"`
	Role    enums.UserRole `json:"role"`
	GroupID *int64         `json:"group_id,omitempty"`
	jwt.RegisteredClaims
}
