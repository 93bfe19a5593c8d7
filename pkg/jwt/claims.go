package jwt

import "github.com/golang-jwt/jwt/v5"

type SessionClaims struct {
	jwt.RegisteredClaims
	Session string `json:"session"`
	Role    string `json:"role"`
}

type Role string

const (
	RoleViewer      Role = "viewer"
	RoleParticipant Role = "participant"
	RoleModerator   Role = "moderator"
)
