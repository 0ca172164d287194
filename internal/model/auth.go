package model

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type TokenResponse struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
	User         *User  `json:"user"`
}

// TokenClaims is the validated identity carried by a bearer token.
type TokenClaims struct {
	UserID string
	Email  string
	Role   Role
	Name   string
}

// Session is the per-request principal placed in the request context by the
// auth middleware. Replaces the ambient current-user state of the old client.
type Session struct {
	UserID string
	Name   string
	Email  string
	Role   Role
}
