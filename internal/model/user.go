package model

import "time"

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// User lives under the "users" tree of the directory store, keyed by ID.
// Immutable after registration except the password hash.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	Role         Role      `json:"role"`
	Phone        string    `json:"phone"`
	Specialty    string    `json:"specialty,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Redacted returns a copy safe to hand back to clients.
func (u *User) Redacted() *User {
	c := *u
	c.PasswordHash = ""
	return &c
}

type RegisterRequest struct {
	Name      string `json:"name" binding:"required,max=255"`
	Email     string `json:"email" binding:"required,email,max=255"`
	Password  string `json:"password" binding:"required,min=6"`
	Role      string `json:"role" binding:"required,oneof=patient doctor"`
	Phone     string `json:"phone" binding:"required"`
	Specialty string `json:"specialty" binding:"omitempty,max=255"`
}
