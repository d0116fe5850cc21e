package models

import (
	"time"

	"github.com/google/uuid"
)

// Platform-level user roles.
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// User is a registered account. The access core only needs ID and Email;
// the rest is profile data for the portal UI.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserPublic is the user shape returned to other members (no credentials).
type UserPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
