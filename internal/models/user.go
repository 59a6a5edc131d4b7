package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a platform account. Session participation does not require an
// account; participant identities are client-supplied.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
