// Package domain contains core business types and the application error model.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string // Never expose this in API responses
	CreatedAt    time.Time
}

// DisplayName returns the user's name or email if name is empty.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// RegisterParams contains the parameters for user registration.
type RegisterParams struct {
	Email    string
	Name     string
	Password string
}
