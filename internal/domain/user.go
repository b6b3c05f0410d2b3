package domain

import (
	"strings"
	"time"
)

const (
	MinAge = 1
	MaxAge = 120
)

// User represents a registered account.
type User struct {
	ID           string
	Name         string `label:"name" validate:"required"`
	Email        string `label:"email" validate:"required,email"`
	PasswordHash string `label:"passwordHash" validate:"required"`
	Age          int    `label:"age" validate:"gte=1,lte=120"`
	CreatedAt    time.Time
}

// Sanitized returns a copy of the user without the password hash.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Age:       u.Age,
		CreatedAt: u.CreatedAt,
	}
}

// UserFilter narrows a user listing. Zero values mean "no constraint".
type UserFilter struct {
	Name   string
	Email  string
	MinAge *int
	MaxAge *int
}

// NormalizeEmail lowercases and trims an email address so it can be used as a lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
