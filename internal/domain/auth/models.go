package auth

import (
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("session is not valid")
	ErrEmailRequired      = errors.New("account has no email address")
	ErrInvalidRole        = errors.New("unknown role")
	ErrNotFound           = errors.New("account not found")
)

// UserContext is the authenticated caller attached to a request.
type UserContext struct {
	UserID    string
	Email     string
	Role      string
	SessionID string
}

type Profile struct {
	UserID      string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	LastLoginAt string `json:"lastLoginAt,omitempty"`
}

type Token struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Profile     Profile   `json:"profile"`
}

type account struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	Disabled     bool
}
