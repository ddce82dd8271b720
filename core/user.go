package core

import (
	"context"
	"time"
)

type (
	// User is an authenticated account. PasswordHash is empty for accounts
	// created through an OAuth provider.
	User struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
		UpdatedAt    time.Time `json:"updatedAt"`
	}

	// UserStore defines the persistence layer for accounts.
	UserStore interface {
		// FindEmail returns the user registered with the given email address.
		FindEmail(ctx context.Context, email string) (*User, error)

		// Create stores a new user and returns its assigned ID.
		Create(ctx context.Context, user *User) (string, error)
	}
)
