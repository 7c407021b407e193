// Package user defines chatd user accounts and the store they live in.
package user

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a username does not exist in the store.
var ErrNotFound = errors.New("user not found")

// ErrAlreadyExists is returned when creating a username that is taken.
var ErrAlreadyExists = errors.New("user already exists")

// User is a registered chat account.
type User struct {
	// Name is the unique username.
	Name string `json:"name"`

	// PasswordHash is the bcrypt hash of the account password.
	PasswordHash string `json:"password_hash"`

	// CreatedAt is when the account was registered.
	CreatedAt time.Time `json:"created_at"`
}

// New creates a user with the given name and an already computed hash.
func New(name, passwordHash string) *User {
	return &User{
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
}
