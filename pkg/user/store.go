package user

import "context"

// Store is the persistence interface for chat accounts.
//
// Implementations must be safe for concurrent use: account creation and
// authentication happen on dispatcher workers, while the CLI accesses the
// same store out of process.
type Store interface {
	// Create registers a new user. Returns ErrAlreadyExists if the
	// username is taken.
	Create(ctx context.Context, u *User) error

	// Get returns the user with the given name, or ErrNotFound.
	Get(ctx context.Context, name string) (*User, error)

	// Authenticate verifies name/password. Returns the user on success,
	// ErrNotFound for unknown names, ErrInvalidCredentials for a wrong
	// password.
	Authenticate(ctx context.Context, name, password string) (*User, error)

	// List returns all users ordered by name.
	List(ctx context.Context) ([]*User, error)

	// Delete removes a user. Returns ErrNotFound if absent.
	Delete(ctx context.Context, name string) error

	// Close releases store resources.
	Close() error
}
