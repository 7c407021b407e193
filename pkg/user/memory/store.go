// Package memory implements an in-memory user store for tests and
// ephemeral deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/0xkonsti/chatd/pkg/user"
)

// Store keeps users in a map guarded by a mutex.
type Store struct {
	mu    sync.RWMutex
	users map[string]*user.User
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{users: make(map[string]*user.User)}
}

// Create registers a new user.
func (s *Store) Create(ctx context.Context, u *user.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.Name]; exists {
		return user.ErrAlreadyExists
	}

	clone := *u
	s.users[u.Name] = &clone
	return nil
}

// Get returns the user with the given name.
func (s *Store) Get(ctx context.Context, name string) (*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[name]
	if !ok {
		return nil, user.ErrNotFound
	}

	clone := *u
	return &clone, nil
}

// Authenticate verifies name/password against the stored hash.
func (s *Store) Authenticate(ctx context.Context, name, password string) (*user.User, error) {
	u, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	if !user.VerifyPassword(password, u.PasswordHash) {
		return nil, user.ErrInvalidCredentials
	}

	return u, nil
}

// List returns all users ordered by name.
func (s *Store) List(ctx context.Context) ([]*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*user.User, 0, len(s.users))
	for _, u := range s.users {
		clone := *u
		users = append(users, &clone)
	}

	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

// Delete removes a user.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[name]; !ok {
		return user.ErrNotFound
	}

	delete(s.users, name)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }
