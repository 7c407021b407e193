// Package badger implements the user store on BadgerDB.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/0xkonsti/chatd/pkg/user"
)

const keyPrefix = "user/"

func keyUser(name string) []byte {
	return []byte(keyPrefix + name)
}

// Store persists users in a BadgerDB directory.
//
// Thread safety: BadgerDB transactions provide the required isolation;
// all methods are safe for concurrent use.
type Store struct {
	db *badger.DB
}

// Open creates or opens the user database at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil) // badger's own logger is too chatty for a serving process

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open user database at %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

// Create registers a new user atomically.
func (s *Store) Create(ctx context.Context, u *user.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := keyUser(u.Name)

		_, err := txn.Get(key)
		if err == nil {
			return user.ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("lookup user %q: %w", u.Name, err)
		}

		data, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("encode user %q: %w", u.Name, err)
		}
		return txn.Set(key, data)
	})
}

// Get returns the user with the given name.
func (s *Store) Get(ctx context.Context, name string) (*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var u user.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyUser(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return user.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lookup user %q: %w", name, err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &u)
		})
	})
	if err != nil {
		return nil, err
	}

	return &u, nil
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

	var users []*user.User
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var u user.User
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &u)
			})
			if err != nil {
				return fmt.Errorf("decode user record: %w", err)
			}
			users = append(users, &u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

// Delete removes a user.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := keyUser(name)

		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return user.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lookup user %q: %w", name, err)
		}

		return txn.Delete(key)
	})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
