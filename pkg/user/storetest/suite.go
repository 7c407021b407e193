// Package storetest provides a conformance suite shared by all user.Store
// implementations.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xkonsti/chatd/pkg/user"
)

// Factory creates a fresh, empty store for each subtest.
type Factory func(t *testing.T) user.Store

// Run exercises the full Store contract against the given factory.
func Run(t *testing.T, factory Factory) {
	t.Run("CreateAndGet", func(t *testing.T) {
		s := factory(t)
		defer func() { _ = s.Close() }()
		ctx := context.Background()

		hash, err := user.HashPassword("password1")
		require.NoError(t, err)

		require.NoError(t, s.Create(ctx, user.New("alice", hash)))

		got, err := s.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Name)
		assert.Equal(t, hash, got.PasswordHash)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		s := factory(t)
		defer func() { _ = s.Close() }()
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, user.New("alice", "x")))
		err := s.Create(ctx, user.New("alice", "y"))
		assert.ErrorIs(t, err, user.ErrAlreadyExists)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := factory(t)
		defer func() { _ = s.Close() }()

		_, err := s.Get(context.Background(), "nobody")
		assert.ErrorIs(t, err, user.ErrNotFound)
	})

	t.Run("Authenticate", func(t *testing.T) {
		s := factory(t)
		defer func() { _ = s.Close() }()
		ctx := context.Background()

		hash, err := user.HashPassword("password1")
		require.NoError(t, err)
		require.NoError(t, s.Create(ctx, user.New("alice", hash)))

		got, err := s.Authenticate(ctx, "alice", "password1")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Name)

		_, err = s.Authenticate(ctx, "alice", "wrongpass")
		assert.ErrorIs(t, err, user.ErrInvalidCredentials)

		_, err = s.Authenticate(ctx, "bob", "password1")
		assert.ErrorIs(t, err, user.ErrNotFound)
	})

	t.Run("ListOrdered", func(t *testing.T) {
		s := factory(t)
		defer func() { _ = s.Close() }()
		ctx := context.Background()

		for _, name := range []string{"carol", "alice", "bob"} {
			require.NoError(t, s.Create(ctx, user.New(name, "h")))
		}

		users, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, users, 3)
		assert.Equal(t, "alice", users[0].Name)
		assert.Equal(t, "bob", users[1].Name)
		assert.Equal(t, "carol", users[2].Name)
	})

	t.Run("Delete", func(t *testing.T) {
		s := factory(t)
		defer func() { _ = s.Close() }()
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, user.New("alice", "h")))
		require.NoError(t, s.Delete(ctx, "alice"))

		_, err := s.Get(ctx, "alice")
		assert.ErrorIs(t, err, user.ErrNotFound)

		assert.ErrorIs(t, s.Delete(ctx, "alice"), user.ErrNotFound)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		s := factory(t)
		defer func() { _ = s.Close() }()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.Error(t, s.Create(ctx, user.New("alice", "h")))
		_, err := s.Get(ctx, "alice")
		assert.Error(t, err)
	})
}
