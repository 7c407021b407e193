package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/0xkonsti/chatd/pkg/user"
	"github.com/0xkonsti/chatd/pkg/user/storetest"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) user.Store {
		s, err := Open(t.TempDir())
		require.NoError(t, err)
		return s
	})
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, user.New("alice", "hash")))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", got.Name)
}
