package chat

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xkonsti/chatd/internal/protocol"
)

type fakeSender struct {
	id   uint64
	fail bool

	mu   sync.Mutex
	sent []*protocol.Message
}

func (f *fakeSender) ID() uint64 { return f.id }

func (f *fakeSender) Send(msg *protocol.Message) error {
	if f.fail {
		return errors.New("connection gone")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) received() []*protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*protocol.Message(nil), f.sent...)
}

func TestRegistryBindLookup(t *testing.T) {
	r := NewRegistry()
	s := &fakeSender{id: 1}

	require.NoError(t, r.Bind("alice", s))
	assert.Equal(t, s, r.Lookup("alice"))
	assert.Equal(t, "alice", r.Username(1))
	assert.Equal(t, 1, r.Count())
}

func TestRegistrySingleSessionPerUser(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Bind("alice", &fakeSender{id: 1}))
	err := r.Bind("alice", &fakeSender{id: 2})
	assert.ErrorIs(t, err, ErrAlreadyConnected)

	// The losing session must not have displaced the winner.
	assert.Equal(t, "alice", r.Username(1))
	assert.Equal(t, "", r.Username(2))
}

func TestRegistryUnbindFreesUser(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Bind("alice", &fakeSender{id: 1}))
	r.Unbind(1)

	assert.Nil(t, r.Lookup("alice"))
	assert.Equal(t, 0, r.Count())
	require.NoError(t, r.Bind("alice", &fakeSender{id: 2}))
}

func TestRegistryUnbindUnknownSession(t *testing.T) {
	r := NewRegistry()
	r.Unbind(42) // no-op
	assert.Equal(t, 0, r.Count())
}

func TestRegistryOnlineSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Bind("carol", &fakeSender{id: 3}))
	require.NoError(t, r.Bind("alice", &fakeSender{id: 1}))
	require.NoError(t, r.Bind("bob", &fakeSender{id: 2}))

	assert.Equal(t, []string{"alice", "bob", "carol"}, r.Online())
}

func TestRegistryBroadcast(t *testing.T) {
	r := NewRegistry()
	alive := &fakeSender{id: 1}
	dead := &fakeSender{id: 2, fail: true}
	require.NoError(t, r.Bind("alice", alive))
	require.NoError(t, r.Bind("bob", dead))

	delivered := r.Broadcast(protocol.ServerShutdownWarning(0))

	assert.Equal(t, 1, delivered)
	require.Len(t, alive.received(), 1)
	assert.Equal(t, protocol.TypeServerShutdownWarning, alive.received()[0].Type)
}
