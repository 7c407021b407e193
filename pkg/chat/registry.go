// Package chat implements the chatd application layer on top of the
// connection engine: authentication against the user store, the presence
// registry, direct message routing and admin-triggered shutdown.
package chat

import (
	"errors"
	"sort"
	"sync"

	"github.com/0xkonsti/chatd/internal/protocol"
)

// ErrAlreadyConnected is returned when a user who already has a live
// session tries to authenticate a second one.
var ErrAlreadyConnected = errors.New("user already connected")

// Sender is the slice of a session the chat layer needs to deliver frames.
type Sender interface {
	ID() uint64
	Send(msg *protocol.Message) error
}

// Registry tracks which users are online and on which session. A user has
// at most one live session. All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]Sender
	nameByID map[uint64]string
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]Sender),
		nameByID: make(map[uint64]string),
	}
}

// Bind associates username with the given session. Returns
// ErrAlreadyConnected if the user already has a live session.
func (r *Registry) Bind(username string, s Sender) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, online := r.byName[username]; online {
		return ErrAlreadyConnected
	}

	r.byName[username] = s
	r.nameByID[s.ID()] = username
	return nil
}

// Unbind removes whatever user is bound to the given session id. Safe to
// call for sessions that never authenticated.
func (r *Registry) Unbind(sessionID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.nameByID[sessionID]
	if !ok {
		return
	}
	delete(r.nameByID, sessionID)
	delete(r.byName, username)
}

// Lookup returns the session of an online user, or nil.
func (r *Registry) Lookup(username string) Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[username]
}

// Username returns the user bound to the given session id, or "".
func (r *Registry) Username(sessionID uint64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nameByID[sessionID]
}

// Online returns the sorted list of connected usernames.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of connected users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Broadcast sends msg to every online user on a best-effort basis and
// returns the number of successful deliveries.
func (r *Registry) Broadcast(msg *protocol.Message) int {
	r.mu.RLock()
	sessions := make([]Sender, 0, len(r.byName))
	for _, s := range r.byName {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, s := range sessions {
		if err := s.Send(msg); err == nil {
			delivered++
		}
	}
	return delivered
}
