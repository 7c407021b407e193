package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/0xkonsti/chatd/internal/logger"
	"github.com/0xkonsti/chatd/internal/protocol"
	"github.com/0xkonsti/chatd/pkg/server"
	"github.com/0xkonsti/chatd/pkg/user"
)

// HandlerConfig holds the chat layer configuration.
type HandlerConfig struct {
	// AdminUsers may request a server shutdown over the wire.
	AdminUsers []string
}

// Handler routes decoded frames to the chat semantics. It implements
// server.Handler.
type Handler struct {
	config   HandlerConfig
	users    user.Store
	registry *Registry
	admins   map[string]struct{}

	// shutdown is invoked when an admin requests a server shutdown. Wired
	// by the caller to the engine's Stop; nil disables remote shutdown.
	shutdown func()
}

// NewHandler creates the chat frame handler.
func NewHandler(config HandlerConfig, users user.Store, registry *Registry) *Handler {
	admins := make(map[string]struct{}, len(config.AdminUsers))
	for _, name := range config.AdminUsers {
		admins[name] = struct{}{}
	}

	return &Handler{
		config:   config,
		users:    users,
		registry: registry,
		admins:   admins,
	}
}

// SetShutdownFunc wires the admin shutdown request to the engine. Must be
// called before the server starts serving.
func (h *Handler) SetShutdownFunc(fn func()) { h.shutdown = fn }

// Registry returns the presence registry backing this handler.
func (h *Handler) Registry() *Registry { return h.registry }

// SessionClosed releases the presence binding of a closed session. Wire it
// to the engine's session close hook.
func (h *Handler) SessionClosed(s *server.Session) {
	h.registry.Unbind(s.ID())
}

// Handle dispatches one frame. See server.Handler for the reply contract.
func (h *Handler) Handle(ctx context.Context, s *server.Session, msg *protocol.Message) (*protocol.Message, error) {
	switch msg.Type {
	case protocol.TypeAuth:
		return h.handleAuth(ctx, s, msg)
	case protocol.TypeAuthCreate:
		return h.handleAuthCreate(ctx, s, msg)
	case protocol.TypeHeartbeat:
		return protocol.Ack(), nil
	case protocol.TypeDisconnect:
		h.registry.Unbind(s.ID())
		return protocol.Disconnect(), nil
	case protocol.TypeServerDebugLog:
		return h.handleDebugLog(ctx, s, msg)
	case protocol.TypeDirectMessageSend:
		return h.handleDirectMessage(ctx, s, msg)
	case protocol.TypeServerShutdown:
		return h.handleShutdown(ctx, s, msg)
	case protocol.TypeBreak:
		return protocol.Break(), nil
	case protocol.TypeEmpty, protocol.TypeAck, protocol.TypeNack:
		return nil, nil
	default:
		return protocol.MessageError(fmt.Sprintf("unexpected message type %s", msg.Type)), nil
	}
}

func (h *Handler) handleAuth(ctx context.Context, s *server.Session, msg *protocol.Message) (*protocol.Message, error) {
	if s.Username() != "" {
		return protocol.Nack(), nil
	}

	username := msg.FieldString(0)
	password := msg.FieldString(1)
	if username == "" || password == "" {
		return protocol.AuthFailure("username and password required"), nil
	}

	if _, err := h.users.Authenticate(ctx, username, password); err != nil {
		// Unknown user and wrong password produce the same reply so the
		// response does not leak which usernames exist.
		if errors.Is(err, user.ErrNotFound) || errors.Is(err, user.ErrInvalidCredentials) {
			logger.InfoCtx(ctx, "Authentication failed", "username", username)
			return protocol.AuthFailure("invalid credentials"), nil
		}
		return nil, fmt.Errorf("authenticate %q: %w", username, err)
	}

	return h.bindSession(ctx, s, username)
}

func (h *Handler) handleAuthCreate(ctx context.Context, s *server.Session, msg *protocol.Message) (*protocol.Message, error) {
	if s.Username() != "" {
		return protocol.Nack(), nil
	}

	username := msg.FieldString(0)
	password := msg.FieldString(1)
	if username == "" || password == "" {
		return protocol.AuthFailure("username and password required"), nil
	}

	if err := user.ValidatePassword(password); err != nil {
		return protocol.AuthFailure(err.Error()), nil
	}

	hash, err := user.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if err := h.users.Create(ctx, user.New(username, hash)); err != nil {
		if errors.Is(err, user.ErrAlreadyExists) {
			return protocol.AuthFailure("username already taken"), nil
		}
		return nil, fmt.Errorf("create user %q: %w", username, err)
	}

	logger.InfoCtx(ctx, "User registered", "username", username)
	return h.bindSession(ctx, s, username)
}

// bindSession claims the presence slot for username on session s.
func (h *Handler) bindSession(ctx context.Context, s *server.Session, username string) (*protocol.Message, error) {
	if err := h.registry.Bind(username, s); err != nil {
		logger.InfoCtx(ctx, "Rejected concurrent login", "username", username)
		return protocol.AuthFailure("user already connected"), nil
	}

	s.SetUsername(username)
	logger.InfoCtx(ctx, "User authenticated", "username", username, "online", h.registry.Count())
	return protocol.AuthSuccess(), nil
}

func (h *Handler) handleDebugLog(ctx context.Context, s *server.Session, msg *protocol.Message) (*protocol.Message, error) {
	if s.Username() == "" {
		return protocol.MessageError("authentication required"), nil
	}

	for i := range msg.Fields {
		logger.DebugCtx(ctx, "Client debug log", "entry", msg.FieldString(i))
	}

	online := h.registry.Online()
	logger.DebugCtx(ctx, "Registry state", "online", online, "count", len(online))
	return protocol.Ack(), nil
}

func (h *Handler) handleDirectMessage(ctx context.Context, s *server.Session, msg *protocol.Message) (*protocol.Message, error) {
	sender := s.Username()
	if sender == "" {
		return protocol.MessageError("authentication required"), nil
	}

	recipient := msg.FieldString(0)
	text := msg.FieldString(1)
	if recipient == "" {
		return protocol.MessageError("recipient required"), nil
	}

	peer := h.registry.Lookup(recipient)
	if peer == nil {
		return protocol.MessageError(fmt.Sprintf("user %q is not connected", recipient)), nil
	}

	if err := peer.Send(protocol.DirectMessageReceive(sender, text)); err != nil {
		logger.DebugCtx(ctx, "Direct message delivery failed", "recipient", recipient, "error", err)
		return protocol.MessageError(fmt.Sprintf("delivery to %q failed", recipient)), nil
	}

	return protocol.Ack(), nil
}

func (h *Handler) handleShutdown(ctx context.Context, s *server.Session, msg *protocol.Message) (*protocol.Message, error) {
	username := s.Username()
	if username == "" {
		return protocol.MessageError("authentication required"), nil
	}
	if _, ok := h.admins[username]; !ok {
		logger.WarnCtx(ctx, "Shutdown request from non-admin", "username", username)
		return protocol.MessageError("permission denied"), nil
	}
	if h.shutdown == nil {
		return protocol.MessageError("remote shutdown disabled"), nil
	}

	graceSeconds, err := msg.FieldUint64(0)
	if err != nil {
		return protocol.MessageError("invalid grace period"), nil
	}
	grace := time.Duration(graceSeconds) * time.Second

	logger.WarnCtx(ctx, "Shutdown requested", "username", username, "grace", grace)

	delivered := h.registry.Broadcast(protocol.ServerShutdownWarning(grace))
	logger.InfoCtx(ctx, "Shutdown warning broadcast", "delivered", delivered)

	// The server keeps serving through the announced grace period, then
	// tells every peer to go away and drains. The engine's own shutdown
	// timeout still applies on top for requests that are in flight when
	// the drain starts.
	time.AfterFunc(grace, func() {
		h.registry.Broadcast(protocol.Disconnect())
		h.shutdown()
	})

	return protocol.Ack(), nil
}
