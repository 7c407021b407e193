// Package server implements the chatd connection engine: a TCP acceptor
// with admission control, per-connection sessions reassembling wire frames,
// a bounded dispatcher executing them, and a graceful shutdown coordinator.
//
// The engine is protocol-agnostic above the framing layer: it decodes
// frames and hands complete messages to an injected Handler. The chat
// semantics live elsewhere.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xkonsti/chatd/internal/logger"
)

// AcceptPolicy decides what happens to connections arriving past
// MaxConnections.
type AcceptPolicy string

const (
	// PolicyQueue leaves excess connections waiting in the kernel accept
	// backlog until a slot frees up.
	PolicyQueue AcceptPolicy = "queue"

	// PolicyReject accepts and immediately closes excess connections.
	PolicyReject AcceptPolicy = "reject"
)

// State is the server lifecycle state.
type State int32

const (
	StateRunning State = iota
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config holds the engine configuration.
type Config struct {
	// BindAddress is the IP address to bind to. Empty binds all interfaces.
	BindAddress string

	// Port is the TCP port to listen on.
	Port int

	// MaxConnections limits concurrent sessions. 0 means unlimited.
	MaxConnections int

	// AcceptPolicy governs connections past MaxConnections.
	AcceptPolicy AcceptPolicy

	// HeartbeatInterval is the period between server-pushed heartbeats.
	// 0 disables them.
	HeartbeatInterval time.Duration

	// ReadTimeout bounds reads while a partial frame is buffered.
	ReadTimeout time.Duration

	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration

	// IdleTimeout closes sessions with no traffic and no partial frame.
	IdleTimeout time.Duration

	// ShutdownTimeout is the grace period for in-flight work during Stop.
	ShutdownTimeout time.Duration

	// MaxFrameSize bounds a single encoded frame.
	MaxFrameSize int

	// MaxFields bounds the payload field count of a single frame.
	MaxFields int

	// Dispatcher bounds the worker pool.
	Dispatcher DispatcherConfig
}

func (c *Config) applyDefaults() {
	if c.AcceptPolicy == "" {
		c.AcceptPolicy = PolicyQueue
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// Server owns the listener, the session set and the dispatcher.
//
// Lifecycle is Running -> Draining -> Stopped, driven once by Stop.
// All exported methods are safe for concurrent use.
type Server struct {
	config  Config
	handler Handler

	dispatcher *Dispatcher
	metrics    MetricsRecorder

	// OnSessionOpen and OnSessionClose are optional lifecycle hooks,
	// invoked from the accept loop goroutines. Set before Serve.
	OnSessionOpen  func(*Session)
	OnSessionClose func(*Session)

	listener   net.Listener
	listenerMu sync.RWMutex

	// ListenerReady is closed once the listener accepts connections.
	// Tests synchronize on it.
	ListenerReady chan struct{}

	state atomic.Int32

	shutdownOnce sync.Once
	shutdown     chan struct{}

	// stopped is closed once gracefulShutdown has fully finished.
	stopped chan struct{}

	// shutdownCtx is the parent of every session context. Cancelled only
	// when the grace period expires, not when draining begins: draining
	// lets in-flight requests run to completion.
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	// startedAt is guarded by listenerMu: it is written when the listener
	// binds and read by the management API while Serve may still be
	// starting.
	startedAt time.Time

	connCount     atomic.Int32
	nextSessionID atomic.Uint64
	activeConns   sync.WaitGroup
	sessions      sync.Map // uint64 -> *Session
	connSemaphore chan struct{}
}

// New creates a stopped server. Call Serve to start accepting.
func New(config Config, handler Handler) *Server {
	config.applyDefaults()
	config.Dispatcher.applyDefaults()

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 && config.AcceptPolicy == PolicyQueue {
		connSemaphore = make(chan struct{}, config.MaxConnections)
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &Server{
		config:         config,
		handler:        handler,
		dispatcher:     NewDispatcher(config.Dispatcher, handler),
		shutdown:       make(chan struct{}),
		stopped:        make(chan struct{}),
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
		connSemaphore:  connSemaphore,
		ListenerReady:  make(chan struct{}),
	}
}

// SetMetrics installs a metrics recorder. Must be called before Serve.
func (s *Server) SetMetrics(m MetricsRecorder) {
	s.metrics = m
	s.dispatcher.SetMetrics(m)
}

// State returns the server lifecycle state.
func (s *Server) State() State { return State(s.state.Load()) }

// ActiveSessions returns the current number of connected sessions.
func (s *Server) ActiveSessions() int32 { return s.connCount.Load() }

// StartedAt returns when Serve bound the listener, or the zero time if it
// has not run yet. Safe to call while Serve is starting up, which the
// management API does.
func (s *Server) StartedAt() time.Time {
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	return s.startedAt
}

// Addr returns the address the server is listening on. Blocks until the
// listener is ready.
func (s *Server) Addr() string {
	<-s.ListenerReady

	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Sessions calls fn for every active session, stopping early if fn
// returns false.
func (s *Server) Sessions(fn func(*Session) bool) {
	s.sessions.Range(func(_, value any) bool {
		return fn(value.(*Session))
	})
}

// Session returns the session with the given id, or nil.
func (s *Server) Session(id uint64) *Session {
	if v, ok := s.sessions.Load(id); ok {
		return v.(*Session)
	}
	return nil
}

// Serve binds the listener and runs the accept loop until shutdown.
//
// Cancelling ctx triggers the same graceful shutdown as Stop. Returns nil
// on a graceful stop and an error if the grace period expired with
// connections force-closed.
func (s *Server) Serve(ctx context.Context) error {
	listenAddr := fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port)
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
	}

	s.listenerMu.Lock()
	s.listener = listener
	s.startedAt = time.Now()
	s.listenerMu.Unlock()
	close(s.ListenerReady)

	// Stop may have run before the listener was bound. The drain path
	// found no listener to close then, so close it here and finish the
	// shutdown without accepting anything.
	select {
	case <-s.shutdown:
		_ = listener.Close()
		return s.gracefulShutdown()
	default:
	}

	s.dispatcher.Start()

	logger.Info("Server listening",
		"address", listener.Addr().String(),
		"max_connections", s.config.MaxConnections,
		"accept_policy", string(s.config.AcceptPolicy))

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received", "error", ctx.Err())
			s.initiateDrain()
		case <-s.shutdown:
		}
	}()

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		tcpConn, err := s.listener.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}

			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("Error accepting connection", "error", err)
				continue
			}
		}

		if tcp, ok := tcpConn.(*net.TCPConn); ok {
			if err := tcp.SetNoDelay(true); err != nil {
				logger.Debug("Failed to set TCP_NODELAY", "error", err)
			}
		}

		if s.config.AcceptPolicy == PolicyReject &&
			s.config.MaxConnections > 0 &&
			s.connCount.Load() >= int32(s.config.MaxConnections) {
			logger.Debug("Connection rejected at capacity",
				"address", tcpConn.RemoteAddr(),
				"max_connections", s.config.MaxConnections)
			if s.metrics != nil {
				s.metrics.RecordConnectionRejected()
			}
			_ = tcpConn.Close()
			continue
		}

		s.startSession(tcpConn)
	}
}

// startSession registers an accepted connection and launches its serve
// goroutine.
func (s *Server) startSession(tcpConn net.Conn) {
	sess := newSession(s.nextSessionID.Add(1), tcpConn, s)

	s.activeConns.Add(1)
	current := s.connCount.Add(1)
	s.sessions.Store(sess.id, sess)

	if s.metrics != nil {
		s.metrics.RecordConnectionAccepted()
		s.metrics.SetActiveConnections(current)
	}

	logger.Debug("Connection accepted",
		"session_id", sess.id,
		"address", sess.remoteAddr,
		"active", current)

	if s.OnSessionOpen != nil {
		s.OnSessionOpen(sess)
	}

	go func() {
		defer func() {
			sess.Close()

			if s.OnSessionClose != nil {
				s.OnSessionClose(sess)
			}

			s.sessions.Delete(sess.id)
			s.activeConns.Done()
			remaining := s.connCount.Add(-1)
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}

			if s.metrics != nil {
				s.metrics.RecordConnectionClosed()
				s.metrics.SetActiveConnections(remaining)
			}

			logger.Debug("Connection closed",
				"session_id", sess.id,
				"address", sess.remoteAddr,
				"active", remaining)
		}()

		if s.config.HeartbeatInterval > 0 {
			go sess.heartbeatLoop(s.config.HeartbeatInterval)
		}

		sess.serve()

		// Replies for frames already dispatched still go out here; the
		// connection stays open until they have completed.
		sess.inflight.Wait()
	}()
}

// initiateDrain moves the server to Draining: the listener stops
// accepting, sessions stop reading, and in-flight requests keep running.
// Idempotent.
func (s *Server) initiateDrain() {
	s.shutdownOnce.Do(func() {
		s.state.Store(int32(StateDraining))
		logger.Info("Draining: no longer accepting connections or frames")

		close(s.shutdown)

		s.listenerMu.Lock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing listener", "error", err)
			}
		}
		s.listenerMu.Unlock()

		s.sessions.Range(func(_, value any) bool {
			value.(*Session).drain()
			return true
		})
	})
}

// gracefulShutdown waits for in-flight work and open sessions up to the
// configured grace period, then force-closes what remains.
func (s *Server) gracefulShutdown() error {
	defer func() {
		s.dispatcher.Stop()
		s.state.Store(int32(StateStopped))
		close(s.stopped)
		logger.Info("Server stopped")
	}()

	active := s.connCount.Load()
	logger.Info("Waiting for active sessions",
		"active", active, "timeout", s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Graceful shutdown complete")
		return nil

	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("Shutdown grace period exceeded, forcing closure",
			"active", remaining, "timeout", s.config.ShutdownTimeout)

		// Past the deadline in-flight requests lose their right to
		// complete: cancel their contexts, then close the sockets.
		s.cancelRequests()
		s.forceCloseSessions()

		s.activeConns.Wait()
		return fmt.Errorf("shutdown grace period exceeded: %d sessions force-closed", remaining)
	}
}

// forceCloseSessions closes every remaining session socket.
func (s *Server) forceCloseSessions() {
	closed := 0
	s.sessions.Range(func(_, value any) bool {
		sess := value.(*Session)
		sess.Close()
		closed++
		if s.metrics != nil {
			s.metrics.RecordConnectionForceClosed()
		}
		return true
	})

	if closed > 0 {
		logger.Info("Force-closed sessions", "count", closed)
	}
}

// Stop initiates graceful shutdown and waits for it to finish.
//
// Safe to call multiple times and concurrently with Serve; later calls
// wait for the same shutdown to complete. The grace-period logic runs in
// Serve's return path, which reports whether sessions were force-closed.
func (s *Server) Stop() {
	s.initiateDrain()

	select {
	case <-s.ListenerReady:
		// Serve is running its accept loop: it observes the closed
		// shutdown channel and finishes the shutdown sequence.
		<-s.stopped
	default:
		// Serve has not bound the listener yet. If it starts later it
		// observes the closed shutdown channel before accepting and runs
		// the full shutdown sequence itself; here there is only the
		// session bookkeeping.
		s.activeConns.Wait()
		s.state.Store(int32(StateStopped))
	}
}
