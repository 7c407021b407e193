package server

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xkonsti/chatd/internal/logger"
	"github.com/0xkonsti/chatd/internal/protocol"
	"github.com/0xkonsti/chatd/pkg/bufpool"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus int32

const (
	// SessionActive means the session accepts and dispatches frames.
	SessionActive SessionStatus = iota

	// SessionDraining means no new frames are read but in-flight requests
	// may still complete and write replies.
	SessionDraining

	// SessionClosed means the connection is gone.
	SessionClosed
)

func (s SessionStatus) String() string {
	switch s {
	case SessionActive:
		return "active"
	case SessionDraining:
		return "draining"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one accepted connection with its identity, framer state and
// write path. All methods are safe for concurrent use.
type Session struct {
	id         uint64
	conn       net.Conn
	remoteAddr string
	createdAt  time.Time

	server *Server
	framer *protocol.Framer

	status atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc

	// writeMu serializes frame writes so pushes from other sessions and
	// dispatcher replies never interleave on the wire.
	writeMu sync.Mutex

	// execMu guards the turnstile that forces handler executions into
	// submission order. Workers race to run whatever they pulled off the
	// dispatch queue, so each frame carries a sequence number and waits
	// for its predecessor to finish.
	execMu   sync.Mutex
	execCond *sync.Cond
	execHead uint64 // next sequence number to hand out
	execNext uint64 // sequence number allowed to run

	// inflight counts frames accepted by the dispatcher but not yet
	// completed. Drained before the session fully closes during shutdown.
	inflight sync.WaitGroup

	mu            sync.Mutex
	username      string
	lastHeartbeat time.Time

	closeOnce sync.Once
}

func newSession(id uint64, conn net.Conn, srv *Server) *Session {
	ctx, cancel := context.WithCancel(srv.shutdownCtx)
	remoteAddr := conn.RemoteAddr().String()
	ctx = logger.WithContext(ctx, logger.NewLogContext(id, remoteAddr))

	sess := &Session{
		id:         id,
		conn:       conn,
		remoteAddr: remoteAddr,
		createdAt:  time.Now(),
		server:     srv,
		framer: protocol.NewFramer(protocol.FramerConfig{
			MaxFrameSize: srv.config.MaxFrameSize,
			MaxFields:    srv.config.MaxFields,
		}),
		ctx:    ctx,
		cancel: cancel,
	}
	sess.execCond = sync.NewCond(&sess.execMu)
	return sess
}

// claimTurn reserves the next execution slot for a frame about to be
// queued. The session's read loop is the only submitter, so claims happen
// in arrival order.
func (s *Session) claimTurn() uint64 {
	s.execMu.Lock()
	defer s.execMu.Unlock()
	seq := s.execHead
	s.execHead++
	return seq
}

// unclaimTurn rolls back the most recent claim after a failed enqueue.
func (s *Session) unclaimTurn() {
	s.execMu.Lock()
	s.execHead--
	s.execMu.Unlock()
}

// awaitTurn blocks until every earlier frame from this session has
// finished executing.
func (s *Session) awaitTurn(seq uint64) {
	s.execMu.Lock()
	for s.execNext != seq {
		s.execCond.Wait()
	}
	s.execMu.Unlock()
}

// finishTurn marks seq complete and releases the next frame in line.
func (s *Session) finishTurn() {
	s.execMu.Lock()
	s.execNext++
	s.execMu.Unlock()
	s.execCond.Broadcast()
}

// ID returns the session's monotonically assigned identifier.
func (s *Session) ID() uint64 { return s.id }

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() string { return s.remoteAddr }

// CreatedAt returns when the connection was accepted.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Status returns the session's lifecycle state.
func (s *Session) Status() SessionStatus { return SessionStatus(s.status.Load()) }

// Context is cancelled when the session closes or when shutdown
// force-closes remaining connections.
func (s *Session) Context() context.Context { return s.ctx }

// Username returns the authenticated username, or "" before auth.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// SetUsername binds an authenticated identity to the session.
func (s *Session) SetUsername(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = name
}

// LastHeartbeat returns when the peer last sent a heartbeat.
func (s *Session) LastHeartbeat() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeartbeat
}

func (s *Session) touchHeartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHeartbeat = time.Now()
}

// Send encodes and writes a frame to the peer. Writes are serialized and
// bounded by the configured write timeout. Returns ErrSessionClosed once
// the session is closed.
func (s *Session) Send(msg *protocol.Message) error {
	if s.Status() == SessionClosed {
		return ErrSessionClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.server.config.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.server.config.WriteTimeout))
	}

	if _, err := s.conn.Write(msg.Encode()); err != nil {
		return err
	}
	return nil
}

// drain stops the read loop without tearing down the connection: in-flight
// requests keep running and may still write replies.
func (s *Session) drain() {
	if s.status.CompareAndSwap(int32(SessionActive), int32(SessionDraining)) {
		// Unblock a pending Read immediately.
		_ = s.conn.SetReadDeadline(time.Now())
	}
}

// Close cancels the session context and closes the connection. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.status.Store(int32(SessionClosed))
		s.cancel()
		_ = s.conn.Close()
	})
}

// serve runs the read loop until the peer disconnects, a framing error
// poisons the stream, or the session is drained/closed.
//
// serve does not close the session itself: the owner waits for in-flight
// requests first so their replies can still be written, then closes.
func (s *Session) serve() {
	buf := bufpool.Get(bufpool.DefaultReadSize)
	defer bufpool.Put(buf)

	for {
		if s.Status() != SessionActive {
			return
		}

		s.setReadDeadline()

		n, err := s.conn.Read(buf)
		if n > 0 {
			s.framer.Feed(buf[:n])
			if !s.dispatchBuffered() {
				return
			}
		}

		if err != nil {
			if s.Status() != SessionActive {
				return
			}
			switch {
			case errors.Is(err, io.EOF):
				logger.DebugCtx(s.ctx, "Peer disconnected")
			case errors.Is(err, os.ErrDeadlineExceeded):
				logger.InfoCtx(s.ctx, "Closing idle session")
			case errors.Is(err, net.ErrClosed):
			default:
				logger.DebugCtx(s.ctx, "Read error", "error", err)
			}
			return
		}
	}
}

// dispatchBuffered decodes every complete frame buffered in the framer and
// submits it. Returns false when the session must close.
func (s *Session) dispatchBuffered() bool {
	for {
		msg, err := s.framer.Next()
		if err != nil {
			// Framing errors poison the stream: answer with a Nack on a
			// best-effort basis and close this session only.
			logger.WarnCtx(s.ctx, "Framing error, closing session", "error", err)
			if s.server.metrics != nil {
				s.server.metrics.RecordFrameError()
			}
			_ = s.Send(protocol.Nack())
			return false
		}
		if msg == nil {
			return true
		}

		if msg.Is(protocol.TypeHeartbeat) {
			s.touchHeartbeat()
		}

		if err := s.server.dispatcher.Submit(s, msg); err != nil {
			// Overload is an error reply, not a crash and not a silent
			// drop. The session stays healthy.
			logger.DebugCtx(s.ctx, "Dispatch refused", "message_type", msg.Type.String(), "error", err)
			if sendErr := s.Send(protocol.MessageError(err.Error())); sendErr != nil {
				return false
			}
			if errors.Is(err, ErrStopped) {
				return false
			}
		}
	}
}

// setReadDeadline applies the idle timeout when no partial frame is
// buffered and the shorter read timeout while one is, so a stalled
// mid-frame peer is detected quickly.
func (s *Session) setReadDeadline() {
	var d time.Duration
	if s.framer.Buffered() > 0 {
		d = s.server.config.ReadTimeout
	} else {
		d = s.server.config.IdleTimeout
	}
	if d > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(d))
	} else {
		_ = s.conn.SetReadDeadline(time.Time{})
	}
}

// heartbeatLoop pushes periodic heartbeats to the peer.
func (s *Session) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			if s.Status() != SessionActive {
				return
			}
			if err := s.Send(protocol.Heartbeat(now)); err != nil {
				return
			}
		}
	}
}
