package server

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/0xkonsti/chatd/internal/logger"
	"github.com/0xkonsti/chatd/internal/protocol"
)

// Handler executes one decoded message and returns an optional reply.
//
// The reply, if non-nil, is written back on the submitting session. A
// Disconnect reply additionally closes the session after the write, so
// handlers never touch the transport directly for the request/response
// path. Handlers may call Session.Send themselves for pushes to other
// sessions (direct messages, broadcasts).
//
// The context carries the session's cancellation: it is cancelled when the
// session closes or when shutdown force-closes connections. Handlers doing
// slow work must observe it.
//
// A returned error means the request failed but the session is healthy;
// the dispatcher answers with a MessageError frame. Only transport-level
// write failures close the session.
type Handler interface {
	Handle(ctx context.Context, s *Session, msg *protocol.Message) (*protocol.Message, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, s *Session, msg *protocol.Message) (*protocol.Message, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, s *Session, msg *protocol.Message) (*protocol.Message, error) {
	return f(ctx, s, msg)
}

// task is one frame bound to the session it arrived on. seq is the
// frame's position in its session's submission order.
type task struct {
	session *Session
	msg     *protocol.Message
	seq     uint64
}

// DispatcherConfig bounds the worker pool.
type DispatcherConfig struct {
	// Workers is the number of concurrent executors. Default: 32.
	Workers int

	// QueueDepth bounds pending submissions beyond busy workers.
	// Default: 256.
	QueueDepth int
}

func (c *DispatcherConfig) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 32
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 256
	}
}

// Dispatcher routes frames to a bounded worker pool.
//
// Submit never blocks the caller: when all workers are busy and the queue
// is full it fails fast with ErrBackpressure. Per-session frame ordering
// is preserved: every frame carries its session-local sequence number and
// a worker holds its execution until the predecessor frame has finished,
// so two frames from one session can never run out of order even when
// picked up by different workers.
type Dispatcher struct {
	config  DispatcherConfig
	handler Handler
	metrics MetricsRecorder

	queue chan task
	wg    sync.WaitGroup

	stopOnce sync.Once
	stop     chan struct{}
}

// NewDispatcher creates a dispatcher routing frames to handler.
func NewDispatcher(config DispatcherConfig, handler Handler) *Dispatcher {
	config.applyDefaults()

	return &Dispatcher{
		config:  config,
		handler: handler,
		queue:   make(chan task, config.QueueDepth),
		stop:    make(chan struct{}),
	}
}

// SetMetrics installs a metrics recorder. Must be called before Start.
func (d *Dispatcher) SetMetrics(m MetricsRecorder) { d.metrics = m }

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	logger.Debug("Dispatcher starting", "workers", d.config.Workers, "queue_depth", d.config.QueueDepth)

	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Submit hands a frame to the worker pool for asynchronous execution.
// The outcome is delivered back through the session's write path. All
// submissions for one session must come from its read loop: sequence
// claims match submission order only because they are not concurrent.
//
// Returns ErrBackpressure when the queue is full and ErrStopped after
// shutdown has begun. Submit never blocks.
func (d *Dispatcher) Submit(s *Session, msg *protocol.Message) error {
	select {
	case <-d.stop:
		return ErrStopped
	default:
	}

	s.inflight.Add(1)
	seq := s.claimTurn()

	select {
	case d.queue <- task{session: s, msg: msg, seq: seq}:
		if d.metrics != nil {
			d.metrics.SetQueueDepth(len(d.queue))
		}
		return nil
	default:
		s.unclaimTurn()
		s.inflight.Done()
		if d.metrics != nil {
			d.metrics.RecordBackpressure()
		}
		return ErrBackpressure
	}
}

// Stop prevents further submissions, drains already queued frames, and
// joins the worker pool. Safe to call multiple times.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
	})
	d.wg.Wait()
	logger.Debug("Dispatcher stopped")
}

// worker executes tasks until stop is signalled and the queue is drained.
// Draining queued frames during shutdown is what guarantees an accepted
// frame is answered rather than abandoned.
func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for {
		select {
		case t := <-d.queue:
			d.process(t)
		case <-d.stop:
			for {
				select {
				case t := <-d.queue:
					d.process(t)
				default:
					return
				}
			}
		}
	}
}

// process runs one frame through the handler and delivers the outcome.
func (d *Dispatcher) process(t task) {
	s := t.session
	defer s.inflight.Done()
	defer d.recoverPanic(s, t.msg)

	if d.metrics != nil {
		d.metrics.SetQueueDepth(len(d.queue))
		d.metrics.RecordFrame(t.msg.Type.String())
	}

	// The queue is FIFO but workers race to run what they pulled, so
	// ordering needs an explicit turnstile: wait for the predecessor
	// frame from this session, and release the successor on every exit
	// path, dropped and panicked frames included.
	s.awaitTurn(t.seq)
	defer s.finishTurn()

	ctx := s.Context()
	if ctx.Err() != nil {
		// Session closed while the frame was queued. The session is
		// being torn down with an error, which satisfies the
		// no-silent-drop contract.
		logger.DebugCtx(ctx, "Dropping frame for closed session", "message_type", t.msg.Type.String())
		return
	}

	lc := logger.FromContext(ctx).Clone()
	if lc != nil {
		lc.MessageType = t.msg.Type.String()
		lc.Username = s.Username()
		ctx = logger.WithContext(ctx, lc)
	}

	start := time.Now()
	reply, err := d.handler.Handle(ctx, s, t.msg)
	if d.metrics != nil {
		d.metrics.ObserveHandlerDuration(t.msg.Type.String(), time.Since(start).Seconds())
	}

	if err != nil {
		logger.DebugCtx(ctx, "Handler failed", "error", err)
		reply = protocol.MessageError(err.Error())
	}

	if reply == nil {
		return
	}

	if err := s.Send(reply); err != nil {
		// Transport failure: scoped to this session only.
		logger.DebugCtx(ctx, "Failed to write reply, closing session", "error", err)
		s.Close()
		return
	}

	if reply.Is(protocol.TypeDisconnect) {
		s.Close()
	}
}

// recoverPanic keeps a single misbehaving request from crashing the
// serving process.
func (d *Dispatcher) recoverPanic(s *Session, msg *protocol.Message) {
	if r := recover(); r != nil {
		logger.Error("Panic in request handler",
			"session_id", s.ID(),
			"message_type", msg.Type.String(),
			"error", r,
			"stack", string(debug.Stack()))
		s.Close()
	}
}
