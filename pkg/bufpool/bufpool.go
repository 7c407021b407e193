// Package bufpool provides a tiered buffer pool for connection I/O.
//
// Every session holds a read buffer for the lifetime of its connection,
// and frame encoding produces short-lived scratch buffers. Pooling both
// keeps allocation churn flat as connections come and go.
//
// Three size tiers cover the chat workload:
//   - small (4KB): encoded control frames (acks, heartbeats, auth)
//   - read (64KB): per-session read buffers
//   - large (1MB): frames approaching the protocol size limit
//
// Requests above the large tier are allocated directly and never pooled,
// so an occasional oversized frame cannot pin memory.
//
// All operations are safe for concurrent use.
package bufpool

import (
	"sync"
)

// Buffer size classes. Overridable via NewPool for tests.
const (
	// DefaultSmallSize covers encoded control frames (4KB).
	DefaultSmallSize = 4 << 10

	// DefaultReadSize is the per-session read buffer size (64KB).
	DefaultReadSize = 64 << 10

	// DefaultLargeSize matches the default protocol frame limit (1MB).
	DefaultLargeSize = 1 << 20
)

// Pool manages byte slice pools organized by size class. It selects the
// smallest class that fits a request and falls back to direct allocation
// for oversized requests.
type Pool struct {
	small     sync.Pool
	read      sync.Pool
	large     sync.Pool
	smallSize int
	readSize  int
	largeSize int
}

// Config holds size-class overrides for a custom pool.
type Config struct {
	SmallSize int
	ReadSize  int
	LargeSize int
}

// NewPool creates a buffer pool. A nil config uses the default classes.
func NewPool(cfg *Config) *Pool {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.SmallSize <= 0 {
		cfg.SmallSize = DefaultSmallSize
	}
	if cfg.ReadSize <= 0 {
		cfg.ReadSize = DefaultReadSize
	}
	if cfg.LargeSize <= 0 {
		cfg.LargeSize = DefaultLargeSize
	}

	p := &Pool{
		smallSize: cfg.SmallSize,
		readSize:  cfg.ReadSize,
		largeSize: cfg.LargeSize,
	}

	p.small = sync.Pool{
		New: func() any {
			buf := make([]byte, p.smallSize)
			return &buf
		},
	}
	p.read = sync.Pool{
		New: func() any {
			buf := make([]byte, p.readSize)
			return &buf
		},
	}
	p.large = sync.Pool{
		New: func() any {
			buf := make([]byte, p.largeSize)
			return &buf
		},
	}

	return p
}

// Get returns a byte slice of at least the requested size. The slice
// capacity may exceed size to align with the pool classes. The caller
// must return it with Put; sizes above the large class are allocated
// directly and never pooled.
func (p *Pool) Get(size int) []byte {
	var bufPtr *[]byte

	switch {
	case size <= p.smallSize:
		bufPtr = p.small.Get().(*[]byte)
	case size <= p.readSize:
		bufPtr = p.read.Get().(*[]byte)
	case size <= p.largeSize:
		bufPtr = p.large.Get().(*[]byte)
	default:
		return make([]byte, size)
	}

	buf := *bufPtr
	return buf[:size]
}

// Put returns a buffer obtained from Get. Buffers that do not match a
// pool class capacity are dropped for normal garbage collection.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}

	switch cap(buf) {
	case p.smallSize:
		fullBuf := buf[:cap(buf)]
		p.small.Put(&fullBuf)
	case p.readSize:
		fullBuf := buf[:cap(buf)]
		p.read.Put(&fullBuf)
	case p.largeSize:
		fullBuf := buf[:cap(buf)]
		p.large.Put(&fullBuf)
	}
}

// globalPool is the shared pool used by the session layer.
var globalPool = NewPool(nil)

// Get returns a byte slice of at least the requested size from the
// global pool.
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Put returns a buffer to the global pool. Pair with Get, usually via
// defer.
func Put(buf []byte) {
	globalPool.Put(buf)
}
