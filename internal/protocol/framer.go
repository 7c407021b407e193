package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Framing violations close the owning session. They are all classified by
// errors.Is against ErrFraming.
var (
	// ErrFraming is the class sentinel for all framing violations.
	ErrFraming = errors.New("framing violation")

	// ErrBadMagic indicates the stream does not start with the frame magic.
	ErrBadMagic = fmt.Errorf("%w: bad magic", ErrFraming)

	// ErrBadVersion indicates an unsupported protocol version byte.
	ErrBadVersion = fmt.Errorf("%w: unsupported version", ErrFraming)

	// ErrChecksum indicates the payload checksum did not match.
	ErrChecksum = fmt.Errorf("%w: checksum mismatch", ErrFraming)

	// ErrFrameTooLarge indicates a frame exceeds the configured maximum size.
	ErrFrameTooLarge = fmt.Errorf("%w: frame too large", ErrFraming)

	// ErrTooManyFields indicates a frame declares more payload fields than allowed.
	ErrTooManyFields = fmt.Errorf("%w: too many payload fields", ErrFraming)
)

// Default Framer limits. MaxFrameSize bounds memory held per session for a
// partially received frame.
const (
	DefaultMaxFrameSize = 1 << 20 // 1MiB
	DefaultMaxFields    = 64
)

// FramerConfig bounds what the Framer will buffer and decode.
type FramerConfig struct {
	// MaxFrameSize is the maximum encoded frame size in bytes, including
	// header and checksum. 0 uses DefaultMaxFrameSize.
	MaxFrameSize int

	// MaxFields is the maximum number of payload fields per frame.
	// 0 uses DefaultMaxFields.
	MaxFields int
}

// Framer reassembles complete frames from an arbitrarily chunked byte
// stream. Bytes are appended with Feed in arrival order; Next yields
// complete messages in exactly that order. Incomplete trailing bytes stay
// buffered until the next Feed.
//
// A Framer is owned by a single session and is not safe for concurrent use.
// After Next returns a framing error the Framer is poisoned and every
// subsequent call returns the same error; the session must be closed.
type Framer struct {
	cfg FramerConfig
	buf []byte
	err error
}

// NewFramer creates a Framer with the given limits.
func NewFramer(cfg FramerConfig) *Framer {
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = DefaultMaxFrameSize
	}
	if cfg.MaxFields <= 0 {
		cfg.MaxFields = DefaultMaxFields
	}
	return &Framer{cfg: cfg}
}

// Feed appends a chunk of received bytes to the reassembly buffer.
func (f *Framer) Feed(p []byte) {
	if f.err != nil {
		return
	}
	f.buf = append(f.buf, p...)
}

// Buffered returns the number of bytes awaiting reassembly.
func (f *Framer) Buffered() int { return len(f.buf) }

// Next returns the next complete message, or (nil, nil) when the buffered
// bytes do not yet form a complete frame.
func (f *Framer) Next() (*Message, error) {
	if f.err != nil {
		return nil, f.err
	}

	msg, consumed, err := f.decode()
	if err != nil {
		f.err = err
		f.buf = nil
		return nil, err
	}
	if msg == nil {
		// Incomplete. The size checks in decode ran against everything
		// buffered so far, so an oversized partial frame has already
		// failed rather than accumulating without bound.
		return nil, nil
	}

	f.buf = f.buf[consumed:]
	return msg, nil
}

// decode attempts to parse one frame from the front of the buffer.
// It validates eagerly: magic, version, and declared sizes are checked as
// soon as their bytes are available, so a malicious peer is rejected
// before the server buffers a full bogus frame.
func (f *Framer) decode() (*Message, int, error) {
	buf := f.buf

	if len(buf) >= 2 && binary.BigEndian.Uint16(buf) != Magic {
		return nil, 0, ErrBadMagic
	}
	if len(buf) >= 3 && buf[2] != Version {
		return nil, 0, ErrBadVersion
	}
	if len(buf) < headerSize {
		return nil, 0, f.checkIncompleteSize()
	}

	msgType := MessageTypeFrom(buf[3])
	count := binary.BigEndian.Uint32(buf[4:8])
	if count > uint32(f.cfg.MaxFields) {
		return nil, 0, fmt.Errorf("%w: %d > %d", ErrTooManyFields, count, f.cfg.MaxFields)
	}

	fields := make([][]byte, 0, count)
	off := headerSize
	for i := uint32(0); i < count; i++ {
		if len(buf) < off+4 {
			return nil, 0, f.checkIncompleteSize()
		}
		fieldLen := int(binary.BigEndian.Uint32(buf[off : off+4]))
		off += 4

		// The declared length alone can prove the frame oversized, even
		// before its bytes arrive.
		if off+fieldLen+checksumSize > f.cfg.MaxFrameSize {
			return nil, 0, fmt.Errorf("%w: declared size exceeds %d bytes", ErrFrameTooLarge, f.cfg.MaxFrameSize)
		}
		if len(buf) < off+fieldLen {
			return nil, 0, f.checkIncompleteSize()
		}

		field := make([]byte, fieldLen)
		copy(field, buf[off:off+fieldLen])
		fields = append(fields, field)
		off += fieldLen
	}

	if len(buf) < off+checksumSize {
		return nil, 0, f.checkIncompleteSize()
	}
	wantSum := binary.BigEndian.Uint32(buf[off : off+checksumSize])
	off += checksumSize

	msg := &Message{Type: msgType, Fields: fields}
	if msg.Checksum() != wantSum {
		return nil, 0, ErrChecksum
	}

	return msg, off, nil
}

// checkIncompleteSize guards against a peer that trickles an endless frame:
// buffered-but-incomplete data must never exceed the frame size limit.
func (f *Framer) checkIncompleteSize() error {
	if len(f.buf) > f.cfg.MaxFrameSize {
		return fmt.Errorf("%w: %d buffered bytes without a complete frame", ErrFrameTooLarge, len(f.buf))
	}
	return nil
}
