package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

// drain feeds nothing further and collects every complete message.
func drain(t *testing.T, f *Framer) []*Message {
	t.Helper()
	var out []*Message
	for {
		msg, err := f.Next()
		if err != nil {
			t.Fatalf("unexpected framing error: %v", err)
		}
		if msg == nil {
			return out
		}
		out = append(out, msg)
	}
}

func TestSingleFrameRoundTrip(t *testing.T) {
	f := NewFramer(FramerConfig{})
	f.Feed(Auth("alice", "secretpw").Encode())

	msgs := drain(t, f)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Type != TypeAuth {
		t.Errorf("type: got %v, want Auth", msgs[0].Type)
	}
	if msgs[0].FieldString(0) != "alice" || msgs[0].FieldString(1) != "secretpw" {
		t.Errorf("fields mismatch: %q %q", msgs[0].FieldString(0), msgs[0].FieldString(1))
	}
	if f.Buffered() != 0 {
		t.Errorf("expected empty buffer, %d bytes left", f.Buffered())
	}
}

// TestChunkingInvariance verifies the framer reconstructs the identical
// ordered frame sequence regardless of how the byte stream is chunked.
func TestChunkingInvariance(t *testing.T) {
	stream := bytes.Join([][]byte{
		Auth("alice", "secretpw").Encode(),
		DirectMessageSend("bob", "hello bob, how are you?").Encode(),
		Heartbeat(testTime()).Encode(),
		Disconnect().Encode(),
	}, nil)

	wantTypes := []MessageType{TypeAuth, TypeDirectMessageSend, TypeHeartbeat, TypeDisconnect}

	for _, chunkSize := range []int{1, 2, 3, 7, 16, 64, len(stream)} {
		f := NewFramer(FramerConfig{})
		var got []*Message

		for off := 0; off < len(stream); off += chunkSize {
			end := off + chunkSize
			if end > len(stream) {
				end = len(stream)
			}
			f.Feed(stream[off:end])
			got = append(got, drain(t, f)...)
		}

		if len(got) != len(wantTypes) {
			t.Fatalf("chunk=%d: got %d messages, want %d", chunkSize, len(got), len(wantTypes))
		}
		for i, want := range wantTypes {
			if got[i].Type != want {
				t.Errorf("chunk=%d: message %d type %v, want %v", chunkSize, i, got[i].Type, want)
			}
		}
		if got[1].FieldString(1) != "hello bob, how are you?" {
			t.Errorf("chunk=%d: payload corrupted: %q", chunkSize, got[1].FieldString(1))
		}
	}
}

func TestIncompleteFrameStaysBuffered(t *testing.T) {
	frame := DirectMessageSend("bob", "partial").Encode()

	f := NewFramer(FramerConfig{})
	f.Feed(frame[:len(frame)-1])

	msg, err := f.Next()
	if err != nil {
		t.Fatalf("unexpected error on incomplete frame: %v", err)
	}
	if msg != nil {
		t.Fatal("incomplete frame must not produce a message")
	}

	f.Feed(frame[len(frame)-1:])
	msgs := drain(t, f)
	if len(msgs) != 1 || msgs[0].FieldString(1) != "partial" {
		t.Fatalf("frame not completed after final byte: %+v", msgs)
	}
}

func TestBadMagic(t *testing.T) {
	f := NewFramer(FramerConfig{})
	f.Feed([]byte{0xde, 0xad, 0x01, 0x01})

	if _, err := f.Next(); !errors.Is(err, ErrBadMagic) {
		t.Errorf("expected ErrBadMagic, got %v", err)
	}
}

func TestBadVersion(t *testing.T) {
	frame := Ack().Encode()
	frame[2] = 0x02

	f := NewFramer(FramerConfig{})
	f.Feed(frame)

	if _, err := f.Next(); !errors.Is(err, ErrBadVersion) {
		t.Errorf("expected ErrBadVersion, got %v", err)
	}
}

func TestChecksumMismatch(t *testing.T) {
	frame := Auth("alice", "secretpw").Encode()
	frame[len(frame)-1] ^= 0xff

	f := NewFramer(FramerConfig{})
	f.Feed(frame)

	if _, err := f.Next(); !errors.Is(err, ErrChecksum) {
		t.Errorf("expected ErrChecksum, got %v", err)
	}
}

// TestOversizedDeclaredFrame verifies the declared field length alone is
// enough to reject a frame, before its payload bytes ever arrive.
func TestOversizedDeclaredFrame(t *testing.T) {
	var frame []byte
	frame = binary.BigEndian.AppendUint16(frame, Magic)
	frame = append(frame, Version, byte(TypeDirectMessageSend))
	frame = binary.BigEndian.AppendUint32(frame, 1)
	frame = binary.BigEndian.AppendUint32(frame, 1<<30) // absurd field length

	f := NewFramer(FramerConfig{MaxFrameSize: 1024})
	f.Feed(frame)

	if _, err := f.Next(); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
}

// TestOversizedTrickle verifies buffered-but-incomplete data exceeding the
// limit fails rather than growing without bound.
func TestOversizedTrickle(t *testing.T) {
	f := NewFramer(FramerConfig{MaxFrameSize: 10})

	var header []byte
	header = binary.BigEndian.AppendUint16(header, Magic)
	header = append(header, Version, byte(TypeEmpty))
	header = binary.BigEndian.AppendUint32(header, 1)
	f.Feed(header)

	if msg, err := f.Next(); msg != nil || err != nil {
		t.Fatalf("header alone should be incomplete, got %v %v", msg, err)
	}

	// Trickle field-length bytes one at a time; the frame never completes
	// but buffered bytes cross the limit.
	f.Feed([]byte{0x00, 0x00, 0x00})

	if _, err := f.Next(); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestTooManyFields(t *testing.T) {
	var frame []byte
	frame = binary.BigEndian.AppendUint16(frame, Magic)
	frame = append(frame, Version, byte(TypeEmpty))
	frame = binary.BigEndian.AppendUint32(frame, 1000)

	f := NewFramer(FramerConfig{MaxFields: 8})
	f.Feed(frame)

	if _, err := f.Next(); !errors.Is(err, ErrTooManyFields) {
		t.Errorf("expected ErrTooManyFields, got %v", err)
	}
}

// TestPoisonedAfterError verifies a framer returns the same error forever
// once the stream is corrupt; the session must be torn down, not resumed.
func TestPoisonedAfterError(t *testing.T) {
	f := NewFramer(FramerConfig{})
	f.Feed([]byte{0x00, 0x00})

	_, err1 := f.Next()
	if !errors.Is(err1, ErrFraming) {
		t.Fatalf("expected framing error, got %v", err1)
	}

	f.Feed(Ack().Encode())
	_, err2 := f.Next()
	if !errors.Is(err2, ErrFraming) {
		t.Errorf("poisoned framer must keep failing, got %v", err2)
	}
}

func testTime() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}
