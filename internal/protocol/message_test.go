package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

func TestEncodeLayout(t *testing.T) {
	msg := Auth("alice", "secretpw")
	frame := msg.Encode()

	if got := binary.BigEndian.Uint16(frame); got != Magic {
		t.Errorf("magic: got 0x%04x, want 0x%04x", got, Magic)
	}
	if frame[2] != Version {
		t.Errorf("version: got 0x%02x, want 0x%02x", frame[2], Version)
	}
	if MessageType(frame[3]) != TypeAuth {
		t.Errorf("type: got 0x%02x, want 0x%02x", frame[3], byte(TypeAuth))
	}
	if count := binary.BigEndian.Uint32(frame[4:8]); count != 2 {
		t.Errorf("field count: got %d, want 2", count)
	}

	// First field: "alice"
	l := binary.BigEndian.Uint32(frame[8:12])
	if l != 5 || !bytes.Equal(frame[12:17], []byte("alice")) {
		t.Errorf("first field mismatch: len=%d data=%q", l, frame[12:17])
	}

	if len(frame) != msg.EncodedSize() {
		t.Errorf("EncodedSize: got %d, want %d", msg.EncodedSize(), len(frame))
	}
}

func TestChecksumCoversAllFields(t *testing.T) {
	a := DirectMessageSend("bob", "hello")
	b := DirectMessageSend("bob", "hellp")

	if a.Checksum() == b.Checksum() {
		t.Error("different payloads should produce different checksums")
	}

	// Empty payload checksums to CRC-32 of nothing.
	if got := Ack().Checksum(); got != 0 {
		t.Errorf("empty payload checksum: got %d, want 0", got)
	}
}

func TestMessageTypeFromUnknown(t *testing.T) {
	if got := MessageTypeFrom(0x7e); got != TypeEmpty {
		t.Errorf("unknown type byte should decode as Empty, got %v", got)
	}
	if got := MessageTypeFrom(0xff); got != TypeBreak {
		t.Errorf("0xff should decode as Break, got %v", got)
	}
}

func TestFieldAccessors(t *testing.T) {
	msg := DirectMessageReceive("carol", "hi there")

	if got := msg.FieldString(0); got != "carol" {
		t.Errorf("FieldString(0): got %q, want %q", got, "carol")
	}
	if got := msg.FieldString(1); got != "hi there" {
		t.Errorf("FieldString(1): got %q, want %q", got, "hi there")
	}
	if got := msg.FieldString(5); got != "" {
		t.Errorf("out-of-range FieldString should be empty, got %q", got)
	}
}

func TestShutdownGraceRoundTrip(t *testing.T) {
	msg := ServerShutdown(45 * time.Second)

	secs, err := msg.FieldUint64(0)
	if err != nil {
		t.Fatalf("FieldUint64: %v", err)
	}
	if secs != 45 {
		t.Errorf("grace seconds: got %d, want 45", secs)
	}

	if _, err := msg.FieldUint64(1); err == nil {
		t.Error("expected error for missing field")
	}
}

func TestHeartbeatTimestamp(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	msg := Heartbeat(at)

	parsed, err := time.Parse(time.RFC3339, msg.FieldString(0))
	if err != nil {
		t.Fatalf("heartbeat payload is not RFC3339: %v", err)
	}
	if !parsed.Equal(at) {
		t.Errorf("heartbeat timestamp: got %v, want %v", parsed, at)
	}
}
