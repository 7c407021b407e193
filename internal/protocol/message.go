// Package protocol implements the chatd binary wire format.
//
// Every frame on the wire has the layout (all integers big-endian):
//
//	magic    uint16  0x5918
//	version  uint8   0x01
//	type     uint8
//	count    uint32  number of payload fields
//	fields   count x (length uint32, data [length]byte)
//	checksum uint32  IEEE CRC-32 over the concatenated field data
//
// Payload fields are opaque byte strings; their meaning depends on the
// message type. Decoding is performed exclusively by the Framer, which
// reassembles frames from an arbitrarily chunked byte stream.
package protocol

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"
)

// Magic marks the start of every frame.
const Magic uint16 = 0x5918

// Version is the only protocol version chatd speaks.
const Version byte = 0x01

// headerSize is magic + version + type + field count.
const headerSize = 2 + 1 + 1 + 4

// checksumSize is the trailing CRC-32.
const checksumSize = 4

// MessageType identifies the semantics of a frame.
type MessageType byte

const (
	TypeEmpty      MessageType = 0x00
	TypeAck        MessageType = 0x01
	TypeNack       MessageType = 0x02
	TypeDisconnect MessageType = 0x03
	TypeHeartbeat  MessageType = 0x04

	TypeAuth        MessageType = 0x10
	TypeAuthCreate  MessageType = 0x11
	TypeAuthSuccess MessageType = 0x12
	TypeAuthFailure MessageType = 0x13

	TypeServerDebugLog        MessageType = 0x20
	TypeServerShutdown        MessageType = 0x21
	TypeServerShutdownWarning MessageType = 0x22

	TypeDirectMessageSend    MessageType = 0x30
	TypeDirectMessageReceive MessageType = 0x31
	TypeMessageError         MessageType = 0x32

	TypeBreak MessageType = 0xff
)

// MessageTypeFrom maps a wire byte to a MessageType. Unknown values decode
// as TypeEmpty, matching the lenient behavior clients rely on.
func MessageTypeFrom(b byte) MessageType {
	switch t := MessageType(b); t {
	case TypeAck, TypeNack, TypeDisconnect, TypeHeartbeat,
		TypeAuth, TypeAuthCreate, TypeAuthSuccess, TypeAuthFailure,
		TypeServerDebugLog, TypeServerShutdown, TypeServerShutdownWarning,
		TypeDirectMessageSend, TypeDirectMessageReceive, TypeMessageError,
		TypeBreak:
		return t
	default:
		return TypeEmpty
	}
}

func (t MessageType) String() string {
	switch t {
	case TypeEmpty:
		return "Empty"
	case TypeAck:
		return "Ack"
	case TypeNack:
		return "Nack"
	case TypeDisconnect:
		return "Disconnect"
	case TypeHeartbeat:
		return "Heartbeat"
	case TypeAuth:
		return "Auth"
	case TypeAuthCreate:
		return "AuthCreate"
	case TypeAuthSuccess:
		return "AuthSuccess"
	case TypeAuthFailure:
		return "AuthFailure"
	case TypeServerDebugLog:
		return "ServerDebugLog"
	case TypeServerShutdown:
		return "ServerShutdown"
	case TypeServerShutdownWarning:
		return "ServerShutdownWarning"
	case TypeDirectMessageSend:
		return "DirectMessageSend"
	case TypeDirectMessageReceive:
		return "DirectMessageReceive"
	case TypeMessageError:
		return "MessageError"
	case TypeBreak:
		return "Break"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", byte(t))
	}
}

// Message is one complete logical request or response unit.
type Message struct {
	Type   MessageType
	Fields [][]byte
}

// New builds a message of the given type with the given payload fields.
func New(t MessageType, fields ...[]byte) *Message {
	return &Message{Type: t, Fields: fields}
}

// Ack returns an empty acknowledgement.
func Ack() *Message { return New(TypeAck) }

// Nack returns an empty negative acknowledgement.
func Nack() *Message { return New(TypeNack) }

// Disconnect returns a disconnect notification.
func Disconnect() *Message { return New(TypeDisconnect) }

// Break returns a stream break marker.
func Break() *Message { return New(TypeBreak) }

// Heartbeat returns a heartbeat carrying the given timestamp in RFC 3339.
func Heartbeat(at time.Time) *Message {
	return New(TypeHeartbeat, []byte(at.Format(time.RFC3339)))
}

// Auth returns a login request.
func Auth(username, password string) *Message {
	return New(TypeAuth, []byte(username), []byte(password))
}

// AuthCreate returns a registration request.
func AuthCreate(username, password string) *Message {
	return New(TypeAuthCreate, []byte(username), []byte(password))
}

// AuthSuccess returns a successful authentication response.
func AuthSuccess() *Message { return New(TypeAuthSuccess) }

// AuthFailure returns a failed authentication response with a reason.
func AuthFailure(reason string) *Message {
	return New(TypeAuthFailure, []byte(reason))
}

// DirectMessageSend returns a client request to deliver text to recipient.
func DirectMessageSend(recipient, text string) *Message {
	return New(TypeDirectMessageSend, []byte(recipient), []byte(text))
}

// DirectMessageReceive returns the server-side delivery of text from sender.
func DirectMessageReceive(sender, text string) *Message {
	return New(TypeDirectMessageReceive, []byte(sender), []byte(text))
}

// MessageError returns a delivery failure response with a reason.
func MessageError(reason string) *Message {
	return New(TypeMessageError, []byte(reason))
}

// ServerShutdown returns an admin request to shut the server down after
// the given grace period.
func ServerShutdown(grace time.Duration) *Message {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(grace/time.Second))
	return New(TypeServerShutdown, buf[:])
}

// ServerShutdownWarning returns the broadcast sent to all sessions before
// a server shutdown, carrying the grace period in seconds.
func ServerShutdownWarning(grace time.Duration) *Message {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(grace/time.Second))
	return New(TypeServerShutdownWarning, buf[:])
}

// Is reports whether the message has the given type.
func (m *Message) Is(t MessageType) bool { return m.Type == t }

// FieldString returns payload field i as a string, or "" if absent.
func (m *Message) FieldString(i int) string {
	if i < 0 || i >= len(m.Fields) {
		return ""
	}
	return string(m.Fields[i])
}

// FieldUint64 returns payload field i decoded as a big-endian uint64.
func (m *Message) FieldUint64(i int) (uint64, error) {
	if i < 0 || i >= len(m.Fields) {
		return 0, fmt.Errorf("payload field %d missing", i)
	}
	if len(m.Fields[i]) != 8 {
		return 0, fmt.Errorf("payload field %d: expected 8 bytes, got %d", i, len(m.Fields[i]))
	}
	return binary.BigEndian.Uint64(m.Fields[i]), nil
}

// Checksum computes the IEEE CRC-32 over the concatenated field data.
func (m *Message) Checksum() uint32 {
	crc := crc32.NewIEEE()
	for _, f := range m.Fields {
		_, _ = crc.Write(f)
	}
	return crc.Sum32()
}

// EncodedSize returns the number of bytes Encode will produce.
func (m *Message) EncodedSize() int {
	size := headerSize + checksumSize
	for _, f := range m.Fields {
		size += 4 + len(f)
	}
	return size
}

// Encode serializes the message into a complete wire frame.
func (m *Message) Encode() []byte {
	buf := make([]byte, 0, m.EncodedSize())

	buf = binary.BigEndian.AppendUint16(buf, Magic)
	buf = append(buf, Version, byte(m.Type))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(m.Fields)))

	for _, f := range m.Fields {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(f)))
		buf = append(buf, f...)
	}

	buf = binary.BigEndian.AppendUint32(buf, m.Checksum())
	return buf
}
