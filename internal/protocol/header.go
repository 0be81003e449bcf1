// Package protocol implements the DVRIP wire framing: the fixed 20-byte
// packet header, the JSON payload tail discipline, and the vendor message-id
// and hash tables that every higher layer consults before it touches a
// socket.
package protocol

import (
	"encoding/binary"

	protoerr "github.com/alxayo/dvrip-go/internal/errors"
)

// HeaderSize is the length in bytes of an encoded Header.
const HeaderSize = 20

// DefaultMagic is the head byte every outbound frame uses. Devices have been
// observed echoing 0xFE in some firmware variants; Decode does not reject it.
const DefaultMagic = 0xFF

// Header is the fixed-size frame header that precedes every DVRIP payload.
type Header struct {
	Head     uint8  // byte 0: magic, nominally 0xFF
	Version  uint8  // byte 1: 0 (tail "\n\x00") or 1 (tail "\x00")
	Session  uint32 // bytes 4-7: session id, little-endian
	Counter  uint32 // bytes 8-11: packet counter, little-endian
	MsgID    uint16 // bytes 14-15: message id, little-endian
	DataLen  uint32 // bytes 16-19: payload length including tail, little-endian
}

// Encode serializes h into a 20-byte frame header. Bytes 2-3 and 12-13 are
// reserved and always written as zero.
func Encode(h Header) []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = h.Head
	buf[1] = h.Version
	binary.LittleEndian.PutUint32(buf[4:8], h.Session)
	binary.LittleEndian.PutUint32(buf[8:12], h.Counter)
	binary.LittleEndian.PutUint16(buf[14:16], h.MsgID)
	binary.LittleEndian.PutUint32(buf[16:20], h.DataLen)
	return buf
}

// Decode parses a 20-byte frame header. It is total on any buffer of at
// least HeaderSize bytes; malformed magic bytes are passed through, not
// rejected, since some firmware revisions send 0xFE instead of 0xFF.
func Decode(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, protoerr.NewProtocolError("header.decode", errShortHeader)
	}
	return Header{
		Head:    buf[0],
		Version: buf[1],
		Session: binary.LittleEndian.Uint32(buf[4:8]),
		Counter: binary.LittleEndian.Uint32(buf[8:12]),
		MsgID:   binary.LittleEndian.Uint16(buf[14:16]),
		DataLen: binary.LittleEndian.Uint32(buf[16:20]),
	}, nil
}

var errShortHeader = shortHeaderError{}

type shortHeaderError struct{}

func (shortHeaderError) Error() string { return "header too small" }

// Tail returns the payload terminator bytes for the given protocol version:
// "\x0a\x00" for version 0, "\x00" for version 1.
func Tail(version uint8) []byte {
	if version == 1 {
		return []byte{0x00}
	}
	return []byte{0x0a, 0x00}
}

// WrapJSON appends the version-appropriate tail to a JSON-encoded payload.
// The returned slice's length is what DataLen must carry.
func WrapJSON(body []byte, version uint8) []byte {
	tail := Tail(version)
	out := make([]byte, 0, len(body)+len(tail))
	out = append(out, body...)
	out = append(out, tail...)
	return out
}

// UnwrapJSON strips a tail of 1 or 2 bytes from a received payload, returning
// the bare JSON bytes. It accepts either tail convention since the version
// byte is not always reliably echoed by every device.
func UnwrapJSON(payload []byte) []byte {
	n := len(payload)
	switch {
	case n >= 2 && payload[n-2] == 0x0a && payload[n-1] == 0x00:
		return payload[:n-2]
	case n >= 1 && payload[n-1] == 0x00:
		return payload[:n-1]
	default:
		return payload
	}
}
