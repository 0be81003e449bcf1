// Package media parses DVRIP media frame payloads (video, JPEG, audio,
// metadata) into raw bytes plus lightweight classification metadata, and
// decodes the device's packed timestamp format into calendar time.
package media

import (
	"encoding/binary"
	"fmt"
	"time"

	protoerr "github.com/alxayo/dvrip-go/internal/errors"
)

// Tag values identifying a media frame's header layout. The first 4
// bytes of every media payload are this tag, big-endian; everything after
// it is little-endian.
const (
	TagIFrame   uint32 = 0x000001FC
	TagPFrame   uint32 = 0x000001FD
	TagJPEG     uint32 = 0x000001FE
	TagAudio    uint32 = 0x000001FA
	TagMetadata uint32 = 0x000001F9
	TagRawJPEG  uint32 = 0xFFD8FFE0
)

// Metadata describes a decoded media frame. Zero-valued optional fields mean
// "not applicable for this tag" rather than "zero".
type Metadata struct {
	Width      int       // pixels, tag width field * 8 (0 if not applicable)
	Height     int       // pixels, tag height field * 8 (0 if not applicable)
	FPS        int       // frames per second (0 if not applicable)
	FrameType  string     // "I" for TagIFrame, "P" for TagPFrame, "" otherwise
	Codec      string     // see codec mapping below, "" if unknown
	DeviceTime time.Time  // decoded device timestamp, zero value if not applicable
	HasTime    bool       // whether DeviceTime was actually carried by this frame
}

// ParseFrame reads the 4-byte big-endian tag at the start of payload,
// decodes the tag-specific header, and returns the frame body (truncated to
// its declared length) along with classification metadata. Unknown tags
// produce a ProtocolError so the caller can surface the anomaly instead of
// silently discarding bytes.
func ParseFrame(payload []byte) ([]byte, Metadata, error) {
	if len(payload) < 4 {
		return nil, Metadata{}, protoerr.NewProtocolError("media.parse", errTooShort)
	}
	tag := binary.BigEndian.Uint32(payload[0:4])

	switch tag {
	case TagIFrame, TagJPEG:
		if len(payload) < 16 {
			return nil, Metadata{}, protoerr.NewProtocolError("media.parse", errTooShort)
		}
		mediaKind := payload[4]
		fps := int(payload[5])
		width := int(payload[6]) * 8
		height := int(payload[7]) * 8
		deviceTimeRaw := binary.LittleEndian.Uint32(payload[8:12])
		length := binary.LittleEndian.Uint32(payload[12:16])

		md := Metadata{Width: width, Height: height, FPS: fps}
		md.DeviceTime, md.HasTime = DecodeDeviceTime(deviceTimeRaw), true
		if tag == TagIFrame {
			md.FrameType = "I"
			md.Codec = codecForVideo(mediaKind)
		} else {
			md.Codec = codecForJPEG(mediaKind)
		}
		return truncate(payload[16:], length), md, nil

	case TagPFrame:
		if len(payload) < 8 {
			return nil, Metadata{}, protoerr.NewProtocolError("media.parse", errTooShort)
		}
		length := binary.LittleEndian.Uint32(payload[4:8])
		md := Metadata{FrameType: "P"}
		return truncate(payload[8:], length), md, nil

	case TagAudio:
		if len(payload) < 8 {
			return nil, Metadata{}, protoerr.NewProtocolError("media.parse", errTooShort)
		}
		mediaKind := payload[4]
		length := binary.LittleEndian.Uint16(payload[6:8])
		md := Metadata{Codec: codecForAudio(mediaKind)}
		return truncate(payload[8:], uint32(length)), md, nil

	case TagMetadata:
		if len(payload) < 8 {
			return nil, Metadata{}, protoerr.NewProtocolError("media.parse", errTooShort)
		}
		mediaKind := payload[4]
		length := binary.LittleEndian.Uint16(payload[6:8])
		md := Metadata{Codec: codecForMetadata(mediaKind)}
		return truncate(payload[8:], uint32(length)), md, nil

	case TagRawJPEG:
		return payload, Metadata{Codec: "jpeg"}, nil

	default:
		return nil, Metadata{}, protoerr.NewProtocolError("media.parse", fmt.Errorf("unknown data type: 0x%X", tag))
	}
}

func truncate(b []byte, length uint32) []byte {
	if uint32(len(b)) < length {
		return b
	}
	return b[:length]
}

func codecForVideo(mediaKind byte) string {
	switch mediaKind {
	case 1:
		return "mpeg4"
	case 2:
		return "h264"
	case 3:
		return "h265"
	default:
		return ""
	}
}

func codecForJPEG(mediaKind byte) string {
	if mediaKind == 0 {
		return "jpeg"
	}
	return ""
}

func codecForAudio(mediaKind byte) string {
	if mediaKind == 0xE {
		return "g711a"
	}
	return ""
}

func codecForMetadata(mediaKind byte) string {
	if mediaKind == 1 || mediaKind == 6 {
		return "info"
	}
	return ""
}

var errTooShort = shortPayloadError{}

type shortPayloadError struct{}

func (shortPayloadError) Error() string { return "media payload too short for its tag's header" }
