package media

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func buildIFrame(payload []byte, mediaKind, fps, width8, height8 byte, deviceTime uint32) []byte {
	buf := make([]byte, 16+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], TagIFrame)
	buf[4] = mediaKind
	buf[5] = fps
	buf[6] = width8
	buf[7] = height8
	binary.LittleEndian.PutUint32(buf[8:12], deviceTime)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(payload)))
	copy(buf[16:], payload)
	return buf
}

func TestParseFrameIFrame(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	raw := buildIFrame(payload, 2, 25, 80, 45, 0x30C78888)
	body, md, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame error: %v", err)
	}
	if !bytes.Equal(body, payload) {
		t.Fatalf("body = % X, want % X", body, payload)
	}
	if md.Width != 640 || md.Height != 360 || md.FPS != 25 {
		t.Fatalf("metadata dims = %+v", md)
	}
	if md.FrameType != "I" || md.Codec != "h264" {
		t.Fatalf("metadata codec/type = %+v", md)
	}
	if !md.HasTime {
		t.Fatal("expected HasTime true for I-frame")
	}
}

func TestParseFramePFrame(t *testing.T) {
	payload := []byte{9, 9, 9}
	buf := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], TagPFrame)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[8:], payload)

	body, md, err := ParseFrame(buf)
	if err != nil {
		t.Fatalf("ParseFrame error: %v", err)
	}
	if !bytes.Equal(body, payload) {
		t.Fatalf("body = % X, want % X", body, payload)
	}
	if md.FrameType != "P" {
		t.Fatalf("frame type = %q, want P", md.FrameType)
	}
	if md.Codec != "" {
		t.Fatalf("codec = %q, want empty: P-frame headers carry no media-kind byte to derive a codec from", md.Codec)
	}
}

func TestParseFrameAudio(t *testing.T) {
	payload := []byte{1, 2}
	buf := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], TagAudio)
	buf[4] = 0xE
	buf[5] = 2
	binary.LittleEndian.PutUint16(buf[6:8], uint16(len(payload)))
	copy(buf[8:], payload)

	body, md, err := ParseFrame(buf)
	if err != nil {
		t.Fatalf("ParseFrame error: %v", err)
	}
	if !bytes.Equal(body, payload) {
		t.Fatalf("body = % X, want % X", body, payload)
	}
	if md.Codec != "g711a" {
		t.Fatalf("codec = %q, want g711a", md.Codec)
	}
}

func TestParseFrameRawJPEG(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3}
	body, md, err := ParseFrame(payload)
	if err != nil {
		t.Fatalf("ParseFrame error: %v", err)
	}
	if !bytes.Equal(body, payload) {
		t.Fatalf("body = % X, want % X (raw JPEG is passthrough)", body, payload)
	}
	if md.Codec != "jpeg" {
		t.Fatalf("codec = %q, want jpeg", md.Codec)
	}
}

func TestParseFrameUnknownTag(t *testing.T) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], 0xDEADBEEF)
	_, _, err := ParseFrame(buf)
	if err == nil {
		t.Fatal("expected error for unknown tag")
	}
}
