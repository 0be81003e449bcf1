package protocol

import (
	"bytes"
	"testing"
)

func TestEncodeHeaderExactBytes(t *testing.T) {
	h := Header{Head: 0xFF, Version: 0, Session: 0x1234, Counter: 7, MsgID: 1000, DataLen: 42}
	got := Encode(h)
	want := []byte{
		0xFF, 0x00, 0x00, 0x00,
		0x34, 0x12, 0x00, 0x00,
		0x07, 0x00, 0x00, 0x00,
		0x00, 0x00, 0xE8, 0x03,
		0x2A, 0x00, 0x00, 0x00,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Encode() = % X, want % X", got, want)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	cases := []Header{
		{Head: 0xFF, Version: 0, Session: 0, Counter: 1, MsgID: 1000, DataLen: 0},
		{Head: 0xFF, Version: 1, Session: 0xDEADBEEF, Counter: 0xFFFFFFFF, MsgID: 0xFFFF, DataLen: 0xFFFFFFFF},
		{Head: 0xFE, Version: 0, Session: 1, Counter: 2, MsgID: 3, DataLen: 4},
	}
	for _, h := range cases {
		got, err := Decode(Encode(h))
		if err != nil {
			t.Fatalf("Decode returned error: %v", err)
		}
		if got != h {
			t.Fatalf("round-trip mismatch: got %+v, want %+v", got, h)
		}
	}
}

func TestDecodeShortHeader(t *testing.T) {
	_, err := Decode(make([]byte, HeaderSize-1))
	if err == nil {
		t.Fatal("expected error decoding undersized header")
	}
}

func TestWrapJSONLengthIncludesTail(t *testing.T) {
	body := []byte(`{"a":1}`)
	wrapped := WrapJSON(body, 0)
	if len(wrapped) != len(body)+2 {
		t.Fatalf("wrapped length = %d, want %d", len(wrapped), len(body)+2)
	}
	wrapped1 := WrapJSON(body, 1)
	if len(wrapped1) != len(body)+1 {
		t.Fatalf("v1 wrapped length = %d, want %d", len(wrapped1), len(body)+1)
	}
}

func TestUnwrapJSONStripsTail(t *testing.T) {
	body := []byte(`{"a":1}`)
	if got := UnwrapJSON(WrapJSON(body, 0)); !bytes.Equal(got, body) {
		t.Fatalf("UnwrapJSON(v0) = %q, want %q", got, body)
	}
	if got := UnwrapJSON(WrapJSON(body, 1)); !bytes.Equal(got, body) {
		t.Fatalf("UnwrapJSON(v1) = %q, want %q", got, body)
	}
}
