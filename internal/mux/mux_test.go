package mux

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/alxayo/dvrip-go/internal/protocol"
)

func newPipePair(t *testing.T) (local *Mux, remote net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	m := New(a)
	m.Start(context.Background())
	t.Cleanup(func() { _ = m.Close() })
	return m, b
}

func writeFrame(t *testing.T, conn net.Conn, h protocol.Header, body []byte) {
	t.Helper()
	if _, err := conn.Write(protocol.Encode(h)); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if len(body) > 0 {
		if _, err := conn.Write(body); err != nil {
			t.Fatalf("write body: %v", err)
		}
	}
}

func TestMuxWaiterDeliversResponse(t *testing.T) {
	m, remote := newPipePair(t)
	defer remote.Close()

	resp := make(chan Frame, 1)
	req := &Request{
		Header:      protocol.Header{Head: 0xFF, MsgID: 1000, DataLen: 0},
		AutoCounter: true,
		Response:    resp,
	}
	if err := m.Submit(context.Background(), req); err != nil {
		t.Fatalf("submit: %v", err)
	}

	hdrBuf := make([]byte, protocol.HeaderSize)
	if _, err := io.ReadFull(remote, hdrBuf); err != nil {
		t.Fatalf("read header on remote: %v", err)
	}
	gotHdr, err := protocol.Decode(hdrBuf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if gotHdr.Counter != 1 {
		t.Fatalf("writer-assigned counter = %d, want 1", gotHdr.Counter)
	}

	replyBody := []byte(`{"Ret":100}`)
	writeFrame(t, remote, protocol.Header{Head: 0xFF, Counter: 1, MsgID: 1001, DataLen: uint32(len(replyBody))}, replyBody)

	select {
	case f := <-resp:
		if string(f.Body) != string(replyBody) {
			t.Fatalf("body = %q, want %q", f.Body, replyBody)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for waiter delivery")
	}
}

func TestMuxOddResponseCounterQuirk(t *testing.T) {
	m, remote := newPipePair(t)
	defer remote.Close()

	resp := make(chan Frame, 1)
	req := &Request{
		Header:      protocol.Header{Head: 0xFF, MsgID: 0x0585, DataLen: 0},
		AutoCounter: true,
		Response:    resp,
	}
	if err := m.Submit(context.Background(), req); err != nil {
		t.Fatalf("submit: %v", err)
	}

	hdrBuf := make([]byte, protocol.HeaderSize)
	if _, err := io.ReadFull(remote, hdrBuf); err != nil {
		t.Fatalf("read header: %v", err)
	}
	gotHdr, _ := protocol.Decode(hdrBuf)
	requestCounter := gotHdr.Counter

	// Reply is keyed by requestCounter+1 per the device quirk.
	writeFrame(t, remote, protocol.Header{Head: 0xFF, Counter: requestCounter + 1, MsgID: 0x0586}, nil)

	select {
	case f := <-resp:
		if f.Header.Counter != requestCounter+1 {
			t.Fatalf("delivered counter = %d, want %d", f.Header.Counter, requestCounter+1)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out: odd-counter reply was not routed to the waiter")
	}
}

func TestMuxStreamHandlerReceivesInOrder(t *testing.T) {
	m, remote := newPipePair(t)
	defer remote.Close()

	ch := make(chan Frame, 10)
	const tag uint16 = 0x1FC
	m.RegisterStream(tag, ch)
	defer m.UnregisterStream(tag)

	for i := 0; i < 5; i++ {
		body := make([]byte, 4)
		binary.LittleEndian.PutUint32(body, uint32(i))
		writeFrame(t, remote, protocol.Header{Head: 0xFF, MsgID: tag, DataLen: uint32(len(body))}, body)
	}

	for i := 0; i < 5; i++ {
		select {
		case f := <-ch:
			got := binary.LittleEndian.Uint32(f.Body)
			if got != uint32(i) {
				t.Fatalf("frame %d out of order: got %d", i, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d", i)
		}
	}
}

func TestMuxDefaultVideoHandlerTakesPrecedence(t *testing.T) {
	m, remote := newPipePair(t)
	defer remote.Close()

	delivered := make(chan Frame, 1)
	m.SetVideoHandler(func(f Frame) { delivered <- f })
	m.EnableVideo(true)

	// Also register a stream handler for the same msg id; the default
	// handler must win regardless.
	streamCh := make(chan Frame, 1)
	m.RegisterStream(VideoMsgID, streamCh)

	writeFrame(t, remote, protocol.Header{Head: 0xFF, MsgID: VideoMsgID, DataLen: 0}, nil)

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("default video handler did not receive frame")
	}

	select {
	case <-streamCh:
		t.Fatal("stream handler should not have received the frame")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMuxCloseIsIdempotentAndDropsWaiters(t *testing.T) {
	m, remote := newPipePair(t)
	defer remote.Close()

	resp := make(chan Frame, 1)
	_ = m.Submit(context.Background(), &Request{
		Header:      protocol.Header{Head: 0xFF, MsgID: 1000},
		AutoCounter: true,
		Response:    resp,
	})

	// Drain the header bytes so we know the writer has actually processed
	// the request (and therefore registered the waiter) before closing.
	hdrBuf := make([]byte, protocol.HeaderSize)
	if _, err := io.ReadFull(remote, hdrBuf); err != nil {
		t.Fatalf("read header: %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	select {
	case _, ok := <-resp:
		if ok {
			t.Fatal("expected waiter channel to be closed, not delivered a frame")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter channel was never closed after Close")
	}
}
