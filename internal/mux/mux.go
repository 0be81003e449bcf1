// Package mux implements the DVRIP connection multiplexer: one reader
// goroutine and one writer goroutine sharing a single TCP socket, a one-shot
// waiter table keyed by packet counter, a persistent stream-handler table
// keyed by message id, and default handlers for the video and alarm message
// ids. This is the component every higher-level verb submits requests
// through and is woken by as replies arrive.
package mux

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	protoerr "github.com/alxayo/dvrip-go/internal/errors"
	"github.com/alxayo/dvrip-go/internal/logger"
	"github.com/alxayo/dvrip-go/internal/protocol"
)

// Default message ids the reader treats specially, ahead of any
// caller-registered stream handler.
const (
	VideoMsgID uint16 = 1412
	AlarmMsgID uint16 = 1504
)

// Frame is an inbound (header, body) pair delivered to a waiter, a stream
// handler, or a default callback.
type Frame struct {
	Header protocol.Header
	Body   []byte
}

// Request is one submission to the writer. Counter assignment and waiter
// registration both happen inside the writer goroutine, in that order,
// immediately before the frame is written to the wire — this is what
// guarantees a waiter is always registered before its reply could possibly
// arrive.
type Request struct {
	Header      protocol.Header
	Body        []byte
	AutoCounter bool      // if true, writer overwrites Header.Counter with the next sequence value
	Response    chan Frame // non-nil registers a one-shot waiter; closed (not sent) on connection failure
}

const submitQueueCapacity = 100

// callbackSlot pairs an enable flag with a function pointer behind one
// mutex, per the concurrency model's note that monitoring callbacks are
// guarded by the same lock as their enable flag.
type callbackSlot struct {
	mu      sync.Mutex
	enabled bool
	fn      func(Frame)
}

func (c *callbackSlot) setEnabled(v bool) {
	c.mu.Lock()
	c.enabled = v
	c.mu.Unlock()
}

func (c *callbackSlot) setFunc(fn func(Frame)) {
	c.mu.Lock()
	c.fn = fn
	c.mu.Unlock()
}

func (c *callbackSlot) dispatch(f Frame) bool {
	c.mu.Lock()
	enabled, fn := c.enabled, c.fn
	c.mu.Unlock()
	if !enabled {
		return false
	}
	if fn != nil {
		fn(f)
	}
	return true
}

// Mux owns the live socket and the two long-lived tasks built around it.
type Mux struct {
	conn net.Conn
	log  *slog.Logger

	submitCh chan *Request

	waiters sync.Map // uint32 counter -> chan Frame

	streamMu sync.RWMutex
	streams  map[uint16]chan Frame

	counter atomic.Uint32
	session atomic.Uint32

	video callbackSlot
	alarm callbackSlot

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// New creates a Mux over an already-connected socket. Call Start to launch
// the reader and writer goroutines.
func New(conn net.Conn) *Mux {
	return &Mux{
		conn:     conn,
		log:      logger.Logger(),
		submitCh: make(chan *Request, submitQueueCapacity),
		streams:  make(map[uint16]chan Frame),
		closed:   make(chan struct{}),
	}
}

// Start launches the reader and writer goroutines. ctx cancellation and
// Close() both tear the multiplexer down; whichever happens first wins.
func (m *Mux) Start(ctx context.Context) {
	m.wg.Add(2)
	go m.readLoop(ctx)
	go m.writeLoop(ctx)
}

// Session returns the most recently observed session id (0 before login).
func (m *Mux) Session() uint32 { return m.session.Load() }

// SetSession forces the session id, used by login once the reply is parsed
// (the reader will keep it current afterward from subsequent inbound frames).
func (m *Mux) SetSession(id uint32) { m.session.Store(id) }

// SetVideoHandler installs the default-video callback and its enable flag.
func (m *Mux) SetVideoHandler(fn func(Frame)) { m.video.setFunc(fn) }
func (m *Mux) EnableVideo(enabled bool)       { m.video.setEnabled(enabled) }

// SetAlarmHandler installs the default-alarm callback and its enable flag.
func (m *Mux) SetAlarmHandler(fn func(Frame)) { m.alarm.setFunc(fn) }
func (m *Mux) EnableAlarm(enabled bool)       { m.alarm.setEnabled(enabled) }

// RegisterStream installs a persistent, multi-consumer sink for msgID. The
// same channel may be registered under several message ids (playback
// download listens on six tags at once).
func (m *Mux) RegisterStream(msgID uint16, ch chan Frame) {
	m.streamMu.Lock()
	m.streams[msgID] = ch
	m.streamMu.Unlock()
}

// UnregisterStream removes the handler for msgID, if any.
func (m *Mux) UnregisterStream(msgID uint16) {
	m.streamMu.Lock()
	delete(m.streams, msgID)
	m.streamMu.Unlock()
}

// Submit enqueues req on the bounded writer queue. It blocks until the queue
// has room, ctx is cancelled, or the multiplexer has failed/closed.
func (m *Mux) Submit(ctx context.Context, req *Request) error {
	select {
	case m.submitCh <- req:
		return nil
	case <-ctx.Done():
		return protoerr.NewConnectionError("mux.submit", ctx.Err())
	case <-m.closed:
		return protoerr.NewConnectionError("mux.submit", errMuxClosed)
	}
}

// Close tears down the multiplexer: stops accepting submissions, drops
// pending waiters and stream handlers with a ConnectionError, and closes the
// socket. Idempotent.
func (m *Mux) Close() error {
	m.shutdown(errMuxClosed)
	m.wg.Wait()
	return nil
}

func (m *Mux) shutdown(cause error) {
	m.closeOnce.Do(func() {
		close(m.closed)
		_ = m.conn.Close()

		m.waiters.Range(func(key, value any) bool {
			close(value.(chan Frame))
			m.waiters.Delete(key)
			return true
		})

		m.streamMu.Lock()
		seen := make(map[chan Frame]struct{}, len(m.streams))
		for id, ch := range m.streams {
			if _, ok := seen[ch]; !ok {
				close(ch)
				seen[ch] = struct{}{}
			}
			delete(m.streams, id)
		}
		m.streamMu.Unlock()

		m.log.Warn("mux closed", "cause", cause)
	})
}

func (m *Mux) readLoop(ctx context.Context) {
	defer m.wg.Done()
	defer m.shutdown(errConnectionLost)

	hdrBuf := make([]byte, protocol.HeaderSize)
	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := io.ReadFull(m.conn, hdrBuf); err != nil {
			return
		}
		hdr, err := protocol.Decode(hdrBuf)
		if err != nil {
			return
		}

		var body []byte
		if hdr.DataLen > 0 {
			body = make([]byte, hdr.DataLen)
			if _, err := io.ReadFull(m.conn, body); err != nil {
				return
			}
		}

		if hdr.Session != 0 {
			m.session.Store(hdr.Session)
		}

		m.dispatch(Frame{Header: hdr, Body: body})
	}
}

// dispatch applies the fixed precedence order: default video, default
// alarm, one-shot waiter, persistent stream handler, discard.
func (m *Mux) dispatch(f Frame) {
	switch {
	case f.Header.MsgID == VideoMsgID && m.video.dispatch(f):
		return
	case f.Header.MsgID == AlarmMsgID && m.alarm.dispatch(f):
		return
	}

	if sink, ok := m.waiters.LoadAndDelete(f.Header.Counter); ok {
		sink.(chan Frame) <- f
		return
	}

	m.streamMu.RLock()
	ch, ok := m.streams[f.Header.MsgID]
	m.streamMu.RUnlock()
	if ok {
		select {
		case ch <- f:
		default:
			m.log.Debug("dropped frame, stream handler full", "msg_id", f.Header.MsgID)
		}
		return
	}
	// Otherwise: silently discard.
}

func (m *Mux) writeLoop(ctx context.Context) {
	defer m.wg.Done()
	defer m.shutdown(errConnectionLost)

	for {
		select {
		case req, ok := <-m.submitCh:
			if !ok {
				return
			}
			if err := m.write(req); err != nil {
				return
			}
		case <-ctx.Done():
			return
		case <-m.closed:
			return
		}
	}
}

func (m *Mux) write(req *Request) error {
	if req.AutoCounter {
		req.Header.Counter = m.counter.Add(1)
	}
	req.Header.Session = m.session.Load()

	if req.Response != nil {
		key := req.Header.Counter
		if protocol.HasOddResponseCounter(req.Header.MsgID) {
			key++
		}
		m.waiters.Store(key, req.Response)
	}

	if _, err := m.conn.Write(protocol.Encode(req.Header)); err != nil {
		return err
	}
	if len(req.Body) > 0 {
		if _, err := m.conn.Write(req.Body); err != nil {
			return err
		}
	}
	return nil
}

var errMuxClosed = muxError("multiplexer closed")
var errConnectionLost = muxError("connection lost")

type muxError string

func (e muxError) Error() string { return string(e) }
