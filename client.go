package dvrip

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	protoerr "github.com/alxayo/dvrip-go/internal/errors"
	"github.com/alxayo/dvrip-go/internal/logger"
	"github.com/alxayo/dvrip-go/internal/media"
	"github.com/alxayo/dvrip-go/internal/mux"
	"github.com/alxayo/dvrip-go/internal/transport"
)

// FrameCallback receives a decoded media frame and its classification
// metadata, delivered from the reader goroutine — callers must not block.
type FrameCallback func(frame []byte, meta media.Metadata)

// AlarmCallback receives the sub-object of an alarm event keyed by its JSON
// Name field, plus the packet counter the event arrived on.
type AlarmCallback func(event []byte, counter uint32)

// UpgradeProgressCallback receives a human-readable progress line
// ("Uploading: 42.0%", "Upgrading: 88%") during Client.Upgrade.
type UpgradeProgressCallback func(status string)

// Client is a single-connection DVRIP session: one TCP socket multiplexed
// between request/response control traffic, an unsolicited alarm stream,
// and a continuous media stream.
type Client struct {
	ip      string
	port    uint16
	timeout time.Duration
	version uint8
	limiter *rate.Limiter
	baseLog *slog.Logger

	lifecycleMu sync.Mutex // guards conn/m/cancel across Connect/Close
	conn        net.Conn
	m           *mux.Mux
	ctx         context.Context
	cancel      context.CancelFunc

	connected       atomic.Bool
	authenticated   atomic.Bool
	monitoring      atomic.Bool
	alarmMonitoring atomic.Bool

	aliveInterval atomic.Int64

	username string

	id  string
	log *slog.Logger

	frameCB atomic.Pointer[FrameCallback]
	alarmCB atomic.Pointer[AlarmCallback]

	talkMu    sync.Mutex
	talkCodec string // "" (none), "PCMA", "PCMU"
	talkBuf   []byte
}

var clientCounter uint64

func nextClientID() string {
	return fmt.Sprintf("c%06d", atomic.AddUint64(&clientCounter, 1))
}

// New constructs a Client targeting ip (default port 34567, default 10s
// timeout). The returned Client is not yet connected; call Connect.
func New(ip string, opts ...Option) *Client {
	c := &Client{
		ip:      ip,
		port:    0,
		timeout: defaultTimeout,
		version: defaultVersion,
		baseLog: logger.Logger(),
	}
	c.aliveInterval.Store(defaultAliveInterval)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the device, hands the socket to the multiplexer, and starts
// the reader/writer goroutines. It does not authenticate — call Login next.
func (c *Client) Connect(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.connected.Load() {
		return nil
	}

	conn, err := transport.Dial(ctx, c.ip, c.port, c.timeout)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.id = nextClientID()
	c.log = logger.WithConn(c.baseLog, c.id, uuid.NewString(), conn.RemoteAddr().String())
	c.conn = conn
	c.m = mux.New(conn)
	c.m.Start(runCtx)
	c.ctx = runCtx
	c.cancel = cancel
	c.connected.Store(true)

	c.log.Info("connected")
	return nil
}

// IsConnected reports whether the underlying socket is up.
func (c *Client) IsConnected() bool { return c.connected.Load() }

// IsAuthenticated reports whether Login has completed successfully.
func (c *Client) IsAuthenticated() bool { return c.authenticated.Load() }

// IsMonitoring reports whether video monitoring is currently enabled.
func (c *Client) IsMonitoring() bool { return c.monitoring.Load() }

// IsAlarmMonitoring reports whether alarm dispatch is currently enabled.
func (c *Client) IsAlarmMonitoring() bool { return c.alarmMonitoring.Load() }

// SessionID returns the most recently observed device session id (0 before
// a successful Login).
func (c *Client) SessionID() uint32 {
	if c.m == nil {
		return 0
	}
	return c.m.Session()
}

// Close tears the session down: clears connected/authenticated/monitoring
// flags, stops the keep-alive task, stops the multiplexer, and closes the
// socket. Idempotent.
func (c *Client) Close() error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if !c.connected.CompareAndSwap(true, false) {
		return nil
	}
	c.authenticated.Store(false)
	c.monitoring.Store(false)
	c.alarmMonitoring.Store(false)

	if c.cancel != nil {
		c.cancel()
	}
	var err error
	if c.m != nil {
		err = c.m.Close()
	}
	if c.log != nil {
		c.log.Info("closed")
	}
	return err
}

func (c *Client) requireConnected(op string) error {
	if !c.connected.Load() {
		return protoerr.NewConnectionError(op, errNotConnected)
	}
	return nil
}

func (c *Client) requireAuthenticated(op string) error {
	if !c.authenticated.Load() {
		return protoerr.NewAuthenticationError(op, errNotAuthenticated)
	}
	return nil
}

type clientError string

func (e clientError) Error() string { return string(e) }

const (
	errNotConnected     = clientError("not connected")
	errNotAuthenticated = clientError("not authenticated")
)
