package dvrip

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultAliveInterval = 20
	defaultVersion       = uint8(0)
)

// Option configures a Client at construction time. This package has no
// main of its own, so Client tunables are set through Option rather than
// parsed from argv or environment. The log level is the exception:
// internal/logger reads it from a -log.level argument or DVRIP_LOG_LEVEL.
type Option func(*Client)

// WithPort overrides the default control port (34567).
func WithPort(port uint16) Option {
	return func(c *Client) { c.port = port }
}

// WithTimeout sets both the connect timeout and the default wait_response
// timeout used by send_raw.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithVersion selects the payload tail convention: 0 (default, "\n\x00") or
// 1 ("\x00").
func WithVersion(version uint8) Option {
	return func(c *Client) { c.version = version }
}

// WithLogger overrides the package logger for this client's log lines.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.baseLog = l }
}

// WithSubmitRateLimit bounds how fast ad-hoc verb goroutines (playback
// polling, alarm re-subscription, talk packetization) may submit requests,
// smoothing bursty callers on top of the writer's bounded channel capacity.
// A nil limiter (the default) applies no additional throttling.
func WithSubmitRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}
