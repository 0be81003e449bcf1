// Package transport establishes the single TCP connection a DVRIP session
// is built on top of. It owns nothing beyond the connect call itself;
// ownership of the live socket passes to the multiplexer immediately.
package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	protoerr "github.com/alxayo/dvrip-go/internal/errors"
	"github.com/alxayo/dvrip-go/internal/protocol"
)

// Dial resolves (ip, port) — defaulting port to protocol.DefaultTCPPort when
// zero — and establishes a TCP connection under the given timeout. Connect
// failures are surfaced as ConnectionError, distinguishing a timeout from
// other dial errors.
func Dial(ctx context.Context, ip string, port uint16, timeout time.Duration) (net.Conn, error) {
	if port == 0 {
		port = protocol.DefaultTCPPort
	}
	addr := net.JoinHostPort(ip, fmt.Sprintf("%d", port))

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, protoerr.NewConnectionError("dial", fmt.Errorf("connection timeout: %w", err))
		}
		return nil, protoerr.NewConnectionError("dial", fmt.Errorf("connection error: %w", err))
	}
	return conn, nil
}
