// Package tcp provides the TCP implementation of the transport stream.
//
// Device discovery and pairing are outside the core; the CLI takes the
// merchant's address directly and dials it. The returned net.Conn satisfies
// ports.Stream: reads block, writes may fail, and Close unblocks a pending
// read.
package tcp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/foadkaksamandi-blip/soma-customer-app/internal/ports"
)

// Dial connects to the merchant device at addr (host:port).
// The context bounds connection establishment only, not the session.
func Dial(ctx context.Context, addr string, timeout time.Duration) (ports.Stream, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing merchant %s: %w", addr, err)
	}
	return conn, nil
}
