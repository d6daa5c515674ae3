package ports

import "io"

// Stream is an established bidirectional byte stream to the merchant device.
// Read blocks until bytes arrive, the peer closes, or the stream fails.
// Close must unblock any pending Read; it is the session's only cancellation
// primitive. A *net.TCPConn satisfies this interface.
type Stream interface {
	io.Reader
	io.Writer
	Close() error
}
