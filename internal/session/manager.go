// Package session manages the transport session with the merchant device.
//
// A Manager owns at most one open stream at a time. Per open session it runs
// two goroutines: a read loop that blocks on the stream and reassembles
// frames, and a dispatch loop that delivers decoded frames to the handler.
// All handler callbacks happen on the dispatch goroutine, so downstream state
// has a single flow of control mutating it.
package session

import (
	"bytes"
	"io"
	"sync"

	"github.com/foadkaksamandi-blip/soma-customer-app/internal/domain"
	"github.com/foadkaksamandi-blip/soma-customer-app/internal/ports"
	"github.com/foadkaksamandi-blip/soma-customer-app/internal/wire"
	"github.com/foadkaksamandi-blip/soma-customer-app/pkg/log"
)

// FrameHandler consumes decoded frames and session lifecycle events.
// All methods are called from the dispatch goroutine, one at a time.
type FrameHandler interface {
	// HandleFrame delivers a decoded frame in byte-arrival order.
	HandleFrame(f domain.Frame)

	// HandleDecodeError reports an unknown or malformed inbound frame.
	// Decode errors are not fatal to the session.
	HandleDecodeError(err error)

	// SessionClosed reports that the session ended. err is the read failure
	// that closed it, or nil for a local close or orderly peer EOF.
	SessionClosed(err error)
}

// Framing selects how inbound bytes are split into frames.
type Framing int

const (
	// FramingLine buffers partial reads and splits frames on '\n'. A trailing
	// unterminated chunk is decoded as a final frame when the stream ends.
	FramingLine Framing = iota

	// FramingChunk treats each stream read as exactly one frame, matching the
	// legacy merchant firmware that writes raw chunks without a delimiter.
	// Unsafe on streams that fragment or coalesce writes.
	FramingChunk
)

// readBufSize matches the legacy counterpart's 1 KiB read buffer; frames are
// far smaller than this.
const readBufSize = 1024

// frameChanSize bounds how far the read loop can run ahead of the handler.
const frameChanSize = 16

// Config configures a session manager.
type Config struct {
	// Framing selects the inbound framing mode. Defaults to FramingLine.
	Framing Framing

	// Handler receives frames and lifecycle events. Required.
	Handler FrameHandler

	// Logger receives session-level logs. Defaults to a no-op logger.
	Logger log.Logger
}

// Manager owns the transport session. At most one session is open at a time;
// after a session closes the manager can open another (reconnection itself is
// a user action outside the core).
type Manager struct {
	framing Framing
	handler FrameHandler
	logger  log.Logger

	// mu guards the mutable session fields below and serializes writes.
	mu      sync.Mutex
	state   domain.SessionState
	stream  ports.Stream
	lastErr error
	wg      sync.WaitGroup
}

// inbound is one read-loop result: a decoded frame or a decode error.
type inbound struct {
	frame domain.Frame
	err   error
}

// NewManager creates a session manager. The handler is required.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Manager{
		framing: cfg.Framing,
		handler: cfg.Handler,
		logger:  logger,
		state:   domain.SessionClosed,
	}
}

// Open adopts an already-established stream and starts the receive machinery.
// Returns domain.ErrSessionOpen if a session is already open. When the
// previous session is still tearing down, Open blocks until its loops have
// finished, so the handler never sees a stale SessionClosed after the new
// session is adopted.
func (m *Manager) Open(stream ports.Stream) error {
	m.mu.Lock()
	if m.state != domain.SessionClosed {
		m.mu.Unlock()
		return domain.ErrSessionOpen
	}
	m.mu.Unlock()

	// Wait without holding mu: the exiting loops take it in recordReadEnd and
	// in the dispatch loop's final callback.
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Recheck; a concurrent Open may have won the race while we waited.
	if m.state != domain.SessionClosed {
		return domain.ErrSessionOpen
	}

	m.state = domain.SessionConnecting
	m.stream = stream
	m.lastErr = nil

	frames := make(chan inbound, frameChanSize)
	m.wg.Add(2)
	go m.readLoop(stream, frames)
	go m.dispatchLoop(frames)

	m.state = domain.SessionConnected
	m.logger.Info("session connected")
	return nil
}

// State returns the current session state.
func (m *Manager) State() domain.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the read failure that closed the session, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Send encodes the frame and writes it to the stream. Writes are serialized
// and never block on inbound traffic. A write failure closes the session and
// is returned as a *domain.SendError.
func (m *Manager) Send(f domain.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != domain.SessionConnected {
		return domain.ErrNotConnected
	}

	b, err := wire.Encode(f)
	if err != nil {
		return err
	}
	if m.framing == FramingLine {
		b = append(b, '\n')
	}

	if _, err := m.stream.Write(b); err != nil {
		m.logger.Error("write failed, closing session", log.Err(err))
		m.lastErr = err
		m.closeLocked()
		return &domain.SendError{Cause: err}
	}

	m.logger.Debug("sent frame", log.String("tag", f.Tag()))
	return nil
}

// Close releases the stream and stops the receive machinery. Idempotent.
// Closing the stream unblocks the pending read, which ends both loops; any
// in-flight frame fragment is discarded.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.state != domain.SessionClosed {
		m.closeLocked()
	}
	m.mu.Unlock()

	// Wait for the loops even if a read failure closed the session first, so
	// the handler has seen SessionClosed by the time Close returns.
	m.wg.Wait()
	return nil
}

// closeLocked transitions to Closed and closes the stream. Callers hold mu.
func (m *Manager) closeLocked() {
	m.state = domain.SessionClosed
	if m.stream != nil {
		if err := m.stream.Close(); err != nil {
			m.logger.Debug("stream close", log.Err(err))
		}
		m.stream = nil
	}
	m.logger.Info("session closed")
}

// readLoop blocks on the stream, reassembles frames per the framing mode, and
// pushes decode results to the dispatch loop. It exits on any read error,
// recording it unless the session was closed locally first.
func (m *Manager) readLoop(stream ports.Stream, frames chan<- inbound) {
	defer m.wg.Done()
	defer close(frames)

	buf := make([]byte, readBufSize)
	var pending []byte

	for {
		n, err := stream.Read(buf)
		if n > 0 {
			switch m.framing {
			case FramingChunk:
				m.decodeTo(frames, bytes.TrimRight(buf[:n], "\r\n"))
			default:
				pending = append(pending, buf[:n]...)
				for {
					i := bytes.IndexByte(pending, '\n')
					if i < 0 {
						break
					}
					line := bytes.TrimRight(pending[:i], "\r")
					pending = pending[i+1:]
					if len(line) == 0 {
						continue
					}
					m.decodeTo(frames, line)
				}
			}
		}
		if err != nil {
			// A trailing unterminated chunk is still one frame; the legacy
			// counterpart does not write delimiters before closing.
			if m.framing == FramingLine && len(pending) > 0 {
				m.decodeTo(frames, bytes.TrimRight(pending, "\r"))
			}
			m.recordReadEnd(err)
			return
		}
	}
}

// decodeTo decodes one frame's bytes and forwards the result.
func (m *Manager) decodeTo(frames chan<- inbound, b []byte) {
	f, err := wire.Decode(b)
	if err != nil {
		frames <- inbound{err: err}
		return
	}
	frames <- inbound{frame: f}
}

// recordReadEnd closes the session after the read loop ends. The error is
// recorded only when the peer or transport failed; a local Close already
// closed the stream, and an orderly EOF is not a failure.
func (m *Manager) recordReadEnd(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == domain.SessionClosed {
		return
	}
	if err != io.EOF {
		m.lastErr = err
		m.logger.Error("read failed, closing session", log.Err(err))
	} else {
		m.logger.Info("peer closed the stream")
	}
	m.closeLocked()
}

// dispatchLoop is the single consumer of inbound frames. After the channel
// drains it reports the session end to the handler, so the handler observes
// every frame before the close.
func (m *Manager) dispatchLoop(frames <-chan inbound) {
	defer m.wg.Done()

	for in := range frames {
		if in.err != nil {
			m.logger.Warn("dropping undecodable frame", log.Err(in.err))
			m.handler.HandleDecodeError(in.err)
			continue
		}
		m.logger.Debug("received frame", log.String("tag", in.frame.Tag()))
		m.handler.HandleFrame(in.frame)
	}

	m.mu.Lock()
	err := m.lastErr
	m.mu.Unlock()
	m.handler.SessionClosed(err)
}
