package session

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foadkaksamandi-blip/soma-customer-app/internal/domain"
)

// fakeStream is a scriptable stream: reads are fed through channels, writes
// are captured, Close unblocks any pending read.
type fakeStream struct {
	mu       sync.Mutex
	wrote    bytes.Buffer
	writeErr error

	reads chan []byte
	errs  chan error
	done  chan struct{}
	once  sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		reads: make(chan []byte, 16),
		errs:  make(chan error, 1),
		done:  make(chan struct{}),
	}
}

func (s *fakeStream) Read(p []byte) (int, error) {
	select {
	case b := <-s.reads:
		return copy(p, b), nil
	case err := <-s.errs:
		return 0, err
	case <-s.done:
		return 0, io.ErrClosedPipe
	}
}

func (s *fakeStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	return s.wrote.Write(p)
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *fakeStream) written() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wrote.String()
}

// recordingHandler forwards handler callbacks to channels.
type recordingHandler struct {
	frames     chan domain.Frame
	decodeErrs chan error
	closed     chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		frames:     make(chan domain.Frame, 16),
		decodeErrs: make(chan error, 16),
		closed:     make(chan error, 1),
	}
}

func (h *recordingHandler) HandleFrame(f domain.Frame)  { h.frames <- f }
func (h *recordingHandler) HandleDecodeError(err error) { h.decodeErrs <- err }
func (h *recordingHandler) SessionClosed(err error)     { h.closed <- err }

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		panic("unreachable")
	}
}

func openTestSession(t *testing.T, framing Framing) (*Manager, *fakeStream, *recordingHandler) {
	t.Helper()
	h := newRecordingHandler()
	m := NewManager(Config{Framing: framing, Handler: h})
	s := newFakeStream()
	require.NoError(t, m.Open(s))
	t.Cleanup(func() { _ = m.Close() })
	return m, s, h
}

func TestOpenRejectsSecondSession(t *testing.T) {
	m, _, _ := openTestSession(t, FramingLine)

	err := m.Open(newFakeStream())
	require.ErrorIs(t, err, domain.ErrSessionOpen)
	assert.Equal(t, domain.SessionConnected, m.State())
}

func TestReceiveDeliversFramesInOrder(t *testing.T) {
	_, s, h := openTestSession(t, FramingLine)

	s.reads <- []byte("PAYMENT_CONFIRMED\nRECEIPT:ok\n")

	assert.Equal(t, domain.PaymentConfirmed{}, recv(t, h.frames))
	assert.Equal(t, domain.Receipt{Data: "ok"}, recv(t, h.frames))
}

func TestReceiveReassemblesFragments(t *testing.T) {
	_, s, h := openTestSession(t, FramingLine)

	s.reads <- []byte("RECE")
	s.reads <- []byte("IPT:he")
	s.reads <- []byte("llo\nPAY")

	assert.Equal(t, domain.Receipt{Data: "hello"}, recv(t, h.frames))

	s.reads <- []byte(":42:TRX-9\n")
	assert.Equal(t, domain.PayRequest{Amount: 42, Code: "TRX-9"}, recv(t, h.frames))
}

func TestReceiveChunkFraming(t *testing.T) {
	_, s, h := openTestSession(t, FramingChunk)

	// The legacy merchant writes raw chunks without a delimiter.
	s.reads <- []byte("PAYMENT_CONFIRMED")
	assert.Equal(t, domain.PaymentConfirmed{}, recv(t, h.frames))

	s.reads <- []byte("RECEIPT:total: 5000")
	assert.Equal(t, domain.Receipt{Data: "total: 5000"}, recv(t, h.frames))
}

func TestTrailingChunkDecodedAtStreamEnd(t *testing.T) {
	m, s, h := openTestSession(t, FramingLine)

	s.reads <- []byte("PAYMENT_CONFIRMED")
	s.errs <- io.EOF

	assert.Equal(t, domain.PaymentConfirmed{}, recv(t, h.frames))
	assert.NoError(t, recv(t, h.closed))
	assert.Equal(t, domain.SessionClosed, m.State())
	assert.NoError(t, m.LastError())
}

func TestDecodeErrorIsNotFatal(t *testing.T) {
	m, s, h := openTestSession(t, FramingLine)

	s.reads <- []byte("FOO:bar\nPAYMENT_CONFIRMED\n")

	var unknown *domain.UnknownTagError
	require.ErrorAs(t, recv(t, h.decodeErrs), &unknown)
	assert.Equal(t, "FOO", unknown.Tag)

	assert.Equal(t, domain.PaymentConfirmed{}, recv(t, h.frames))
	assert.Equal(t, domain.SessionConnected, m.State())
}

func TestReadFailureClosesSession(t *testing.T) {
	m, s, h := openTestSession(t, FramingLine)

	readErr := errors.New("connection reset by peer")
	s.errs <- readErr

	assert.ErrorIs(t, recv(t, h.closed), readErr)
	assert.Equal(t, domain.SessionClosed, m.State())
	assert.ErrorIs(t, m.LastError(), readErr)
}

func TestSendWritesEncodedFrame(t *testing.T) {
	t.Run("line framing appends newline", func(t *testing.T) {
		m, s, _ := openTestSession(t, FramingLine)
		require.NoError(t, m.Send(domain.PayRequest{Amount: 5000, Code: "TRX-1"}))
		assert.Equal(t, "PAY:5000:TRX-1\n", s.written())
	})

	t.Run("chunk framing writes raw frame", func(t *testing.T) {
		m, s, _ := openTestSession(t, FramingChunk)
		require.NoError(t, m.Send(domain.PayRequest{Amount: 5000, Code: "TRX-1"}))
		assert.Equal(t, "PAY:5000:TRX-1", s.written())
	})
}

func TestSendRequiresOpenSession(t *testing.T) {
	h := newRecordingHandler()
	m := NewManager(Config{Handler: h})

	err := m.Send(domain.PaymentConfirmed{})
	require.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestSendWriteFailureClosesSession(t *testing.T) {
	m, s, h := openTestSession(t, FramingLine)
	s.mu.Lock()
	s.writeErr = errors.New("broken pipe")
	s.mu.Unlock()

	err := m.Send(domain.PaymentConfirmed{})
	var sendErr *domain.SendError
	require.ErrorAs(t, err, &sendErr)

	recv(t, h.closed)
	assert.Equal(t, domain.SessionClosed, m.State())

	err = m.Send(domain.PaymentConfirmed{})
	require.ErrorIs(t, err, domain.ErrNotConnected)
}

// blockingHandler stalls frame delivery until its gate opens, keeping the
// dispatch loop busy while the session tears down.
type blockingHandler struct {
	*recordingHandler
	gate chan struct{}
}

func (h *blockingHandler) HandleFrame(f domain.Frame) {
	<-h.gate
	h.recordingHandler.HandleFrame(f)
}

func TestReopenWaitsForPreviousTeardown(t *testing.T) {
	h := &blockingHandler{recordingHandler: newRecordingHandler(), gate: make(chan struct{})}
	m := NewManager(Config{Handler: h})
	s1 := newFakeStream()
	require.NoError(t, m.Open(s1))

	// Stall dispatch mid-frame, then fail the read. The session goes Closed
	// while its dispatch loop is still draining.
	s1.reads <- []byte("PAYMENT_CONFIRMED\n")
	s1.errs <- errors.New("connection reset by peer")
	require.Eventually(t, func() bool { return m.State() == domain.SessionClosed },
		time.Second, time.Millisecond)

	opened := make(chan error, 1)
	go func() { opened <- m.Open(newFakeStream()) }()

	// Open must not adopt the new stream while the old loops are alive;
	// otherwise the old session's SessionClosed would fire into the new one
	// and fail a payment that is in flight on the healthy link.
	select {
	case <-opened:
		t.Fatal("Open returned while the previous session was still tearing down")
	case <-time.After(50 * time.Millisecond):
	}

	close(h.gate)

	assert.Equal(t, domain.PaymentConfirmed{}, recv(t, h.frames))
	assert.Error(t, recv(t, h.closed))
	require.NoError(t, recv(t, opened))
	assert.Equal(t, domain.SessionConnected, m.State())

	require.NoError(t, m.Close())
	recv(t, h.closed)
}

func TestCloseIsIdempotentAndAllowsReopen(t *testing.T) {
	m, _, h := openTestSession(t, FramingLine)

	require.NoError(t, m.Close())
	recv(t, h.closed)
	require.NoError(t, m.Close())
	assert.Equal(t, domain.SessionClosed, m.State())

	// Reconnecting is a user action; the manager accepts a fresh stream.
	s2 := newFakeStream()
	require.NoError(t, m.Open(s2))
	assert.Equal(t, domain.SessionConnected, m.State())
	require.NoError(t, m.Close())
	recv(t, h.closed)
}
