package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent error conditions in the somapay domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrSessionOpen is returned when Open() is called while a session is active.
	ErrSessionOpen = errors.New("somapay: session already open")

	// ErrSessionClosed is returned when an operation requires a session that
	// has already been closed.
	ErrSessionClosed = errors.New("somapay: session closed")

	// ErrNotConnected is returned when sending or paying without an open session.
	ErrNotConnected = errors.New("somapay: not connected")

	// ErrInvalidAmount is returned when a payment amount is zero.
	ErrInvalidAmount = errors.New("somapay: invalid amount")

	// ErrInsufficientBalance is returned when the balance cannot cover a debit.
	ErrInsufficientBalance = errors.New("somapay: insufficient balance")

	// ErrTransactionInFlight is returned when a payment is initiated while
	// another is still pending or awaiting confirmation.
	ErrTransactionInFlight = errors.New("somapay: transaction in flight")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("somapay: invalid configuration")
)

// SendError wraps a transport write failure. The session is closed after a
// failed write; the link cannot be trusted once bytes may have been lost.
type SendError struct {
	Cause error
}

func (e *SendError) Error() string { return "somapay: send failed: " + e.Cause.Error() }

func (e *SendError) Unwrap() error { return e.Cause }

// UnknownTagError reports a frame whose leading tag matches no known variant.
// Unknown frames are logged and dropped; they are not fatal to the session.
type UnknownTagError struct {
	Tag string
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("somapay: unknown frame tag %q", e.Tag)
}

// MalformedFieldsError reports a frame with a known tag whose fields do not
// match the expected count or type.
type MalformedFieldsError struct {
	Tag    string
	Reason string
}

func (e *MalformedFieldsError) Error() string {
	return fmt.Sprintf("somapay: malformed %s frame: %s", e.Tag, e.Reason)
}
