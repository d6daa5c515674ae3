package domain

import "time"

// TransactionStatus represents the state of a payment attempt.
type TransactionStatus int

const (
	TransactionPending TransactionStatus = iota
	TransactionAwaitingConfirmation
	TransactionConfirmed
	TransactionFailed
)

// String returns a human-readable representation of the status.
func (s TransactionStatus) String() string {
	switch s {
	case TransactionPending:
		return "Pending"
	case TransactionAwaitingConfirmation:
		return "AwaitingConfirmation"
	case TransactionConfirmed:
		return "Confirmed"
	case TransactionFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the status is a terminal outcome.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionConfirmed || s == TransactionFailed
}

// ConfirmedVia records what triggered a transaction's confirmation. Only a
// PAYMENT_CONFIRMED frame is authoritative; receipt- and timeout-based
// confirmations are policy fallbacks and callers can tell them apart.
type ConfirmedVia int

const (
	ConfirmedViaNone ConfirmedVia = iota
	ConfirmedViaFrame
	ConfirmedViaReceipt
	ConfirmedViaTimeout
)

// String returns a human-readable representation of the confirmation source.
func (v ConfirmedVia) String() string {
	switch v {
	case ConfirmedViaFrame:
		return "frame"
	case ConfirmedViaReceipt:
		return "receipt"
	case ConfirmedViaTimeout:
		return "timeout"
	default:
		return "none"
	}
}

// Transaction is one payment attempt, tracked from initiation to a terminal
// outcome. It is owned and mutated by the payment machine only; callers see
// copies.
type Transaction struct {
	// Amount is the payment amount in the smallest currency unit.
	Amount uint64

	// Code is generated at creation and unique for the process lifetime.
	Code string

	// Status is the current state of the attempt.
	Status TransactionStatus

	// ConfirmedVia records what confirmed the transaction, if anything.
	ConfirmedVia ConfirmedVia

	// Receipt holds the merchant's receipt text once received.
	Receipt string

	// FailureReason describes why the transaction failed, if it did.
	FailureReason string

	// CreatedAt is when the transaction was initiated.
	CreatedAt time.Time
}
