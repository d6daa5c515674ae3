package payment

import (
	"fmt"
	"time"

	"github.com/foadkaksamandi-blip/soma-customer-app/internal/domain"
)

// ConfirmPolicy selects which inbound frame settles a pending payment.
type ConfirmPolicy int

const (
	// ConfirmByFrame confirms only on PAYMENT_CONFIRMED. Authoritative.
	ConfirmByFrame ConfirmPolicy = iota

	// ConfirmByReceipt additionally treats RECEIPT arrival as sufficient
	// acknowledgment. Some merchant firmware sends a receipt but never a
	// PAYMENT_CONFIRMED frame.
	ConfirmByReceipt
)

// String returns the policy's config-file spelling.
func (p ConfirmPolicy) String() string {
	switch p {
	case ConfirmByReceipt:
		return "receipt"
	default:
		return "frame"
	}
}

// ParseConfirmPolicy parses a config-file policy value.
func ParseConfirmPolicy(s string) (ConfirmPolicy, error) {
	switch s {
	case "frame", "":
		return ConfirmByFrame, nil
	case "receipt":
		return ConfirmByReceipt, nil
	default:
		return ConfirmByFrame, fmt.Errorf("%w: unknown confirm policy %q", domain.ErrInvalidConfig, s)
	}
}

// Policy configures how a payment reaches Confirmed.
//
// The fallback timer optimistically confirms a payment that is still awaiting
// acknowledgment after FallbackAfter. It is a UI affordance that keeps the
// customer from being stuck when the peer never replies, not proof of
// settlement; transactions confirmed this way carry ConfirmedViaTimeout.
type Policy struct {
	Confirm         ConfirmPolicy
	FallbackEnabled bool
	FallbackAfter   time.Duration
}

// DefaultPolicy confirms only on the authoritative frame, no fallback.
func DefaultPolicy() Policy {
	return Policy{Confirm: ConfirmByFrame}
}

// Validate checks the policy for errors.
func (p Policy) Validate() error {
	if p.FallbackEnabled && p.FallbackAfter <= 0 {
		return fmt.Errorf("%w: fallback confirm enabled with non-positive interval", domain.ErrInvalidConfig)
	}
	return nil
}
