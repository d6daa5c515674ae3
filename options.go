package somapay

import (
	"context"

	"github.com/foadkaksamandi-blip/soma-customer-app/internal/domain"
	"github.com/foadkaksamandi-blip/soma-customer-app/internal/payment"
	"github.com/foadkaksamandi-blip/soma-customer-app/internal/ports"
	"github.com/foadkaksamandi-blip/soma-customer-app/internal/session"
	"github.com/foadkaksamandi-blip/soma-customer-app/pkg/log"
)

// Re-export types from sub-packages for convenient access.
// Users can also import sub-packages directly for selective import.
type (
	// Transaction is one payment attempt and its outcome.
	Transaction = domain.Transaction

	// TransactionStatus is the payment lifecycle state.
	TransactionStatus = domain.TransactionStatus

	// ConfirmedVia records which signal confirmed a payment.
	ConfirmedVia = domain.ConfirmedVia

	// SessionState is the transport session state.
	SessionState = domain.SessionState

	// Observer receives UI-facing notifications.
	Observer = ports.Observer

	// Stream is the byte-stream link to the merchant.
	Stream = ports.Stream

	// Logger is the structured logging interface from pkg/log.
	Logger = log.Logger

	// Policy configures how a payment reaches Confirmed.
	Policy = payment.Policy

	// Framing selects how inbound bytes are split into frames.
	Framing = session.Framing
)

// Framing modes.
const (
	// FramingLine splits inbound frames on '\n'. The default.
	FramingLine = session.FramingLine

	// FramingChunk treats each stream read as one frame, for legacy merchant
	// firmware that writes without a delimiter.
	FramingChunk = session.FramingChunk
)

// Confirmation policies.
const (
	ConfirmByFrame   = payment.ConfirmByFrame
	ConfirmByReceipt = payment.ConfirmByReceipt
)

// Dialer establishes the byte-stream link to the merchant.
type Dialer func(ctx context.Context) (Stream, error)

// Option configures optional behavior of the payment client.
type Option func(*options)

// options holds the optional configuration for an App instance.
type options struct {
	logger       log.Logger
	observer     ports.Observer
	dialer       Dialer
	framing      session.Framing
	generateCode func() string
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() options {
	return options{
		logger:  log.NewNoopLogger(),
		framing: session.FramingLine,
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver sets a handler for payment events: status changes, receipts,
// and balance updates. Callbacks arrive from a single goroutine, in order.
// If not provided, no events are emitted.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithDialer sets a custom dialer for the merchant link. When set,
// Config.MerchantAddr and Config.DialTimeout are ignored.
func WithDialer(dialer Dialer) Option {
	return func(o *options) {
		o.dialer = dialer
	}
}

// WithFraming selects the inbound framing mode. Defaults to FramingLine.
func WithFraming(f Framing) Option {
	return func(o *options) {
		o.framing = f
	}
}

// WithCodeGenerator overrides transaction code generation. Useful in tests.
func WithCodeGenerator(gen func() string) Option {
	return func(o *options) {
		o.generateCode = gen
	}
}
