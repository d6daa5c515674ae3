package domain

// Frame is one discrete protocol message exchanged with the merchant device.
// A frame is immutable once constructed; the concrete types below are the
// only variants that appear on the wire.
type Frame interface {
	// Tag returns the leading wire tag identifying the frame variant.
	Tag() string
}

// Wire tags for the merchant protocol.
const (
	TagPayRequest       = "PAY"
	TagPaymentConfirmed = "PAYMENT_CONFIRMED"
	TagReceipt          = "RECEIPT"
)

// PayRequest asks the merchant to collect a payment. The transaction code is
// generated by the customer and is unique for the lifetime of the process.
type PayRequest struct {
	// Amount is the payment amount in the smallest currency unit. Always > 0.
	Amount uint64

	// Code is the transaction code, e.g. "TRX-4f9d...".
	Code string
}

// Tag implements Frame.
func (PayRequest) Tag() string { return TagPayRequest }

// PaymentConfirmed acknowledges the in-flight payment. It carries no payload
// and no correlation id; the protocol supports a single payment in flight.
type PaymentConfirmed struct{}

// Tag implements Frame.
func (PaymentConfirmed) Tag() string { return TagPaymentConfirmed }

// Receipt carries the merchant's human-readable receipt text. Receiving a
// receipt does not by itself confirm the payment unless the confirmation
// policy says so.
type Receipt struct {
	// Data is the receipt text verbatim. It may contain ':' characters.
	Data string
}

// Tag implements Frame.
func (Receipt) Tag() string { return TagReceipt }
