package ports

import "github.com/foadkaksamandi-blip/soma-customer-app/internal/domain"

// Observer receives UI-facing notifications. All methods are invoked from the
// payment machine's single dispatch flow, never concurrently, regardless of
// which internal goroutine produced the event. Implementations should return
// quickly; slow observers delay frame processing.
type Observer interface {
	// OnStatusChanged reports a transaction status change with a
	// human-readable message that includes the transaction code.
	OnStatusChanged(status domain.TransactionStatus, message string)

	// OnReceipt delivers the merchant's receipt text.
	OnReceipt(data string)

	// OnBalanceChanged reports the balance after a debit or rollback.
	OnBalanceChanged(balance uint64)
}

// NopObserver ignores all notifications.
type NopObserver struct{}

func (NopObserver) OnStatusChanged(domain.TransactionStatus, string) {}
func (NopObserver) OnReceipt(string)                                 {}
func (NopObserver) OnBalanceChanged(uint64)                          {}
