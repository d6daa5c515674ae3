package ports

// Ledger holds the customer's balance. The balance never goes negative and
// all mutation is serialized by the implementation.
type Ledger interface {
	// Debit subtracts amount if the balance covers it, atomically with the
	// check. Returns domain.ErrInsufficientBalance otherwise, leaving the
	// balance unchanged.
	Debit(amount uint64) error

	// Credit adds amount unconditionally. Used to roll back a debit when the
	// paired send fails.
	Credit(amount uint64)

	// Balance returns the current balance.
	Balance() uint64
}
