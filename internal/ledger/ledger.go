// Package ledger provides the in-memory balance ledger.
package ledger

import (
	"sync"

	"github.com/foadkaksamandi-blip/soma-customer-app/internal/domain"
)

// Ledger holds the customer's balance. The mutex is the single mutation point
// for the balance; Debit performs its precondition check and subtraction
// under the same lock so the balance can never go negative.
type Ledger struct {
	mu      sync.Mutex
	balance uint64
}

// New creates a ledger with the given starting balance.
func New(initial uint64) *Ledger {
	return &Ledger{balance: initial}
}

// Debit subtracts amount if the balance covers it.
// Returns domain.ErrInsufficientBalance otherwise, leaving the balance unchanged.
func (l *Ledger) Debit(amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount > l.balance {
		return domain.ErrInsufficientBalance
	}
	l.balance -= amount
	return nil
}

// Credit adds amount unconditionally.
func (l *Ledger) Credit(amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance += amount
}

// Balance returns the current balance.
func (l *Ledger) Balance() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}
