// Package ports defines the interfaces (ports) that connect the payment core
// to infrastructure adapters and to the caller.
//
// The core packages (internal/session, internal/payment) depend only on these
// interfaces. Adapters (internal/adapters) and callers supply the concrete
// implementations: the transport stream, the balance ledger, and the
// UI-facing observer.
//
// # Port interfaces
//
//   - [Stream]: an established bidirectional byte stream to the merchant
//   - [Ledger]: the customer's balance with atomic debit
//   - [Observer]: UI-facing notifications for status, receipts, and balance
//
// Keeping the ports small makes the core testable with in-memory fakes and
// keeps transport establishment (discovery, pairing) out of scope.
package ports
