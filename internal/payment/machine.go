// Package payment drives one payment at a time from initiation to a terminal
// outcome.
//
// The machine validates the amount against the ledger, debits it, emits the
// PAY frame through the session, and consumes the merchant's reply frames.
// Debit and send form one logical step: a failed send credits the amount
// back. Observer notifications are funneled through a single notifier
// goroutine so the UI sees events from one flow of control no matter which
// internal goroutine produced them.
package payment

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/foadkaksamandi-blip/soma-customer-app/internal/domain"
	"github.com/foadkaksamandi-blip/soma-customer-app/internal/ports"
	"github.com/foadkaksamandi-blip/soma-customer-app/pkg/log"
)

// Sender emits outbound frames over the open session.
// *session.Manager satisfies this interface.
type Sender interface {
	Send(f domain.Frame) error
	State() domain.SessionState
}

// eventChanSize bounds how far event producers can run ahead of the observer.
const eventChanSize = 64

// Config configures a payment machine.
type Config struct {
	// Ledger holds the balance. Required.
	Ledger ports.Ledger

	// Sender emits outbound frames. Required.
	Sender Sender

	// Observer receives UI-facing notifications. Defaults to NopObserver.
	Observer ports.Observer

	// Logger receives machine-level logs. Defaults to a no-op logger.
	Logger log.Logger

	// Policy selects the confirmation behavior. Defaults to DefaultPolicy.
	Policy Policy

	// GenerateCode overrides transaction code generation. Defaults to
	// "TRX-" + a random UUID, unique for the process lifetime.
	GenerateCode func() string
}

// Machine is the transaction state machine. At most one transaction is
// Pending or AwaitingConfirmation at any time; terminal outcomes stay
// readable until the next initiation replaces them.
type Machine struct {
	ledger   ports.Ledger
	sender   Sender
	observer ports.Observer
	logger   log.Logger
	genCode  func() string

	// mu guards policy, current, and timer. It is the single mutation point
	// for transaction state, taken by the foreground flow (Initiate), the
	// session dispatch goroutine (HandleFrame et al.), and the fallback timer.
	mu      sync.Mutex
	policy  Policy
	current *domain.Transaction
	timer   *time.Timer
	closed  bool

	events chan func()
	wg     sync.WaitGroup
}

// NewMachine creates a payment machine and starts its notifier goroutine.
// Call Close to stop it.
func NewMachine(cfg Config) (*Machine, error) {
	if cfg.Ledger == nil || cfg.Sender == nil {
		return nil, fmt.Errorf("%w: ledger and sender are required", domain.ErrInvalidConfig)
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}

	observer := cfg.Observer
	if observer == nil {
		observer = ports.NopObserver{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	genCode := cfg.GenerateCode
	if genCode == nil {
		genCode = func() string { return "TRX-" + uuid.NewString() }
	}

	m := &Machine{
		ledger:   cfg.Ledger,
		sender:   cfg.Sender,
		observer: observer,
		logger:   logger,
		genCode:  genCode,
		policy:   cfg.Policy,
		events:   make(chan func(), eventChanSize),
	}

	m.wg.Add(1)
	go m.notifyLoop()
	return m, nil
}

// notifyLoop invokes observer callbacks one at a time, in order.
func (m *Machine) notifyLoop() {
	defer m.wg.Done()
	for fn := range m.events {
		fn()
	}
}

// Close stops the notifier and cancels any fallback timer. The in-flight
// transaction, if any, is left as-is; session teardown fails it separately.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.stopTimerLocked()
	close(m.events)
	m.mu.Unlock()

	m.wg.Wait()
}

// SetPolicy replaces the confirmation policy. Applies to subsequent
// transactions; a transaction already awaiting confirmation keeps the policy
// it started with.
func (m *Machine) SetPolicy(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = p
	m.logger.Info("confirmation policy updated",
		log.String("confirm", p.Confirm.String()),
		log.Bool("fallback", p.FallbackEnabled),
		log.Duration("fallback_after", p.FallbackAfter),
	)
	return nil
}

// Policy returns the active confirmation policy.
func (m *Machine) Policy() Policy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy
}

// Current returns a copy of the most recent transaction, if any.
func (m *Machine) Current() (domain.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return domain.Transaction{}, false
	}
	return *m.current, true
}

// Initiate starts a payment. Preconditions, checked in order: no transaction
// in flight, amount > 0, amount within balance, session connected. On
// success the ledger is debited, a PAY frame is sent, and the transaction is
// AwaitingConfirmation. A failed send rolls the debit back and the returned
// transaction is Failed alongside the send error.
func (m *Machine) Initiate(amount uint64) (domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && !m.current.Status.Terminal() {
		return domain.Transaction{}, domain.ErrTransactionInFlight
	}
	if amount == 0 {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}
	if amount > m.ledger.Balance() {
		return domain.Transaction{}, domain.ErrInsufficientBalance
	}
	if m.sender.State() != domain.SessionConnected {
		return domain.Transaction{}, domain.ErrNotConnected
	}
	if err := m.ledger.Debit(amount); err != nil {
		return domain.Transaction{}, err
	}

	tx := domain.Transaction{
		Amount:    amount,
		Code:      m.genCode(),
		Status:    domain.TransactionPending,
		CreatedAt: time.Now(),
	}
	m.current = &tx
	m.notifyBalance()
	m.notifyStatus(domain.TransactionPending, fmt.Sprintf("paying %d, code %s", amount, tx.Code))

	// mu is held across the write: releasing it here would let a reply arrive
	// before the transaction reaches AwaitingConfirmation. Frames are tens of
	// bytes, so the stall on inbound handling is bounded.
	if err := m.sender.Send(domain.PayRequest{Amount: amount, Code: tx.Code}); err != nil {
		// Debit and send are one logical step; undo the debit.
		m.ledger.Credit(amount)
		m.notifyBalance()
		m.failLocked("send failed: " + err.Error())
		return *m.current, err
	}

	tx.Status = domain.TransactionAwaitingConfirmation
	m.current.Status = domain.TransactionAwaitingConfirmation
	m.startFallbackTimerLocked(tx.Code)
	m.notifyStatus(domain.TransactionAwaitingConfirmation, "awaiting confirmation, code "+tx.Code)
	m.logger.Info("payment initiated",
		log.Uint64("amount", amount),
		log.String("code", tx.Code),
	)
	return tx, nil
}

// HandleFrame consumes one inbound frame. Frames that do not apply to the
// in-flight transaction are logged and dropped; the protocol is
// forward-tolerant.
func (m *Machine) HandleFrame(f domain.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch v := f.(type) {
	case domain.PaymentConfirmed:
		if !m.awaitingLocked() {
			m.logger.Warn("dropping confirmation with no payment awaiting")
			return
		}
		m.confirmLocked(domain.ConfirmedViaFrame)

	case domain.Receipt:
		m.notifyReceipt(v.Data)
		if m.current != nil && m.current.Status != domain.TransactionFailed {
			m.current.Receipt = v.Data
		}
		if m.awaitingLocked() && m.policy.Confirm == ConfirmByReceipt {
			m.confirmLocked(domain.ConfirmedViaReceipt)
		}

	case domain.PayRequest:
		// The customer side never receives payment requests.
		m.logger.Warn("dropping unexpected PAY frame", log.String("code", v.Code))

	default:
		m.logger.Warn("dropping frame with no handler", log.String("tag", f.Tag()))
	}
}

// HandleDecodeError reacts to an undecodable inbound frame. Unknown tags are
// swallowed. A malformed frame with a known tag while a reply is expected
// fails the transaction: the reply channel cannot be trusted mid-payment.
func (m *Machine) HandleDecodeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var malformed *domain.MalformedFieldsError
	if !errors.As(err, &malformed) {
		m.logger.Warn("ignoring unknown frame", log.Err(err))
		return
	}
	if !m.awaitingLocked() {
		m.logger.Warn("ignoring malformed frame", log.Err(err))
		return
	}
	m.logger.Error("malformed reply while awaiting confirmation", log.Err(err))
	m.rollbackLocked()
	m.failLocked("malformed reply: " + err.Error())
}

// SessionClosed fails the in-flight transaction, if any, rolling its debit
// back. err is the read failure that closed the session, or nil.
func (m *Machine) SessionClosed(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.awaitingLocked() && (m.current == nil || m.current.Status != domain.TransactionPending) {
		return
	}
	reason := "session closed"
	if err != nil {
		reason = "session closed: " + err.Error()
	}
	m.logger.Warn("session closed with payment in flight", log.String("code", m.current.Code))
	m.rollbackLocked()
	m.failLocked(reason)
}

// awaitingLocked reports whether a transaction is awaiting confirmation.
func (m *Machine) awaitingLocked() bool {
	return m.current != nil && m.current.Status == domain.TransactionAwaitingConfirmation
}

// confirmLocked moves the in-flight transaction to Confirmed.
func (m *Machine) confirmLocked(via domain.ConfirmedVia) {
	m.stopTimerLocked()
	m.current.Status = domain.TransactionConfirmed
	m.current.ConfirmedVia = via
	msg := fmt.Sprintf("payment confirmed (%s), code %s", via, m.current.Code)
	m.logger.Info("payment confirmed",
		log.String("code", m.current.Code),
		log.String("via", via.String()),
	)
	m.notifyStatus(domain.TransactionConfirmed, msg)
}

// failLocked moves the in-flight transaction to Failed. Callers roll back the
// debit first when the debit is still outstanding.
func (m *Machine) failLocked(reason string) {
	m.stopTimerLocked()
	m.current.Status = domain.TransactionFailed
	m.current.FailureReason = reason
	m.logger.Warn("payment failed",
		log.String("code", m.current.Code),
		log.String("reason", reason),
	)
	m.notifyStatus(domain.TransactionFailed, fmt.Sprintf("payment failed: %s, code %s", reason, m.current.Code))
}

// rollbackLocked credits the in-flight transaction's amount back.
func (m *Machine) rollbackLocked() {
	m.ledger.Credit(m.current.Amount)
	m.notifyBalance()
}

// startFallbackTimerLocked arms the optimistic confirmation timer when the
// policy enables it. The timer fires at most once, for the transaction it was
// armed for.
func (m *Machine) startFallbackTimerLocked(code string) {
	if !m.policy.FallbackEnabled {
		return
	}
	m.stopTimerLocked()
	m.timer = time.AfterFunc(m.policy.FallbackAfter, func() {
		m.fallbackConfirm(code)
	})
}

// fallbackConfirm confirms the transaction by timeout if it is still the one
// the timer was armed for and still awaiting confirmation.
func (m *Machine) fallbackConfirm(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || !m.awaitingLocked() || m.current.Code != code {
		return
	}
	m.logger.Warn("no acknowledgment from merchant, confirming by timeout",
		log.String("code", code),
	)
	m.confirmLocked(domain.ConfirmedViaTimeout)
}

// stopTimerLocked cancels the fallback timer if armed.
func (m *Machine) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// notifyStatus, notifyReceipt, and notifyBalance queue observer callbacks for
// the notifier goroutine. Queued while holding mu, invoked without it.
func (m *Machine) notifyStatus(status domain.TransactionStatus, message string) {
	if m.closed {
		return
	}
	m.events <- func() { m.observer.OnStatusChanged(status, message) }
}

func (m *Machine) notifyReceipt(data string) {
	if m.closed {
		return
	}
	m.events <- func() { m.observer.OnReceipt(data) }
}

func (m *Machine) notifyBalance() {
	if m.closed {
		return
	}
	balance := m.ledger.Balance()
	m.events <- func() { m.observer.OnBalanceChanged(balance) }
}
