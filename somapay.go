// Package somapay is an embeddable customer-side payment client for SOMA
// merchant devices. It keeps an offline balance, opens a byte-stream session
// to the merchant, and drives one payment at a time through the PAY /
// PAYMENT_CONFIRMED / RECEIPT exchange.
//
// Example usage:
//
//	app, err := somapay.New(somapay.Config{MerchantAddr: "192.168.49.1:8988"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Close()
//	if err := app.Connect(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//	tx, err := app.Pay(5000)
package somapay

import (
	"context"
	"sync"
	"time"

	"github.com/foadkaksamandi-blip/soma-customer-app/internal/adapters/tcp"
	"github.com/foadkaksamandi-blip/soma-customer-app/internal/cliconfig"
	"github.com/foadkaksamandi-blip/soma-customer-app/internal/domain"
	"github.com/foadkaksamandi-blip/soma-customer-app/internal/ledger"
	"github.com/foadkaksamandi-blip/soma-customer-app/internal/payment"
	"github.com/foadkaksamandi-blip/soma-customer-app/internal/ports"
	"github.com/foadkaksamandi-blip/soma-customer-app/internal/session"
)

// Config holds the configuration for a payment client.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config struct {
	// MerchantAddr is the merchant device's address (host:port). Required
	// unless a custom dialer is supplied.
	MerchantAddr string

	// DialTimeout bounds connection establishment. Default 10s.
	DialTimeout time.Duration

	// InitialBalance seeds the ledger. Default 100000.
	InitialBalance uint64

	// Policy selects the confirmation behavior. Zero value confirms only on
	// the authoritative PAYMENT_CONFIRMED frame.
	Policy Policy
}

// DefaultConfig returns a Config with default values. At minimum, set
// MerchantAddr before calling New.
func DefaultConfig() Config {
	return Config{
		DialTimeout:    cliconfig.DefaultDialTimeout,
		InitialBalance: cliconfig.DefaultInitialBalance,
		Policy:         payment.DefaultPolicy(),
	}
}

// SetDefaults fills zero-valued fields with defaults.
func (c *Config) SetDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = cliconfig.DefaultDialTimeout
	}
	if c.InitialBalance == 0 {
		c.InitialBalance = cliconfig.DefaultInitialBalance
	}
}

// App is the payment client. Use New() to create an instance, Connect() to
// open the merchant session, and Pay() to initiate a payment.
type App struct {
	config  Config
	ledger  *ledger.Ledger
	manager *session.Manager
	machine *payment.Machine
	dialer  Dialer

	mu     sync.Mutex
	closed bool
}

// New creates a payment client with the given configuration.
// The instance starts disconnected; call Connect() to open a session.
// Returns an error if configuration is invalid.
func New(cfg Config, opts ...Option) (*App, error) {
	cfg.SetDefaults()

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.MerchantAddr == "" && o.dialer == nil {
		return nil, domain.ErrInvalidConfig
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}

	dialer := o.dialer
	if dialer == nil {
		addr, timeout := cfg.MerchantAddr, cfg.DialTimeout
		dialer = func(ctx context.Context) (ports.Stream, error) {
			return tcp.Dial(ctx, addr, timeout)
		}
	}

	led := ledger.New(cfg.InitialBalance)

	// The session delivers frames to the machine and the machine sends
	// through the session; the proxy breaks the construction cycle.
	proxy := &handlerProxy{}
	manager := session.NewManager(session.Config{
		Framing: o.framing,
		Handler: proxy,
		Logger:  o.logger,
	})

	machine, err := payment.NewMachine(payment.Config{
		Ledger:       led,
		Sender:       manager,
		Observer:     o.observer,
		Logger:       o.logger,
		Policy:       cfg.Policy,
		GenerateCode: o.generateCode,
	})
	if err != nil {
		return nil, err
	}
	proxy.set(machine)

	return &App{
		config:  cfg,
		ledger:  led,
		manager: manager,
		machine: machine,
		dialer:  dialer,
	}, nil
}

// Connect dials the merchant and opens the session. Returns
// domain.ErrSessionOpen if a session is already open, or domain.ErrSessionClosed
// after Close.
func (a *App) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return domain.ErrSessionClosed
	}
	if a.manager.State() != domain.SessionClosed {
		return domain.ErrSessionOpen
	}

	stream, err := a.dialer(ctx)
	if err != nil {
		return err
	}
	if err := a.manager.Open(stream); err != nil {
		stream.Close()
		return err
	}
	return nil
}

// Disconnect closes the session. An in-flight payment is failed and its debit
// rolled back. The client can Connect again afterwards.
func (a *App) Disconnect() error {
	return a.manager.Close()
}

// Pay initiates a payment of the given amount. The returned transaction is
// AwaitingConfirmation on success; watch the Observer for the outcome.
func (a *App) Pay(amount uint64) (Transaction, error) {
	return a.machine.Initiate(amount)
}

// Balance returns the current ledger balance.
func (a *App) Balance() uint64 {
	return a.ledger.Balance()
}

// CurrentTransaction returns a copy of the most recent transaction, if any.
func (a *App) CurrentTransaction() (Transaction, bool) {
	return a.machine.Current()
}

// SessionState returns the current session state.
func (a *App) SessionState() SessionState {
	return a.manager.State()
}

// LastSessionError returns the read failure that closed the last session, if any.
func (a *App) LastSessionError() error {
	return a.manager.LastError()
}

// SetPolicy replaces the confirmation policy for subsequent payments.
func (a *App) SetPolicy(p Policy) error {
	return a.machine.SetPolicy(p)
}

// Policy returns the active confirmation policy.
func (a *App) Policy() Policy {
	return a.machine.Policy()
}

// Close disconnects and releases the client. The App cannot be reused.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	err := a.manager.Close()
	a.machine.Close()
	return err
}

// handlerProxy forwards session callbacks to the payment machine. The machine
// is set before any session is opened, so the forwarders never see nil.
type handlerProxy struct {
	machine *payment.Machine
}

func (p *handlerProxy) set(m *payment.Machine) { p.machine = m }

func (p *handlerProxy) HandleFrame(f domain.Frame)  { p.machine.HandleFrame(f) }
func (p *handlerProxy) HandleDecodeError(err error) { p.machine.HandleDecodeError(err) }
func (p *handlerProxy) SessionClosed(err error)     { p.machine.SessionClosed(err) }

var _ session.FrameHandler = (*handlerProxy)(nil)
