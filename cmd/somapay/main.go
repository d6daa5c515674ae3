package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	somapay "github.com/foadkaksamandi-blip/soma-customer-app"
	"github.com/foadkaksamandi-blip/soma-customer-app/internal/adapters/fs"
	"github.com/foadkaksamandi-blip/soma-customer-app/internal/cliconfig"
	"github.com/foadkaksamandi-blip/soma-customer-app/internal/payment"
	"github.com/foadkaksamandi-blip/soma-customer-app/internal/watcher"
	"github.com/foadkaksamandi-blip/soma-customer-app/pkg/log"
)

const helpDescription = `
Customer-side payment client for SOMA merchant devices.

Connects to the merchant over TCP, keeps an offline balance, and drives
payments through the PAY / PAYMENT_CONFIRMED / RECEIPT exchange.

Interactive commands once connected:
  pay <amount>   initiate a payment
  balance        print the current balance
  status         print the session and last transaction
  quit           disconnect and exit
`

var exampleUsage = strings.TrimSpace(`
  somapay --merchant-addr 192.168.49.1:8988
  somapay --config $HOME/.somapay/config.toml --confirm-policy receipt
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	logger := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "somapay",
		Short:   "Customer-side payment client for SOMA merchant devices",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load config file first (default $HOME/.somapay/config.toml),
			// then env vars; flags win via the changed map.
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			if !cfg.Debug {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
			logger.Info().Interface("config", cfg).Msg("configuration")

			return run(logger, cfg, cfgFile)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.somapay/config.toml)")
	root.Flags().StringVar(&cfg.MerchantAddr, "merchant-addr", cfg.MerchantAddr, "merchant device address (host:port)")
	root.Flags().DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "connection establishment timeout")
	root.Flags().Uint64Var(&cfg.InitialBalance, "initial-balance", cfg.InitialBalance, "starting balance when no snapshot exists")
	root.Flags().StringVar(&cfg.ConfirmPolicy, "confirm-policy", cfg.ConfirmPolicy, "confirmation policy: frame or receipt")
	root.Flags().BoolVar(&cfg.FallbackConfirm, "fallback-confirm", cfg.FallbackConfirm, "optimistically confirm when the merchant never acknowledges")
	root.Flags().DurationVar(&cfg.FallbackAfter, "fallback-after", cfg.FallbackAfter, "wait before optimistic confirmation")
	root.Flags().StringVar(&cfg.Framing, "framing", cfg.Framing, "inbound framing: line or chunk")
	root.Flags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for the balance snapshot (empty disables persistence)")
	root.Flags().BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")

	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("somapay")
		os.Exit(1)
	}
}

func run(logger zerolog.Logger, cfg cliconfig.Config, cfgFile string) error {
	confirm, err := payment.ParseConfirmPolicy(cfg.ConfirmPolicy)
	if err != nil {
		return err
	}
	framing := somapay.FramingLine
	if cfg.Framing == "chunk" {
		framing = somapay.FramingChunk
	}

	// The balance snapshot survives restarts; the configured initial balance
	// only seeds the first run.
	initialBalance := cfg.InitialBalance
	var balanceFile *fs.BalanceFile
	if cfg.StateDir != "" {
		balanceFile = fs.NewBalanceFile(cfg.StateDir)
		if saved, ok, err := balanceFile.Load(); err != nil {
			return fmt.Errorf("load balance snapshot: %w", err)
		} else if ok {
			initialBalance = saved
		}
	}

	adapter := log.NewZerologAdapterWithLogger(logger)

	app, err := somapay.New(somapay.Config{
		MerchantAddr:   cfg.MerchantAddr,
		DialTimeout:    cfg.DialTimeout,
		InitialBalance: initialBalance,
		Policy: somapay.Policy{
			Confirm:         confirm,
			FallbackEnabled: cfg.FallbackConfirm,
			FallbackAfter:   cfg.FallbackAfter,
		},
	},
		somapay.WithLogger(adapter),
		somapay.WithObserver(consoleObserver{}),
		somapay.WithFraming(framing),
	)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Connect(ctx); err != nil {
		return fmt.Errorf("connect to merchant: %w", err)
	}
	fmt.Printf("connected to %s, balance %d\n", cfg.MerchantAddr, app.Balance())

	// Reload confirmation settings when the config file changes.
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		w := watcher.New(watcher.Config{
			Path:    cfgFile,
			Applier: app,
			Logger:  adapter,
		})
		if err := w.Start(ctx); err != nil {
			logger.Warn().Err(err).Msg("config watcher disabled")
		} else {
			defer w.Stop()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

loop:
	for {
		select {
		case <-sigCh:
			fmt.Println("\nreceived signal, stopping...")
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if quit := handleCommand(app, line); quit {
				break loop
			}
		}
	}

	if balanceFile != nil {
		if err := balanceFile.Save(app.Balance()); err != nil {
			logger.Error().Err(err).Msg("save balance snapshot")
		}
	}
	return app.Close()
}

// handleCommand executes one interactive command. Returns true to exit.
func handleCommand(app *somapay.App, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "pay":
		if len(fields) != 2 {
			fmt.Println("usage: pay <amount>")
			return false
		}
		amount, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil || amount == 0 {
			fmt.Println("amount must be a positive integer")
			return false
		}
		if _, err := app.Pay(amount); err != nil {
			fmt.Printf("payment rejected: %v\n", err)
		}

	case "balance":
		fmt.Printf("balance: %d\n", app.Balance())

	case "status":
		fmt.Printf("session: %s\n", app.SessionState())
		if tx, ok := app.CurrentTransaction(); ok {
			fmt.Printf("transaction %s: %s, amount %d\n", tx.Code, tx.Status, tx.Amount)
			if tx.FailureReason != "" {
				fmt.Printf("  failure: %s\n", tx.FailureReason)
			}
			if tx.Receipt != "" {
				fmt.Printf("  receipt: %s\n", tx.Receipt)
			}
		}

	case "quit", "exit":
		return true

	default:
		fmt.Printf("unknown command %q (pay, balance, status, quit)\n", fields[0])
	}
	return false
}

// consoleObserver prints payment events to stdout for the interactive user.
type consoleObserver struct{}

func (consoleObserver) OnStatusChanged(status somapay.TransactionStatus, message string) {
	fmt.Printf("[%s] %s\n", status, message)
}

func (consoleObserver) OnReceipt(data string) {
	fmt.Printf("receipt: %s\n", data)
}

func (consoleObserver) OnBalanceChanged(balance uint64) {
	fmt.Printf("balance: %d\n", balance)
}
