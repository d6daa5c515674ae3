// Package watcher monitors the somapay config file for changes and applies
// updated confirmation settings to a running payment machine without a
// restart. Connection settings (merchant address, framing) still require a
// reconnect and are ignored here.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/foadkaksamandi-blip/soma-customer-app/internal/cliconfig"
	"github.com/foadkaksamandi-blip/soma-customer-app/internal/payment"
	"github.com/foadkaksamandi-blip/soma-customer-app/pkg/log"
)

// PolicyApplier is the subset of the payment machine the watcher drives.
type PolicyApplier interface {
	Policy() payment.Policy
	SetPolicy(payment.Policy) error
}

// Config holds configuration options for the config watcher.
type Config struct {
	// Path is the TOML config file to watch.
	Path string

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// Applier receives the reloaded policy.
	Applier PolicyApplier

	// Logger is optional.
	Logger log.Logger
}

// Watcher reloads confirmation policy settings when the config file changes.
type Watcher struct {
	mu sync.Mutex

	path          string
	debounceDelay time.Duration
	applier       PolicyApplier
	logger        log.Logger

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
}

// New creates a config watcher. The Applier and Path are required.
func New(cfg Config) *Watcher {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Watcher{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		applier:       cfg.Applier,
		logger:        logger,
	}
}

// Start begins watching the config file's directory. It returns an error if
// the filesystem watcher cannot be created or the directory cannot be
// watched; the caller decides whether that is fatal.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.watchLoop(watchCtx, fw)

	w.logger.Info("config watcher started", log.String("path", w.path))
	return nil
}

// Stop halts the watcher and waits for the watch loop to exit.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()

	w.mu.Lock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.mu.Unlock()
}

func (w *Watcher) watchLoop(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fw.Close()

	base := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			// Renames cover atomic temp-and-rename saves.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.debounceReload()

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) debounceReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.debounceDelay, w.reload)
}

// reload overlays the file's confirmation settings onto the current policy.
// A file that fails to parse or validate leaves the running policy untouched.
func (w *Watcher) reload() {
	fc, err := cliconfig.LoadFileConfig(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", log.Err(err))
		return
	}

	policy := w.applier.Policy()

	if fc.ConfirmPolicy != "" {
		confirm, err := payment.ParseConfirmPolicy(fc.ConfirmPolicy)
		if err != nil {
			w.logger.Warn("config reload failed", log.Err(err))
			return
		}
		policy.Confirm = confirm
	}
	if fc.FallbackConfirm != nil {
		policy.FallbackEnabled = *fc.FallbackConfirm
	}
	if fc.FallbackAfter != "" {
		d, err := time.ParseDuration(fc.FallbackAfter)
		if err != nil {
			w.logger.Warn("config reload failed", log.Err(err))
			return
		}
		policy.FallbackAfter = d
	}

	if err := w.applier.SetPolicy(policy); err != nil {
		w.logger.Warn("config reload rejected", log.Err(err))
		return
	}
	w.logger.Info("confirmation policy reloaded",
		log.String("confirm", policy.Confirm.String()),
		log.Bool("fallback", policy.FallbackEnabled),
		log.Duration("fallback_after", policy.FallbackAfter))
}
