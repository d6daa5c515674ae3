// Package cliconfig loads the somapay CLI configuration from its three
// sources: a TOML config file, SOMAPAY_* environment variables, and command
// line flags. Flags win over env vars, which win over the file; precedence is
// enforced through the changed-flags map passed to the apply functions.
package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/foadkaksamandi-blip/soma-customer-app/internal/domain"
)

// Defaults. The starting balance matches the merchant-side demo setup; the
// 2s fallback matches the legacy customer app's optimistic confirmation wait.
const (
	DefaultInitialBalance = 100000
	DefaultDialTimeout    = 10 * time.Second
	DefaultFallbackAfter  = 2 * time.Second
)

// Config holds CLI configuration for somapay.
type Config struct {
	// MerchantAddr is the merchant device's address (host:port). Required.
	MerchantAddr string

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration

	// InitialBalance seeds the ledger when no balance snapshot exists.
	InitialBalance uint64

	// ConfirmPolicy is "frame" or "receipt".
	ConfirmPolicy string

	// FallbackConfirm enables optimistic confirmation after FallbackAfter.
	FallbackConfirm bool

	// FallbackAfter is the optimistic confirmation wait.
	FallbackAfter time.Duration

	// Framing is "line" (newline-delimited) or "chunk" (legacy read-boundary).
	Framing string

	// StateDir holds the balance snapshot. Empty disables persistence.
	StateDir string

	// Debug enables debug-level logging.
	Debug bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		DialTimeout:     DefaultDialTimeout,
		InitialBalance:  DefaultInitialBalance,
		ConfirmPolicy:   "frame",
		FallbackConfirm: true,
		FallbackAfter:   DefaultFallbackAfter,
		Framing:         "line",
		StateDir:        DefaultStateDir(),
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.MerchantAddr == "" {
		return fmt.Errorf("%w: merchant-addr is required", domain.ErrInvalidConfig)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("%w: dial timeout must be positive", domain.ErrInvalidConfig)
	}
	switch c.ConfirmPolicy {
	case "frame", "receipt":
	default:
		return fmt.Errorf("%w: confirm-policy must be \"frame\" or \"receipt\", got %q", domain.ErrInvalidConfig, c.ConfirmPolicy)
	}
	switch c.Framing {
	case "line", "chunk":
	default:
		return fmt.Errorf("%w: framing must be \"line\" or \"chunk\", got %q", domain.ErrInvalidConfig, c.Framing)
	}
	if c.FallbackConfirm && c.FallbackAfter <= 0 {
		return fmt.Errorf("%w: fallback-after must be positive when fallback confirmation is enabled", domain.ErrInvalidConfig)
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setUint64 sets a uint64 value if the flag hasn't been changed.
func (s *configSetter) setUint64(flag string, value *uint64, dst *uint64) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setUint64FromString parses a string to uint64 and sets the destination.
// Used for environment variables that come as strings.
func (s *configSetter) setUint64FromString(flag, value string, dst *uint64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	u, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = u
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
