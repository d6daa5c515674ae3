package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML
// friendly, and pointers for booleans so an unset key is distinguishable from
// an explicit false.
type FileConfig struct {
	MerchantAddr    string  `toml:"merchant_addr"`
	DialTimeout     string  `toml:"dial_timeout"`
	InitialBalance  *uint64 `toml:"initial_balance"`
	ConfirmPolicy   string  `toml:"confirm_policy"`
	FallbackConfirm *bool   `toml:"fallback_confirm"`
	FallbackAfter   string  `toml:"fallback_after"`
	Framing         string  `toml:"framing"`
	StateDir        string  `toml:"state_dir"`
	Debug           *bool   `toml:"debug"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.somapay/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".somapay", "config.toml")
	}
	return ""
}

// DefaultStateDir returns the default directory for the balance snapshot.
func DefaultStateDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".somapay")
	}
	return ""
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("merchant-addr", fc.MerchantAddr, &cfg.MerchantAddr)
	s.setString("confirm-policy", fc.ConfirmPolicy, &cfg.ConfirmPolicy)
	s.setString("framing", fc.Framing, &cfg.Framing)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)

	if err := s.setDuration("dial-timeout", fc.DialTimeout, &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setDuration("fallback-after", fc.FallbackAfter, &cfg.FallbackAfter); err != nil {
		return err
	}

	s.setUint64("initial-balance", fc.InitialBalance, &cfg.InitialBalance)
	s.setBool("fallback-confirm", fc.FallbackConfirm, &cfg.FallbackConfirm)
	s.setBool("debug", fc.Debug, &cfg.Debug)

	return nil
}
