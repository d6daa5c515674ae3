package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (SOMAPAY_*).
// It respects flags that have been explicitly set (changed map).
// Returns an error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("merchant-addr", os.Getenv("SOMAPAY_MERCHANT_ADDR"), &cfg.MerchantAddr)
	s.setString("confirm-policy", os.Getenv("SOMAPAY_CONFIRM_POLICY"), &cfg.ConfirmPolicy)
	s.setString("framing", os.Getenv("SOMAPAY_FRAMING"), &cfg.Framing)
	s.setString("state-dir", os.Getenv("SOMAPAY_STATE_DIR"), &cfg.StateDir)

	if err := s.setDuration("dial-timeout", os.Getenv("SOMAPAY_DIAL_TIMEOUT"), &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setDuration("fallback-after", os.Getenv("SOMAPAY_FALLBACK_AFTER"), &cfg.FallbackAfter); err != nil {
		return err
	}
	if err := s.setUint64FromString("initial-balance", os.Getenv("SOMAPAY_INITIAL_BALANCE"), &cfg.InitialBalance); err != nil {
		return err
	}

	s.setBoolFromString("fallback-confirm", os.Getenv("SOMAPAY_FALLBACK_CONFIRM"), &cfg.FallbackConfirm)
	s.setBoolFromString("debug", os.Getenv("SOMAPAY_DEBUG"), &cfg.Debug)

	return nil
}
