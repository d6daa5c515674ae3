package cliconfig

import (
	"os"
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"SOMAPAY_MERCHANT_ADDR":    "192.168.49.1:8988",
				"SOMAPAY_CONFIRM_POLICY":   "receipt",
				"SOMAPAY_FRAMING":          "chunk",
				"SOMAPAY_STATE_DIR":        "/state",
				"SOMAPAY_DIAL_TIMEOUT":     "5s",
				"SOMAPAY_FALLBACK_AFTER":   "3s",
				"SOMAPAY_INITIAL_BALANCE":  "250000",
				"SOMAPAY_FALLBACK_CONFIRM": "true",
				"SOMAPAY_DEBUG":            "true",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				MerchantAddr:    "192.168.49.1:8988",
				ConfirmPolicy:   "receipt",
				Framing:         "chunk",
				StateDir:        "/state",
				DialTimeout:     5 * time.Second,
				FallbackAfter:   3 * time.Second,
				InitialBalance:  250000,
				FallbackConfirm: true,
				Debug:           true,
			},
			wantErr: false,
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"SOMAPAY_MERCHANT_ADDR":  "env-host:9400",
				"SOMAPAY_CONFIRM_POLICY": "receipt",
			},
			changed: map[string]bool{"merchant-addr": true},
			initial: Config{
				MerchantAddr: "flag-host:9400",
			},
			expected: Config{
				MerchantAddr:  "flag-host:9400",
				ConfirmPolicy: "receipt",
			},
			wantErr: false,
		},
		{
			name: "returns error for invalid duration",
			envVars: map[string]string{
				"SOMAPAY_DIAL_TIMEOUT": "not-a-duration",
			},
			changed:  map[string]bool{},
			initial:  Config{},
			expected: Config{},
			wantErr:  true,
		},
		{
			name: "returns error for invalid balance",
			envVars: map[string]string{
				"SOMAPAY_INITIAL_BALANCE": "not-a-number",
			},
			changed:  map[string]bool{},
			initial:  Config{},
			expected: Config{},
			wantErr:  true,
		},
		{
			name: "handles bool '1' as true",
			envVars: map[string]string{
				"SOMAPAY_DEBUG": "1",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Debug: true,
			},
			wantErr: false,
		},
		{
			name: "handles bool 'false' as false",
			envVars: map[string]string{
				"SOMAPAY_FALLBACK_CONFIRM": "false",
			},
			changed: map[string]bool{},
			initial: Config{FallbackConfirm: true},
			expected: Config{
				FallbackConfirm: false,
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}
			defer func() {
				for k := range tt.envVars {
					os.Unsetenv(k)
				}
			}()

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr && err == nil {
				t.Error("ApplyEnvConfig() expected error but got nil")
				return
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ApplyEnvConfig() unexpected error: %v", err)
				return
			}

			if !tt.wantErr && cfg != tt.expected {
				t.Errorf("ApplyEnvConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

// Integration test: precedence order (CLI > Env > File)
func TestConfigPrecedence(t *testing.T) {
	trueVal := true

	fileConf := FileConfig{
		MerchantAddr:  "file-host:9400",
		ConfirmPolicy: "receipt",
		Debug:         &trueVal,
	}

	os.Setenv("SOMAPAY_MERCHANT_ADDR", "env-host:9400")
	os.Setenv("SOMAPAY_CONFIRM_POLICY", "frame")
	os.Setenv("SOMAPAY_FRAMING", "chunk")
	defer func() {
		os.Unsetenv("SOMAPAY_MERCHANT_ADDR")
		os.Unsetenv("SOMAPAY_CONFIRM_POLICY")
		os.Unsetenv("SOMAPAY_FRAMING")
	}()

	changed := map[string]bool{
		"merchant-addr": true, // CLI flag was set
	}

	cfg := Config{
		MerchantAddr: "cli-host:9400", // This should remain (CLI wins)
	}

	if err := ApplyFileConfig(&cfg, fileConf, changed); err != nil {
		t.Fatalf("ApplyFileConfig failed: %v", err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.MerchantAddr != "cli-host:9400" {
		t.Errorf("MerchantAddr = %v, want cli-host:9400 (CLI should win)", cfg.MerchantAddr)
	}
	if cfg.ConfirmPolicy != "frame" {
		t.Errorf("ConfirmPolicy = %v, want frame (env should override file)", cfg.ConfirmPolicy)
	}
	if cfg.Framing != "chunk" {
		t.Errorf("Framing = %v, want chunk (env should set)", cfg.Framing)
	}
	if cfg.Debug != true {
		t.Errorf("Debug = %v, want true (file should set)", cfg.Debug)
	}
}
