package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Chain.ReadTimeout != 5*time.Second {
		t.Errorf("expected 5s read timeout, got %v", cfg.Chain.ReadTimeout)
	}
	if cfg.Chain.TxTimeout != 60*time.Second {
		t.Errorf("expected 60s tx timeout, got %v", cfg.Chain.TxTimeout)
	}
	if cfg.Explorer.MaxAttempts != 4 || cfg.Explorer.BaseDelay != 500*time.Millisecond {
		t.Errorf("unexpected explorer retry defaults: %+v", cfg.Explorer)
	}
	if cfg.Locks.Backend != "local" || cfg.Usage.Backend != "sqlite" {
		t.Errorf("unexpected backends: locks=%s usage=%s", cfg.Locks.Backend, cfg.Usage.Backend)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"malformed duration", "CHAIN_TX_TIMEOUT", "soon"},
		{"unknown lock backend", "LOCK_BACKEND", "zookeeper"},
		{"unknown usage backend", "USAGE_BACKEND", "dynamo"},
		{"malformed chain id", "CHAIN_ID", "mainnet"},
		{"zero explorer attempts", "EXPLORER_MAX_ATTEMPTS", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHAIN_ID", "8453")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("EXPLORER_BASE_DELAY", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Chain.ChainId != 8453 {
		t.Errorf("expected chain id 8453, got %d", cfg.Chain.ChainId)
	}
	if cfg.Locks.Backend != "redis" {
		t.Errorf("expected redis lock backend, got %s", cfg.Locks.Backend)
	}
	if cfg.Explorer.BaseDelay != 250*time.Millisecond {
		t.Errorf("expected 250ms base delay, got %v", cfg.Explorer.BaseDelay)
	}
}
