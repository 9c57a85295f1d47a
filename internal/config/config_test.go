package config

import (
	"os"
	"testing"
	"time"

	"github.com/akramsystems/batchproxy/internal/core"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PROXY_ADDR", "PROXY_STRATEGY", "DOWNSTREAM_URL", "MAX_BATCH",
		"DOWNSTREAM_TIMEOUT_MS", "REPLICA_POLICY", "LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			} else {
				os.Unsetenv(k)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ProxyAddr != ":8080" {
		t.Errorf("ProxyAddr = %q", cfg.ProxyAddr)
	}
	if cfg.Strategy != core.FCFS {
		t.Errorf("Strategy = %v", cfg.Strategy)
	}
	if cfg.MaxBatch != 5 {
		t.Errorf("MaxBatch = %d", cfg.MaxBatch)
	}
	if cfg.DownstreamTimeout != 10*time.Second {
		t.Errorf("DownstreamTimeout = %v", cfg.DownstreamTimeout)
	}
	if cfg.ReplicaPolicy != "rr" {
		t.Errorf("ReplicaPolicy = %q", cfg.ReplicaPolicy)
	}
}

func TestLoadRejectsUnknownStrategy(t *testing.T) {
	clearEnv(t)
	os.Setenv("PROXY_STRATEGY", "bogus")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown PROXY_STRATEGY")
	}
}

func TestLoadRejectsMaxBatchBelowOne(t *testing.T) {
	clearEnv(t)
	os.Setenv("MAX_BATCH", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for MAX_BATCH < 1")
	}
}

func TestLoadStripsClassifySuffix(t *testing.T) {
	clearEnv(t)
	os.Setenv("DOWNSTREAM_URL", "http://example.com:9000/classify")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DownstreamURL != "http://example.com:9000" {
		t.Fatalf("DownstreamURL = %q", cfg.DownstreamURL)
	}
}
