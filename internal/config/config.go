// Package config loads the proxy's environment-driven configuration.
// Adapted from urands-ttmesh/ttmesh/pkg/config/config.go's
// defaults-then-AutomaticEnv-then-validate shape, trimmed from a
// YAML-file-first loader to an env-only one (spec.md §6 defines only
// environment variables, no config file) and from TTMESH_-prefixed keys
// to the exact unprefixed names spec.md fixes.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/akramsystems/batchproxy/internal/core"
)

// Config is the complete runtime configuration of the proxy process.
type Config struct {
	// ProxyAddr is the HTTP listen address for the proxy's own surface.
	ProxyAddr string

	// Strategy is the initial queue-ordering policy.
	Strategy core.Strategy

	// DownstreamURL is the base URL of the classification service used
	// when no replica has registered itself (spec.md §6 default), with any
	// trailing "/classify" removed; the downstream client appends it.
	DownstreamURL string

	// MaxBatch is B_MAX, the maximum tickets per dispatched batch.
	MaxBatch int

	// DownstreamTimeout bounds a single downstream round-trip.
	DownstreamTimeout time.Duration

	// ReplicaPolicy names the initial downstream replica selection
	// policy ("rr"|"ll"|"p2c").
	ReplicaPolicy string

	// LogLevel/LogFormat configure internal/logging.
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment. It never panics: startup
// failures (invalid MAX_BATCH, unknown PROXY_STRATEGY) are returned as
// errors so the caller can exit non-zero per spec.md §6.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("PROXY_ADDR", ":8080")
	v.SetDefault("PROXY_STRATEGY", "fcfs")
	v.SetDefault("DOWNSTREAM_URL", "http://localhost:8001/classify")
	v.SetDefault("MAX_BATCH", 5)
	v.SetDefault("DOWNSTREAM_TIMEOUT_MS", 10000)
	v.SetDefault("REPLICA_POLICY", "rr")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	strategy, err := core.ParseStrategy(v.GetString("PROXY_STRATEGY"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROXY_STRATEGY: %w", err)
	}

	maxBatch := v.GetInt("MAX_BATCH")
	if maxBatch < 1 {
		return nil, fmt.Errorf("MAX_BATCH must be >= 1, got %d", maxBatch)
	}

	downstreamURL := strings.TrimSuffix(v.GetString("DOWNSTREAM_URL"), "/classify")

	cfg := &Config{
		ProxyAddr:         v.GetString("PROXY_ADDR"),
		Strategy:          strategy,
		DownstreamURL:     downstreamURL,
		MaxBatch:          maxBatch,
		DownstreamTimeout: time.Duration(v.GetInt("DOWNSTREAM_TIMEOUT_MS")) * time.Millisecond,
		ReplicaPolicy:     v.GetString("REPLICA_POLICY"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogFormat:         v.GetString("LOG_FORMAT"),
	}
	return cfg, nil
}
