// Command proxy runs the batching classification proxy: it wires
// configuration, logging, metrics, the pending queue, the strategy
// registry, the downstream replica pool, the downstream client, the
// dispatcher, and the HTTP surface, then serves until signalled.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/akramsystems/batchproxy/internal/api"
	"github.com/akramsystems/batchproxy/internal/config"
	"github.com/akramsystems/batchproxy/internal/core"
	"github.com/akramsystems/batchproxy/internal/downstream"
	"github.com/akramsystems/batchproxy/internal/logging"
	"github.com/akramsystems/batchproxy/internal/metrics"
	"github.com/akramsystems/batchproxy/internal/replica"
	"github.com/akramsystems/batchproxy/internal/scheduler"
)

// batchWindow is the retention window for the rolling latency/throughput
// sample (SPEC_FULL.md §4.4's GET /stats), matching the teacher's
// stats window.
const batchWindow = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	initialPolicy, err := replica.New(cfg.ReplicaPolicy)
	if err != nil {
		return fmt.Errorf("invalid REPLICA_POLICY: %w", err)
	}

	mtr := metrics.New()
	promReg := prometheus.NewRegistry()
	for _, c := range mtr.Collectors() {
		promReg.MustRegister(c)
	}

	queue := core.NewPendingQueue()
	strategies := core.NewStrategyRegistry(cfg.Strategy)
	downReg := core.NewRegistry()
	stats := core.NewStats(batchWindow)

	client := downstream.New(cfg.DownstreamURL, cfg.DownstreamTimeout, downReg, initialPolicy, mtr, logger)

	dispatcher := &scheduler.Dispatcher{
		Queue:      queue,
		Strategies: strategies,
		Client:     client,
		Metrics:    mtr,
		Stats:      stats,
		Logger:     logger,
		MaxBatch:   cfg.MaxBatch,
	}

	srv := api.NewServer(&api.Server{
		Queue:      queue,
		Strategies: strategies,
		Downstream: downReg,
		Stats:      stats,
		Metrics:    mtr,
		Logger:     logger,
		SetPolicy:  client.SetPolicy,
		PolicyName: client.PolicyName,
	})
	srv.MountMetrics(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go dispatcher.Run(ctx)

	httpSrv := &http.Server{
		Addr:    cfg.ProxyAddr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("proxy listening", zap.String("addr", cfg.ProxyAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return httpSrv.Shutdown(shutdownCtx)
}
