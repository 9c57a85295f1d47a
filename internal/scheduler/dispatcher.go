// Package scheduler implements the spec.md §4.3 Scheduler/Dispatcher: a
// single long-running loop that drains the pending queue into batches and
// hands each one to the downstream client, strictly serially.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/akramsystems/batchproxy/internal/core"
	"github.com/akramsystems/batchproxy/internal/metrics"
)

// idleWakeup bounds how long the dispatcher can sleep with an empty queue
// before checking again, per spec.md §4.3 step 1 ("a small wake-up
// timeout (<= a few milliseconds) for liveness").
const idleWakeup = 3 * time.Millisecond

// Classifier is the subset of downstream.Client the dispatcher depends on,
// so tests can substitute a stub without standing up HTTP.
type Classifier interface {
	Classify(ctx context.Context, items []string) ([]string, *core.SchedError)
}

// Dispatcher is the spec.md §4.3 Scheduler: strictly serial, at most one
// outstanding downstream call at a time. Adapted from
// enesyesil-parallax/internal/core/microbatch.go's Batcher.Run/flushWindow
// loop shape, replacing time-windowed accumulation with the opportunistic
// "form the best batch you can as soon as anything is pending" policy
// spec.md requires.
type Dispatcher struct {
	Queue      *core.PendingQueue
	Strategies *core.StrategyRegistry
	Client     Classifier
	Metrics    *metrics.Metrics
	Stats      *core.Stats
	Logger     *zap.Logger
	MaxBatch   int
}

// Run drains the queue until ctx is cancelled. It is meant to be started
// as the single dispatcher goroutine for the process.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !d.Queue.Ready() {
			select {
			case <-ctx.Done():
				return
			case <-d.Queue.WaitChan():
			case <-time.After(idleWakeup):
			}
			continue
		}

		strategy := d.Strategies.Current()
		batch := d.Queue.TakeBatch(d.MaxBatch, strategy)
		if len(batch) == 0 {
			continue
		}

		d.dispatch(ctx, batch, strategy)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, batch []*core.Ticket, strategy core.Strategy) {
	if d.Metrics != nil {
		d.Metrics.BatchSize.Observe(float64(len(batch)))
		d.Metrics.QueueDepth.Set(float64(d.Queue.Depth()))
	}

	items := make([]string, len(batch))
	for i, t := range batch {
		items[i] = t.Item
	}

	start := time.Now()
	results, schedErr := d.Client.Classify(ctx, items)
	elapsed := time.Since(start)

	if d.Metrics != nil {
		d.Metrics.DispatchLatency.Observe(elapsed.Seconds())
	}

	if schedErr != nil {
		if d.Metrics != nil {
			d.Metrics.DownstreamErrors.WithLabelValues(string(schedErr.Kind)).Inc()
		}
		if d.Logger != nil {
			d.Logger.Error("batch dispatch failed",
				zap.String("strategy", string(strategy)),
				zap.Int("batch_size", len(batch)),
				zap.String("kind", string(schedErr.Kind)),
				zap.String("error", schedErr.Msg),
			)
		}
		for _, t := range batch {
			t.Handle.Publish(core.Outcome{Err: schedErr})
		}
		return
	}

	if len(results) != len(batch) {
		// Invariant violation: the client contract guarantees equal
		// length, but a broken Classifier implementation must not
		// silently corrupt other tickets' results.
		internalErr := core.NewError(core.Internal, "result count did not match batch size")
		if d.Logger != nil {
			d.Logger.Error("dispatcher invariant violation", zap.Int("results", len(results)), zap.Int("batch", len(batch)))
		}
		for _, t := range batch {
			t.Handle.Publish(core.Outcome{Err: internalErr})
		}
		return
	}

	if d.Stats != nil {
		d.Stats.Add(time.Now(), strategy, elapsed.Seconds())
	}
	if d.Logger != nil {
		d.Logger.Info("batch dispatched",
			zap.String("strategy", string(strategy)),
			zap.Int("batch_size", len(batch)),
			zap.Duration("elapsed", elapsed),
		)
	}
	for i, t := range batch {
		t.Handle.Publish(core.Outcome{Result: results[i]})
	}
}
