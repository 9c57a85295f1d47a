// Package replica selects which downstream classification replica should
// receive an already-formed batch. It is orthogonal to the queue Strategy
// in internal/core: that package decides what goes into a batch, this one
// decides where a formed batch is sent. Kept in its own package (rather
// than reusing the name "scheduler") because spec.md's Scheduler is the
// dispatcher loop, a different concept than a worker-choice policy.
package replica

import "github.com/akramsystems/batchproxy/internal/core"

// Policy picks a replica from a snapshot of the pool for a batch of the
// given predicted cost (spec.md §6's (max item length)^2 downstream
// latency model, computed by the caller from the batch about to be
// sent). Grounded on enesyesil-parallax/internal/scheduler/scheduler.go's
// Scheduler interface (WorkerInfo -> core.Replica), extended with the
// cost argument so a policy can weigh a heavy incoming batch against a
// replica's existing queue the way SJF weighs tickets against each
// other, rather than balancing as if every unit of work were the same
// size.
type Policy interface {
	Name() string
	Choose(rs []core.Replica, batchCost float64) *core.Replica
}
