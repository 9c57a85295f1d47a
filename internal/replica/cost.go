package replica

import "github.com/akramsystems/batchproxy/internal/core"

// hugeRate stands in for "unknown load" when a replica carries no positive
// LoadEMA: treated as arbitrarily slow so a replica with a positive rate
// is always preferred. core.Registry seeds every newly registered replica
// with a positive default rate, so this applies only to replica values
// that did not come from a Registry snapshot.
const hugeRate = 1e18

// projectedFinish estimates how long a replica would take to clear an
// incoming batch of the given cost, accounting for what it's already
// carrying: its smoothed per-cost rate times (in-flight batches ahead of
// this one, plus this one) times the incoming batch's own cost. Because
// the same cost multiplies every candidate's score, comparing scores for
// one batch ranks replicas by rate times (in-flight + 1): a nominally
// idle replica with a high rate loses to a busier one with a low enough
// rate, whatever the batch's cost.
func projectedFinish(r core.Replica, cost float64) float64 {
	rate := r.LoadEMA
	if rate <= 0 {
		rate = hugeRate
	}
	return rate * float64(r.InFlight+1) * cost
}
