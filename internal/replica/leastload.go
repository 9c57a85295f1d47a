package replica

import "github.com/akramsystems/batchproxy/internal/core"

// LeastLoad picks the replica with the lowest projected finish time for
// this specific batch (projectedFinish), rather than the teacher's
// straight in-flight-then-EMA comparison: a replica idle right now can
// still lose to a busier one whose cost-normalized rate times (in-flight
// + 1) is lower. The batch cost multiplies every candidate's score by the
// same factor, so it does not change which replica is chosen. Grounded on
// enesyesil-parallax/internal/scheduler/leastload.go, generalized from
// per-request load to per-batch-cost load.
type LeastLoad struct{}

func (s *LeastLoad) Name() string { return "ll" }

func (s *LeastLoad) Choose(rs []core.Replica, batchCost float64) *core.Replica {
	if len(rs) == 0 {
		return nil
	}
	best := rs[0]
	bestScore := projectedFinish(best, batchCost)
	for _, r := range rs[1:] {
		if score := projectedFinish(r, batchCost); score < bestScore {
			best, bestScore = r, score
		}
	}
	return &best
}
