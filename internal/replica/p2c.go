package replica

import (
	"math/rand"

	"github.com/akramsystems/batchproxy/internal/core"
)

// P2C samples D distinct replicas at random and sends the batch to
// whichever has the lower projectedFinish for it, rather than comparing
// raw in-flight-then-EMA: the same cost-aware scoring LeastLoad and
// batch-cost-weighted ordering use, sampled instead of scanned. D=2 is
// the classic power-of-two-choices policy; D<=1 degenerates to picking
// the first replica. Grounded on
// enesyesil-parallax/internal/scheduler/p2c.go.
type P2C struct {
	D int
}

func (s *P2C) Name() string {
	if s.D <= 1 {
		return "p1"
	}
	if s.D == 2 {
		return "p2c"
	}
	return "pdc"
}

func (s *P2C) Choose(rs []core.Replica, batchCost float64) *core.Replica {
	n := len(rs)
	if n == 0 {
		return nil
	}
	if n == 1 || s.D <= 1 {
		return &rs[0]
	}

	d := s.D
	if d > n {
		d = n
	}

	seen := make(map[int]struct{}, d)
	bestIdx := -1
	for picked := 0; picked < d; {
		i := rand.Intn(n)
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		if bestIdx == -1 {
			bestIdx = i
		} else {
			bestIdx = betterIdx(rs, bestIdx, i, batchCost)
		}
		picked++
	}
	return &rs[bestIdx]
}

func betterIdx(rs []core.Replica, a, b int, batchCost float64) int {
	sa, sb := projectedFinish(rs[a], batchCost), projectedFinish(rs[b], batchCost)
	if sa < sb {
		return a
	}
	if sa > sb {
		return b
	}
	if rand.Intn(2) == 0 {
		return a
	}
	return b
}
