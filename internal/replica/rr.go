package replica

import "github.com/akramsystems/batchproxy/internal/core"

// RoundRobin cycles through the replica pool in registration order,
// ignoring batch cost entirely: it's the no-model baseline the other two
// policies are judged against. Grounded on
// enesyesil-parallax/internal/scheduler/rr.go.
type RoundRobin struct {
	i int
}

func (s *RoundRobin) Name() string { return "rr" }

func (s *RoundRobin) Choose(rs []core.Replica, _ float64) *core.Replica {
	if len(rs) == 0 {
		return nil
	}
	r := rs[s.i%len(rs)]
	s.i++
	return &r
}
