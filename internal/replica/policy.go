package replica

import (
	"fmt"
	"strings"
)

// New constructs the Policy named by s ("rr", "ll", or "p2c"),
// case-insensitively.
func New(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rr":
		return &RoundRobin{}, nil
	case "ll":
		return &LeastLoad{}, nil
	case "p2c":
		return &P2C{D: 2}, nil
	default:
		return nil, fmt.Errorf("unknown replica policy %q", s)
	}
}
