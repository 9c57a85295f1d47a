package core

import (
	"sync"
	"time"
)

// Replica is one downstream classification service instance. Its
// LoadEMA/InFlight fields are maintained by MarkStart/MarkFinish and read
// by the replica selection policies (internal/replica).
type Replica struct {
	ID       string
	Addr     string
	LastSeen time.Time

	// LoadEMA is an exponential moving average of observed milliseconds
	// per unit of batch cost on this replica, not raw call latency: a
	// replica that just cleared a big batch slowly isn't necessarily
	// worse than one that cleared a tiny batch quickly. Cost is the same
	// (max item length)^2 estimate spec.md §6 attributes to the
	// classifier's own latency model, so the policies in internal/replica
	// can multiply LoadEMA back out by an incoming batch's cost to
	// project that replica's finish time (SJF's own ordering, applied to
	// replica choice instead of queue order).
	LoadEMA  float64
	InFlight int
}

// defaultRateMS seeds LoadEMA before any batch has completed on a
// replica: a mild guess of one millisecond per unit of cost, so a
// freshly-registered replica isn't treated as either free or infinitely
// slow before it has a track record.
const defaultRateMS = 1.0

// Registry tracks the downstream replica pool: identity, in-flight
// count, and per-replica cost-normalized load. The bookkeeping shape
// (map-of-EMA, map-of-in-flight-count guarded by one RWMutex) is
// enesyesil-parallax/internal/core/registry.go's; what MarkFinish smooths
// is this proxy's own cost-normalized rate rather than the teacher's raw
// per-request latency, since a load balancer's requests are
// interchangeable but this proxy's batches are not.
type Registry struct {
	mu       sync.RWMutex
	replicas []Replica
	loadEMA  map[string]float64
	infl     map[string]int
	alpha    float64
}

func NewRegistry() *Registry {
	return &Registry{
		loadEMA: make(map[string]float64),
		infl:    make(map[string]int),
		alpha:   0.8,
	}
}

// Upsert registers a replica or refreshes its last-seen time if already
// known.
func (r *Registry) Upsert(rep Replica) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep.LastSeen = time.Now()
	for i := range r.replicas {
		if r.replicas[i].ID == rep.ID {
			r.replicas[i].Addr = rep.Addr
			r.replicas[i].LastSeen = rep.LastSeen
			return
		}
	}
	r.replicas = append(r.replicas, rep)
	if _, ok := r.loadEMA[rep.ID]; !ok {
		r.loadEMA[rep.ID] = defaultRateMS
	}
}

// Snapshot returns a point-in-time copy of all known replicas with their
// current load, safe to read without holding the registry lock.
func (r *Registry) Snapshot() []Replica {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cp := make([]Replica, len(r.replicas))
	for i, rep := range r.replicas {
		rep.LoadEMA = r.loadEMA[rep.ID]
		rep.InFlight = r.infl[rep.ID]
		cp[i] = rep
	}
	return cp
}

// MarkStart records that a batch has been dispatched to id.
func (r *Registry) MarkStart(id string) {
	r.mu.Lock()
	r.infl[id]++
	r.mu.Unlock()
}

// MarkFinish records that id finished a batch of the given cost after
// durMS milliseconds, folds durMS/cost into id's smoothed rate, and
// returns the updated rate for callers that want to publish it (e.g. the
// proxy_replica_load_ema_ms gauge).
func (r *Registry) MarkFinish(id string, durMS int, cost float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.infl[id] > 0 {
		r.infl[id]--
	}
	if cost < 1 {
		cost = 1
	}
	rate := float64(durMS) / cost
	old := r.loadEMA[id]
	newEMA := r.alpha*old + (1.0-r.alpha)*rate
	r.loadEMA[id] = newEMA
	return newEMA
}

// Len reports how many replicas are currently registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.replicas)
}
