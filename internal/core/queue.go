package core

import (
	"sort"
	"sync"
)

// PendingQueue is the ordered multiset of not-yet-dispatched tickets.
// Ownership is exclusive to the scheduler loop; intake only adds tickets
// (Enqueue) and reads Depth. All access goes through Enqueue/TakeBatch under one mutex, with
// a condition-style wakeup channel for the empty-to-non-empty transition
// (spec.md §9), generalized from
// enesyesil-parallax/internal/core/microbatch.go's single mutex-guarded
// `pending` slice into three ordering disciplines sharing one struct.
type PendingQueue struct {
	mu      sync.Mutex
	pending []*Ticket
	notify  chan struct{}

	// FAIR rotation state. lastStrategy tracks the previously active
	// strategy so a transition *into* FAIR resets the cursor and the
	// known tenant order, per spec.md §9's open-question resolution.
	tenantOrder  []string
	fairCursor   int
	lastStrategy Strategy
}

func NewPendingQueue() *PendingQueue {
	return &PendingQueue{
		notify: make(chan struct{}),
	}
}

// Enqueue appends a ticket and wakes any dispatcher waiting on an empty
// queue. Safe for concurrent use by many intake goroutines.
func (q *PendingQueue) Enqueue(t *Ticket) {
	q.mu.Lock()
	q.pending = append(q.pending, t)
	ch := q.notify
	q.notify = make(chan struct{})
	q.mu.Unlock()
	close(ch)
}

// Ready reports whether the queue currently holds any ticket.
func (q *PendingQueue) Ready() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) > 0
}

// Depth returns the current number of pending tickets, for metrics.
func (q *PendingQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// WaitChan returns a channel that closes the next time a ticket is
// enqueued. The dispatcher selects on it alongside a short timeout so it
// consumes no CPU while idle but still wakes up periodically for
// liveness (spec.md §4.3 step 1).
func (q *PendingQueue) WaitChan() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.notify
}

// TakeBatch forms and removes a batch of up to maxBatch tickets according
// to strategy. It is atomic with respect to Enqueue: nothing can be
// inserted mid-scan, so an arriving ticket never preempts an
// in-formation batch (spec.md §9). Returns nil if the queue is empty.
func (q *PendingQueue) TakeBatch(maxBatch int, strategy Strategy) []*Ticket {
	q.mu.Lock()
	defer q.mu.Unlock()

	if strategy != q.lastStrategy {
		if strategy == FAIR {
			q.fairCursor = 0
			q.tenantOrder = nil
		}
		q.lastStrategy = strategy
	}

	switch strategy {
	case SJF:
		return q.takeSJFLocked(maxBatch)
	case FAIR:
		return q.takeFAIRLocked(maxBatch)
	default:
		return q.takeFCFSLocked(maxBatch)
	}
}

func (q *PendingQueue) takeFCFSLocked(maxBatch int) []*Ticket {
	n := len(q.pending)
	if n == 0 {
		return nil
	}
	take := maxBatch
	if take > n {
		take = n
	}
	batch := append([]*Ticket(nil), q.pending[:take]...)
	q.pending = append([]*Ticket(nil), q.pending[take:]...)
	return batch
}

// takeSJFLocked picks the maxBatch smallest tickets by size, ties broken
// by earlier enqueue (spec.md §4.2 table).
func (q *PendingQueue) takeSJFLocked(maxBatch int) []*Ticket {
	n := len(q.pending)
	if n == 0 {
		return nil
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return q.pending[order[a]].Size < q.pending[order[b]].Size
	})

	take := maxBatch
	if take > n {
		take = n
	}

	chosen := make(map[int]bool, take)
	batch := make([]*Ticket, 0, take)
	for _, idx := range order[:take] {
		batch = append(batch, q.pending[idx])
		chosen[idx] = true
	}

	remaining := make([]*Ticket, 0, n-take)
	for i, t := range q.pending {
		if !chosen[i] {
			remaining = append(remaining, t)
		}
	}
	q.pending = remaining
	return batch
}

// takeFAIRLocked cycles tenants in a deterministic order (first-seen,
// newly-appearing tenants within the same formation broken alphabetically)
// taking the oldest ticket from each, until the batch is full or every
// tenant's sub-queue at the current cursor position is empty. The cursor
// (fairCursor) survives across calls so no tenant is starved under
// continuous load (spec.md §4.2, §5). Rotation logic adapted from
// enesyesil-parallax/internal/scheduler/rr.go's `i % len(ws)` cursor.
func (q *PendingQueue) takeFAIRLocked(maxBatch int) []*Ticket {
	if len(q.pending) == 0 {
		return nil
	}

	groups := make(map[string][]*Ticket)
	for _, t := range q.pending {
		groups[t.TenantID] = append(groups[t.TenantID], t)
	}

	known := make(map[string]bool, len(q.tenantOrder))
	for _, tid := range q.tenantOrder {
		known[tid] = true
	}
	var newTenants []string
	for tid := range groups {
		if !known[tid] {
			newTenants = append(newTenants, tid)
		}
	}
	sort.Strings(newTenants)
	q.tenantOrder = append(q.tenantOrder, newTenants...)

	n := len(q.tenantOrder)
	if n == 0 {
		return nil
	}

	taken := make(map[string]int, n)
	var batch []*Ticket
	idx := q.fairCursor % n
	consecutiveEmpty := 0
	for len(batch) < maxBatch && consecutiveEmpty < n {
		tid := q.tenantOrder[idx]
		g := groups[tid]
		pos := taken[tid]
		if pos < len(g) {
			batch = append(batch, g[pos])
			taken[tid] = pos + 1
			consecutiveEmpty = 0
		} else {
			consecutiveEmpty++
		}
		idx = (idx + 1) % n
	}
	q.fairCursor = idx

	if len(batch) == 0 {
		return nil
	}

	chosen := make(map[string]bool, len(batch))
	for _, t := range batch {
		chosen[t.ID] = true
	}
	remaining := q.pending[:0:0]
	for _, t := range q.pending {
		if !chosen[t.ID] {
			remaining = append(remaining, t)
		}
	}
	q.pending = remaining
	return batch
}
