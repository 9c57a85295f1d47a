package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ticket is a single pending classification request plus its completion
// handle. Created on HTTP intake, destroyed after result delivery.
type Ticket struct {
	ID          string
	TenantID    string
	Item        string
	Size        int
	EnqueueTime time.Time
	Handle      *CompletionHandle
}

// NewTicket measures Size as len(Item), the same unit the downstream cost
// model uses (spec.md §3).
func NewTicket(tenantID, item string) *Ticket {
	return &Ticket{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Item:        item,
		Size:        len(item),
		EnqueueTime: time.Now(),
		Handle:      NewCompletionHandle(),
	}
}

// Outcome is what the dispatcher publishes on a ticket's completion
// handle: either a result or a classified error, never both.
type Outcome struct {
	Result string
	Err    *SchedError
}

// CompletionHandle is a single-shot rendezvous between the dispatcher and
// the intake goroutine that created the ticket. Publish never blocks and
// is safe to call after the reader has abandoned the handle (caller
// cancellation): the channel is buffered to one slot and guarded by a
// sync.Once so a second publish attempt is a silent no-op rather than a
// panic or a stuck goroutine.
type CompletionHandle struct {
	once sync.Once
	ch   chan Outcome
}

func NewCompletionHandle() *CompletionHandle {
	return &CompletionHandle{ch: make(chan Outcome, 1)}
}

// Publish signals the outcome exactly once. Subsequent calls are no-ops.
func (h *CompletionHandle) Publish(o Outcome) {
	h.once.Do(func() {
		h.ch <- o
	})
}

// Wait returns, without blocking, the channel on which the outcome is
// delivered, so the caller can select on it against ctx.Done().
func (h *CompletionHandle) Wait() <-chan Outcome {
	return h.ch
}
