package core

import "testing"

func mkTicket(tenant string, size int) *Ticket {
	t := NewTicket(tenant, "")
	t.Size = size
	return t
}

func sizes(batch []*Ticket) []int {
	out := make([]int, len(batch))
	for i, t := range batch {
		out[i] = t.Size
	}
	return out
}

func eqInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestFCFSOrdering is spec.md §8 scenario 1.
func TestFCFSOrdering(t *testing.T) {
	q := NewPendingQueue()
	for _, sz := range []int{10, 100, 20, 200, 30, 5, 1} {
		q.Enqueue(mkTicket("t", sz))
	}

	first := q.TakeBatch(5, FCFS)
	if got, want := sizes(first), []int{10, 100, 20, 200, 30}; !eqInts(got, want) {
		t.Fatalf("first batch = %v, want %v", got, want)
	}

	second := q.TakeBatch(5, FCFS)
	if got, want := sizes(second), []int{5, 1}; !eqInts(got, want) {
		t.Fatalf("second batch = %v, want %v", got, want)
	}

	if q.Ready() {
		t.Fatal("queue should be empty after draining")
	}
}

// TestSJFReordering is spec.md §8 scenario 2.
func TestSJFReordering(t *testing.T) {
	q := NewPendingQueue()
	for _, sz := range []int{100, 5, 50, 1, 20} {
		q.Enqueue(mkTicket("t", sz))
	}

	first := q.TakeBatch(3, SJF)
	if got, want := sizes(first), []int{1, 5, 20}; !eqInts(got, want) {
		t.Fatalf("first batch = %v, want %v", got, want)
	}

	second := q.TakeBatch(3, SJF)
	if got, want := sizes(second), []int{50, 100}; !eqInts(got, want) {
		t.Fatalf("second batch = %v, want %v", got, want)
	}
}

// TestFAIRRoundRobin is spec.md §8 scenario 3.
func TestFAIRRoundRobin(t *testing.T) {
	q := NewPendingQueue()
	a1 := mkTicket("A", 1)
	a2 := mkTicket("A", 1)
	a3 := mkTicket("A", 1)
	b1 := mkTicket("B", 1)
	a4 := mkTicket("A", 1)
	b2 := mkTicket("B", 1)
	for _, tk := range []*Ticket{a1, a2, a3, b1, a4, b2} {
		q.Enqueue(tk)
	}

	first := q.TakeBatch(4, FAIR)
	wantFirst := []*Ticket{a1, b1, a2, b2}
	for i, tk := range wantFirst {
		if first[i] != tk {
			t.Fatalf("first batch[%d] = %v, want %v", i, first[i].ID, tk.ID)
		}
	}

	second := q.TakeBatch(4, FAIR)
	wantSecond := []*Ticket{a3, a4}
	for i, tk := range wantSecond {
		if second[i] != tk {
			t.Fatalf("second batch[%d] = %v, want %v", i, second[i].ID, tk.ID)
		}
	}
}

// TestStrategySwitchBetweenBatches is spec.md §8 scenario 4.
func TestStrategySwitchBetweenBatches(t *testing.T) {
	q := NewPendingQueue()
	for _, sz := range []int{50, 10, 100} {
		q.Enqueue(mkTicket("t", sz))
	}
	first := q.TakeBatch(5, FCFS)
	if got, want := sizes(first), []int{50, 10, 100}; !eqInts(got, want) {
		t.Fatalf("first batch = %v, want %v", got, want)
	}

	for _, sz := range []int{40, 5, 80} {
		q.Enqueue(mkTicket("t", sz))
	}
	second := q.TakeBatch(5, SJF)
	if got, want := sizes(second), []int{5, 40, 80}; !eqInts(got, want) {
		t.Fatalf("second batch = %v, want %v", got, want)
	}
}

// TestEmptyQueueTakeBatch is the "empty queue" boundary behaviour of
// spec.md §8: take_batch on an empty queue returns nothing to dispatch.
func TestEmptyQueueTakeBatch(t *testing.T) {
	q := NewPendingQueue()
	if batch := q.TakeBatch(5, FCFS); batch != nil {
		t.Fatalf("expected nil batch, got %v", batch)
	}
}

// TestSingleTicketFormsSizeOneBatch is another §8 boundary behaviour.
func TestSingleTicketFormsSizeOneBatch(t *testing.T) {
	q := NewPendingQueue()
	q.Enqueue(mkTicket("t", 7))
	batch := q.TakeBatch(5, FCFS)
	if len(batch) != 1 {
		t.Fatalf("expected batch of 1, got %d", len(batch))
	}
}

// TestBurstExceedingMaxBatch is another §8 boundary behaviour.
func TestBurstExceedingMaxBatch(t *testing.T) {
	q := NewPendingQueue()
	for i := 0; i < 8; i++ {
		q.Enqueue(mkTicket("t", i))
	}
	first := q.TakeBatch(5, FCFS)
	if len(first) != 5 {
		t.Fatalf("first batch should have MAX_BATCH=5 tickets, got %d", len(first))
	}
	second := q.TakeBatch(5, FCFS)
	if len(second) != 3 {
		t.Fatalf("second batch should have the remainder (3), got %d", len(second))
	}
}

// TestTenantDefault is spec.md §8 scenario 6: absence of a tenant id
// produces a distinct "default" tenant that participates in FAIR rotation.
func TestTenantDefault(t *testing.T) {
	q := NewPendingQueue()
	d1 := NewTicket("default", "")
	a1 := NewTicket("A", "")
	d2 := NewTicket("default", "")
	q.Enqueue(d1)
	q.Enqueue(a1)
	q.Enqueue(d2)

	batch := q.TakeBatch(4, FAIR)
	if len(batch) != 3 {
		t.Fatalf("expected all three tickets in one batch, got %d", len(batch))
	}
}

func TestWaitChanClosesOnEnqueue(t *testing.T) {
	q := NewPendingQueue()
	wait := q.WaitChan()
	select {
	case <-wait:
		t.Fatal("wait channel should not be closed before any enqueue")
	default:
	}
	q.Enqueue(mkTicket("t", 1))
	select {
	case <-wait:
	default:
		t.Fatal("wait channel should close after enqueue")
	}
}
