package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/akramsystems/batchproxy/internal/core"
)

type stubClassifier struct {
	fn func(ctx context.Context, items []string) ([]string, *core.SchedError)
}

func (s *stubClassifier) Classify(ctx context.Context, items []string) ([]string, *core.SchedError) {
	return s.fn(ctx, items)
}

func exclaim(_ context.Context, items []string) ([]string, *core.SchedError) {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = s + "!"
	}
	return out, nil
}

func newTestDispatcher(fn func(context.Context, []string) ([]string, *core.SchedError)) (*Dispatcher, *core.PendingQueue) {
	q := core.NewPendingQueue()
	d := &Dispatcher{
		Queue:      q,
		Strategies: core.NewStrategyRegistry(core.FCFS),
		Client:     &stubClassifier{fn: fn},
		MaxBatch:   5,
	}
	return d, q
}

func TestDispatcherDeliversResults(t *testing.T) {
	d, q := newTestDispatcher(exclaim)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	t1 := core.NewTicket("t", "hi")
	q.Enqueue(t1)

	select {
	case out := <-t1.Handle.Wait():
		if out.Err != nil {
			t.Fatalf("unexpected error: %v", out.Err)
		}
		if out.Result != "hi!" {
			t.Fatalf("got %q, want %q", out.Result, "hi!")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}

// TestDispatcherFanOutFailure is spec.md §8 scenario 5: a batch failure is
// reported to every member with the same error kind.
func TestDispatcherFanOutFailure(t *testing.T) {
	failing := func(_ context.Context, items []string) ([]string, *core.SchedError) {
		return nil, core.NewError(core.DownstreamProtocol, "downstream returned status 500")
	}
	d, q := newTestDispatcher(failing)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	tickets := []*core.Ticket{
		core.NewTicket("t", "a"),
		core.NewTicket("t", "b"),
		core.NewTicket("t", "c"),
	}
	for _, tk := range tickets {
		q.Enqueue(tk)
	}

	for _, tk := range tickets {
		select {
		case out := <-tk.Handle.Wait():
			if out.Err == nil {
				t.Fatal("expected error outcome")
			}
			if out.Err.Kind != core.DownstreamProtocol {
				t.Fatalf("got kind %v, want DownstreamProtocol", out.Err.Kind)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for failure fan-out")
		}
	}
}

func TestDispatcherRejectsMismatchedResultLength(t *testing.T) {
	shortResult := func(_ context.Context, items []string) ([]string, *core.SchedError) {
		return []string{"only one"}, nil
	}
	d, q := newTestDispatcher(shortResult)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	t1 := core.NewTicket("t", "a")
	t2 := core.NewTicket("t", "b")
	q.Enqueue(t1)
	q.Enqueue(t2)

	for _, tk := range []*core.Ticket{t1, t2} {
		select {
		case out := <-tk.Handle.Wait():
			if out.Err == nil || out.Err.Kind != core.Internal {
				t.Fatalf("expected Internal error, got %+v", out)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out")
		}
	}
}

func TestDispatcherIdleReturnsOnCancel(t *testing.T) {
	d, _ := newTestDispatcher(exclaim)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d.Run(ctx) // an idle Run returns once ctx is done instead of looping forever
}
