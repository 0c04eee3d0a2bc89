package runner_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seantiz/fam/internal/runner"
)

func newTestRunner(t *testing.T, max int) *runner.Runner {
	t.Helper()
	r := runner.New(max, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.Shutdown(ctx)
	})
	return r
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestSubmitRunsAllItems(t *testing.T) {
	r := newTestRunner(t, 3)

	var ran atomic.Int64
	for range 20 {
		if err := r.Submit(func(context.Context) { ran.Add(1) }); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	r.Wait()

	if got := ran.Load(); got != 20 {
		t.Errorf("ran = %d, want 20", got)
	}
	if st := r.Stats(); st.Completed != 20 || st.Active != 0 || st.Queued != 0 {
		t.Errorf("Stats = %+v, want 20 completed and nothing in flight", st)
	}
}

func TestConcurrencyLimit(t *testing.T) {
	const max = 2
	r := newTestRunner(t, max)

	release := make(chan struct{})
	var running, peak atomic.Int64
	for range 6 {
		err := r.Submit(func(context.Context) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-release
			running.Add(-1)
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	waitFor(t, 2*time.Second, func() bool { return r.ActiveCount() == max })
	if q := r.QueuedCount(); q != 4 {
		t.Errorf("QueuedCount = %d, want 4", q)
	}

	close(release)
	r.Wait()

	if p := peak.Load(); p > max {
		t.Errorf("peak concurrency = %d, want <= %d", p, max)
	}
	if r.ActiveCount() != 0 {
		t.Errorf("ActiveCount after Wait = %d, want 0", r.ActiveCount())
	}
}

func TestPanicIsRecovered(t *testing.T) {
	r := newTestRunner(t, 1)

	if err := r.Submit(func(context.Context) { panic("boom") }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	var after atomic.Bool
	if err := r.Submit(func(context.Context) { after.Store(true) }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	r.Wait()

	if !after.Load() {
		t.Error("item after a panicking item did not run")
	}
	if st := r.Stats(); st.Panicked != 1 {
		t.Errorf("Panicked = %d, want 1", st.Panicked)
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	r := newTestRunner(t, 1)
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	err := r.Submit(func(context.Context) {})
	if !errors.Is(err, runner.ErrClosed) {
		t.Errorf("Submit after Shutdown = %v, want ErrClosed", err)
	}
}

func TestShutdownWaitsForInFlight(t *testing.T) {
	r := newTestRunner(t, 1)

	var done atomic.Bool
	if err := r.Submit(func(context.Context) {
		time.Sleep(50 * time.Millisecond)
		done.Store(true)
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !done.Load() {
		t.Error("Shutdown returned before in-flight item finished")
	}
}

func TestShutdownTimeoutCancelsQueuedItems(t *testing.T) {
	r := newTestRunner(t, 1)

	block := make(chan struct{})
	if err := r.Submit(func(ctx context.Context) {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var mu sync.Mutex
	var queuedErr error
	queuedRan := make(chan struct{})
	if err := r.Submit(func(ctx context.Context) {
		mu.Lock()
		queuedErr = ctx.Err()
		mu.Unlock()
		close(queuedRan)
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown error = %v, want DeadlineExceeded", err)
	}

	select {
	case <-queuedRan:
	case <-time.After(2 * time.Second):
		t.Fatal("queued item was never invoked after cancellation")
	}
	mu.Lock()
	defer mu.Unlock()
	if !errors.Is(queuedErr, context.Canceled) {
		t.Errorf("queued item ctx.Err() = %v, want context.Canceled", queuedErr)
	}
	close(block)
}
