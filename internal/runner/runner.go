package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxWorkers is used when New is given a non-positive worker count.
const DefaultMaxWorkers = 4

// ErrClosed is returned by Submit once Shutdown has been called.
var ErrClosed = errors.New("runner: closed")

// Stats is a point-in-time view of the runner.
type Stats struct {
	MaxWorkers int   `json:"max_workers"`
	Active     int   `json:"active"`
	Queued     int   `json:"queued"`
	Completed  int64 `json:"completed"`
	Panicked   int64 `json:"panicked"`
}

// Runner executes submitted work asynchronously under a concurrency limit.
// It is safe for concurrent use.
type Runner struct {
	sem    *semaphore.Weighted
	max    int
	logger *slog.Logger

	// ctx is passed to every work item and cancelled when Shutdown gives up waiting.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	active    atomic.Int64
	queued    atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
}

// New creates a runner allowing maxWorkers concurrent work items.
func New(maxWorkers int, logger *slog.Logger) *Runner {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		sem:    semaphore.NewWeighted(int64(maxWorkers)),
		max:    maxWorkers,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit queues fn for execution and returns immediately.
//
// fn is invoked exactly once. If the runner is forced to stop before a slot
// frees up, fn is still invoked, without a slot and with a cancelled context,
// so callers can account for the item.
func (r *Runner) Submit(fn func(ctx context.Context)) error {
	if fn == nil {
		return errors.New("runner: nil work item")
	}

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrClosed
	}
	r.wg.Add(1)
	r.mu.RUnlock()

	r.queued.Add(1)
	queuedItems.Inc()

	go func() {
		defer r.wg.Done()

		err := r.sem.Acquire(r.ctx, 1)
		r.queued.Add(-1)
		queuedItems.Dec()
		if err != nil {
			r.invoke(fn)
			return
		}
		defer r.sem.Release(1)

		r.active.Add(1)
		activeItems.Inc()
		defer func() {
			r.active.Add(-1)
			activeItems.Dec()
		}()

		r.invoke(fn)
	}()

	return nil
}

// invoke runs fn, recovering a panic so that one bad item cannot take the
// process down.
func (r *Runner) invoke(fn func(ctx context.Context)) {
	defer func() {
		if p := recover(); p != nil {
			r.panicked.Add(1)
			panickedItems.Inc()
			r.logger.Error("work item panicked", "panic", fmt.Sprint(p), "stack", string(debug.Stack()))
		}
		r.completed.Add(1)
	}()
	fn(r.ctx)
}

// ActiveCount returns the number of work items currently running.
func (r *Runner) ActiveCount() int {
	return int(r.active.Load())
}

// QueuedCount returns the number of work items waiting for a slot.
func (r *Runner) QueuedCount() int {
	return int(r.queued.Load())
}

// Stats returns a snapshot of the runner counters.
func (r *Runner) Stats() Stats {
	return Stats{
		MaxWorkers: r.max,
		Active:     r.ActiveCount(),
		Queued:     r.QueuedCount(),
		Completed:  r.completed.Load(),
		Panicked:   r.panicked.Load(),
	}
}

// Wait blocks until every submitted work item has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown stops accepting work and waits for submitted items to finish.
// If ctx expires first, the context handed to work items is cancelled and
// ctx.Err() is returned without waiting further. Shutdown is safe to call
// more than once.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		r.logger.Warn("runner shutdown timed out, cancelling work", "active", r.ActiveCount(), "queued", r.QueuedCount())
		return ctx.Err()
	}
}
