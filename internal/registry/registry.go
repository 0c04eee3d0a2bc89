package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seantiz/fam/internal/model"
	"github.com/seantiz/fam/internal/session"
)

// Handle is the view of a task the registry needs. The execution engine
// mutates the state behind it concurrently; the registry only reads it.
type Handle interface {
	Name() string
	// IsComplete must never revert to false once it has returned true.
	IsComplete() bool
	Statistics() model.Statistics
	Failures() []model.Failure
	// ReleaseResources must be safe to call more than once.
	ReleaseResources() error
}

// Pool reports how many work items the shared worker pool is running.
type Pool interface {
	ActiveCount() int
}

// Factory builds the handle for a new task. Errors it returns are reported
// by Create as ErrResourceAcquisition.
type Factory[H Handle] func(ctx context.Context, name, label string, src session.Source, saveInterval int) (H, error)

// Archiver receives the final state of every purged task.
type Archiver interface {
	ArchiveTask(ctx context.Context, rec model.HistoryRecord) error
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	policy   Policy
	archiver Archiver
}

// WithPolicy sets the purge policy. The default is PolicyCompletedOnly.
func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithArchiver records the final state of purged tasks in a.
func WithArchiver(a Archiver) Option {
	return func(o *options) { o.archiver = a }
}

// Registry maps unique task names to task handles. It is safe for
// concurrent use; membership is read by copying the index under a read lock,
// so removals never disturb a caller that is iterating.
type Registry[H Handle] struct {
	pool    Pool
	factory Factory[H]
	logger  *slog.Logger
	opts    options

	mu       sync.RWMutex
	tasks    map[string]H
	reserved map[string]struct{} // names minted by in-flight Create calls
}

// New creates an empty registry whose tasks run on pool and are built by factory.
func New[H Handle](pool Pool, factory Factory[H], logger *slog.Logger, opts ...Option) *Registry[H] {
	if factory == nil {
		panic("registry: New called with nil factory")
	}
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Registry[H]{
		pool:     pool,
		factory:  factory,
		logger:   logger,
		opts:     o,
		tasks:    make(map[string]H),
		reserved: make(map[string]struct{}),
	}
}

// Policy returns the configured purge policy.
func (r *Registry[H]) Policy() Policy {
	return r.opts.policy
}

// Create builds and registers a new task. Its unique name is the trimmed
// label followed by a random UUID in parentheses, so tasks sharing a label
// remain distinguishable. The handle is visible to Get, Has and the snapshot
// methods as soon as Create returns.
//
// If the factory fails, the error wraps ErrResourceAcquisition and nothing
// is registered.
func (r *Registry[H]) Create(ctx context.Context, label string, src session.Source, saveInterval int) (H, error) {
	label = strings.TrimSpace(label)
	name := r.reserve(label)

	h, err := r.factory(ctx, name, label, src, saveInterval)

	r.mu.Lock()
	delete(r.reserved, name)
	if err == nil {
		r.tasks[name] = h
	}
	r.mu.Unlock()

	if err != nil {
		var zero H
		r.logger.Warn("create task failed", "label", label, "error", err)
		return zero, fmt.Errorf("%w: task %q: %w", ErrResourceAcquisition, name, err)
	}

	registeredTasks.Inc()
	tasksCreated.Inc()
	r.logger.Debug("task created", "task", name, "save_interval", saveInterval)
	return h, nil
}

// reserve mints a name that is neither registered nor being created.
func (r *Registry[H]) reserve(label string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		name := fmt.Sprintf("%s (%s)", label, uuid.NewString())
		if _, taken := r.tasks[name]; taken {
			continue
		}
		if _, taken := r.reserved[name]; taken {
			continue
		}
		r.reserved[name] = struct{}{}
		return name
	}
}

// Get returns the task registered under name. An empty name is never registered.
func (r *Registry[H]) Get(name string) (H, bool) {
	if name == "" {
		var zero H
		return zero, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.tasks[name]
	return h, ok
}

// Has reports whether a task is registered under name.
func (r *Registry[H]) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Len returns the number of registered tasks.
func (r *Registry[H]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// Names returns the registered task names, sorted.
func (r *Registry[H]) Names() []string {
	members := r.members()
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.name)
	}
	sort.Strings(names)
	return names
}

type member[H Handle] struct {
	name   string
	handle H
}

// members copies the current membership so callers can iterate without
// holding the lock.
func (r *Registry[H]) members() []member[H] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]member[H], 0, len(r.tasks))
	for name, h := range r.tasks {
		out = append(out, member[H]{name: name, handle: h})
	}
	return out
}

// StatisticsSnapshot returns one statistics row per registered task.
// Membership is taken at the moment of the call; task state is read after
// that and may be mid-update.
func (r *Registry[H]) StatisticsSnapshot() (*model.StatisticsTable, error) {
	table := model.NewStatisticsTable()
	for _, m := range r.members() {
		if err := table.Put(m.handle.Statistics()); err != nil {
			return nil, fmt.Errorf("%w: statistics of task %q: %w", ErrAggregation, m.name, err)
		}
	}
	return table, nil
}

// FailuresSnapshot returns every recorded failure of every registered task.
func (r *Registry[H]) FailuresSnapshot() (*model.FailureTable, error) {
	table := model.NewFailureTable()
	for _, m := range r.members() {
		if err := table.PutAll(m.handle.Failures()...); err != nil {
			return nil, fmt.Errorf("%w: failures of task %q: %w", ErrAggregation, m.name, err)
		}
	}
	return table, nil
}

// PurgeCompleted runs one purge sweep and returns the removed names, sorted.
//
// Complete tasks are always removed. Under PolicyRunnerIdle every task is
// removed when the pool reports no running items at the start of the sweep.
// Each removed task has its resources released exactly once by this
// registry; a release error is logged and the sweep continues.
func (r *Registry[H]) PurgeCompleted(ctx context.Context) []string {
	idle := false
	if r.opts.policy == PolicyRunnerIdle && r.pool != nil {
		idle = r.pool.ActiveCount() == 0
	}

	var removed []string
	for _, m := range r.members() {
		var reason string
		switch {
		case m.handle.IsComplete():
			reason = model.PurgeReasonComplete
		case idle:
			reason = model.PurgeReasonRunnerIdle
		default:
			continue
		}

		if r.evict(ctx, m, reason) {
			removed = append(removed, m.name)
		}
	}

	sort.Strings(removed)
	if len(removed) > 0 {
		r.logger.Info("purged tasks", "removed", len(removed), "remaining", r.Len(), "runner_idle", idle)
	}
	return removed
}

// ReleaseAll removes and releases every registered task. It is meant for
// process shutdown and returns the removed names, sorted.
func (r *Registry[H]) ReleaseAll(ctx context.Context) []string {
	var removed []string
	for _, m := range r.members() {
		if r.evict(ctx, m, model.PurgeReasonShutdown) {
			removed = append(removed, m.name)
		}
	}
	sort.Strings(removed)
	return removed
}

// evict removes m from the index and, if this call removed it, releases and
// archives it. Only the caller that wins the removal touches the handle, so
// concurrent sweeps never release a task twice.
func (r *Registry[H]) evict(ctx context.Context, m member[H], reason string) bool {
	r.mu.Lock()
	if _, ok := r.tasks[m.name]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.tasks, m.name)
	r.mu.Unlock()

	registeredTasks.Dec()
	tasksPurged.WithLabelValues(reason).Inc()

	if err := m.handle.ReleaseResources(); err != nil {
		releaseErrors.Inc()
		r.logger.Error("release task resources", "task", m.name, "error", err)
	}

	if r.opts.archiver != nil {
		st := m.handle.Statistics()
		rec := model.HistoryRecord{
			Name:       m.name,
			Label:      st.Label,
			Reason:     reason,
			Statistics: st,
			Failures:   m.handle.Failures(),
			PurgedAt:   time.Now().UTC(),
		}
		if err := r.opts.archiver.ArchiveTask(ctx, rec); err != nil {
			r.logger.Error("archive purged task", "task", m.name, "error", err)
		}
	}

	r.logger.Debug("task purged", "task", m.name, "reason", reason)
	return true
}

// RunPurger calls PurgeCompleted every interval until ctx is done. A
// non-positive interval disables the loop.
func (r *Registry[H]) RunPurger(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	r.logger.Info("purger started", "interval", interval.String(), "policy", r.opts.policy.String())

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.PurgeCompleted(ctx)
		}
	}
}
