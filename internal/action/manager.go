package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seantiz/fam/internal/model"
	"github.com/seantiz/fam/internal/session"
)

// Func executes one work item using the given session.
type Func func(ctx context.Context, s session.Session, item string) error

// Runner is the worker pool that executes work items.
type Runner interface {
	Submit(fn func(ctx context.Context)) error
}

// Config describes a new Manager.
type Config struct {
	Name   string
	Label  string
	Source session.Source
	// SaveInterval is the number of staged changes after which a session is
	// committed. Zero disables periodic commits; changes are then committed
	// when the task completes.
	SaveInterval int
	Runner       Runner
	Logger       *slog.Logger
}

// Manager runs the work items of a single task. It is safe for concurrent use.
//
// A Manager is complete once it has been sealed and every submitted item has
// finished. Completion never reverts.
type Manager struct {
	name         string
	label        string
	source       session.Source
	saveInterval int
	runner       Runner
	logger       *slog.Logger
	createdAt    time.Time

	complete atomic.Bool

	mu         sync.Mutex
	sessions   []session.Session // every acquired session, for release
	idle       []session.Session
	sealed     bool
	released   bool
	added      int
	started    int
	completed  int
	successful int
	failed     int
	failures   []model.Failure
	startedAt  *time.Time
	finishedAt *time.Time
}

// New creates a Manager. The first session is acquired eagerly so that an
// unusable source is reported here rather than by the first work item.
func New(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.Source == nil {
		return nil, errors.New("action: nil session source")
	}
	if cfg.Runner == nil {
		return nil, errors.New("action: nil runner")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s, err := cfg.Source.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}

	saveInterval := cfg.SaveInterval
	if saveInterval < 0 {
		saveInterval = 0
	}

	return &Manager{
		name:         cfg.Name,
		label:        cfg.Label,
		source:       cfg.Source,
		saveInterval: saveInterval,
		runner:       cfg.Runner,
		logger:       logger.With("task", cfg.Name),
		createdAt:    time.Now().UTC(),
		sessions:     []session.Session{s},
		idle:         []session.Session{s},
	}, nil
}

// NewFactory returns a constructor suitable for the task registry. Every
// Manager it builds shares r and logger.
func NewFactory(r Runner, logger *slog.Logger) func(ctx context.Context, name, label string, src session.Source, saveInterval int) (*Manager, error) {
	return func(ctx context.Context, name, label string, src session.Source, saveInterval int) (*Manager, error) {
		return New(ctx, Config{
			Name:         name,
			Label:        label,
			Source:       src,
			SaveInterval: saveInterval,
			Runner:       r,
			Logger:       logger,
		})
	}
}

// Name returns the task's unique name.
func (m *Manager) Name() string { return m.name }

// Label returns the human-readable label the task was created with.
func (m *Manager) Label() string { return m.label }

// Submit queues one work item.
func (m *Manager) Submit(item string, fn Func) error {
	if fn == nil {
		return errors.New("action: nil func")
	}

	m.mu.Lock()
	switch {
	case m.released:
		m.mu.Unlock()
		return ErrReleased
	case m.sealed:
		m.mu.Unlock()
		return ErrSealed
	}
	m.added++
	m.mu.Unlock()

	err := m.runner.Submit(func(ctx context.Context) {
		m.run(ctx, item, fn)
	})
	if err != nil {
		m.mu.Lock()
		m.added--
		done := m.markCompleteLocked()
		m.mu.Unlock()
		if done {
			m.flush()
		}
		return fmt.Errorf("submit %q: %w", item, err)
	}
	return nil
}

// SubmitAll queues every item, stopping at the first rejected one.
func (m *Manager) SubmitAll(items []string, fn Func) error {
	for _, item := range items {
		if err := m.Submit(item, fn); err != nil {
			return err
		}
	}
	return nil
}

// Seal marks the end of submissions. A sealed Manager with no outstanding
// items is complete immediately.
func (m *Manager) Seal() {
	m.mu.Lock()
	m.sealed = true
	done := m.markCompleteLocked()
	m.mu.Unlock()

	if done {
		m.flush()
	}
}

// IsComplete reports whether the Manager is sealed and all items finished.
func (m *Manager) IsComplete() bool {
	return m.complete.Load()
}

// run executes one work item on a runner goroutine.
func (m *Manager) run(ctx context.Context, item string, fn Func) {
	m.mu.Lock()
	m.started++
	if m.startedAt == nil {
		now := time.Now().UTC()
		m.startedAt = &now
	}
	m.mu.Unlock()

	err := ctx.Err()
	if err == nil {
		err = m.runWithSession(ctx, item, fn)
	}
	m.finish(item, err)
}

func (m *Manager) runWithSession(ctx context.Context, item string, fn Func) error {
	s, err := m.borrow(ctx)
	if err != nil {
		return fmt.Errorf("acquire session: %w", err)
	}

	err = invoke(ctx, fn, s, item)
	m.giveBack(ctx, s)
	return err
}

// invoke calls fn, converting a panic into an error for the item.
func invoke(ctx context.Context, fn Func, s session.Session, item string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx, s, item)
}

// borrow takes an idle session or acquires a new one from the source.
func (m *Manager) borrow(ctx context.Context) (session.Session, error) {
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return nil, ErrReleased
	}
	if n := len(m.idle); n > 0 {
		s := m.idle[n-1]
		m.idle = m.idle[:n-1]
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	s, err := m.source.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		if cerr := s.Close(); cerr != nil {
			m.logger.Warn("close late session", "error", cerr)
		}
		return nil, ErrReleased
	}
	m.sessions = append(m.sessions, s)
	return s, nil
}

// giveBack commits s if it has reached the save interval and returns it to
// the idle list.
func (m *Manager) giveBack(ctx context.Context, s session.Session) {
	if m.saveInterval > 0 && s.Pending() >= m.saveInterval {
		if err := s.Commit(ctx); err != nil {
			m.logger.Error("periodic commit failed", "session", s.ID(), "error", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return
	}
	m.idle = append(m.idle, s)
}

func (m *Manager) finish(item string, err error) {
	m.mu.Lock()
	m.completed++
	if err != nil {
		m.failed++
		m.failures = append(m.failures, model.Failure{
			ID:    model.NewID(),
			Task:  m.name,
			Item:  item,
			Error: err.Error(),
			Time:  time.Now().UTC(),
		})
	} else {
		m.successful++
	}
	done := m.markCompleteLocked()
	m.mu.Unlock()

	if err != nil {
		m.logger.Debug("work item failed", "item", item, "error", err)
	}
	if done {
		m.flush()
	}
}

// markCompleteLocked records the finish time when the last outstanding item
// of a sealed Manager finishes. It reports whether this call did so; the
// caller must then flush. m.mu must be held.
func (m *Manager) markCompleteLocked() bool {
	if !m.sealed || m.completed != m.added || m.finishedAt != nil {
		return false
	}
	now := time.Now().UTC()
	m.finishedAt = &now
	return true
}

// flush commits every idle session and then flips the completion flag, so
// a complete Manager has no staged writes left.
func (m *Manager) flush() {
	m.mu.Lock()
	idle := append([]session.Session(nil), m.idle...)
	m.mu.Unlock()

	ctx := context.Background()
	for _, s := range idle {
		if s.Pending() == 0 {
			continue
		}
		if err := s.Commit(ctx); err != nil {
			m.logger.Error("final commit failed", "session", s.ID(), "error", err)
		}
	}
	m.complete.Store(true)
	m.logger.Info("task complete")
}

// Statistics returns the task's statistics row.
func (m *Manager) Statistics() model.Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := model.Statistics{
		Name:       m.name,
		Label:      m.label,
		Added:      m.added,
		Started:    m.started,
		Completed:  m.completed,
		Successful: m.successful,
		Failed:     m.failed,
		Remaining:  m.added - m.completed,
		Complete:   m.complete.Load(),
		CreatedAt:  m.createdAt,
		StartedAt:  m.startedAt,
		FinishedAt: m.finishedAt,
	}
	if m.startedAt != nil {
		end := time.Now().UTC()
		if m.finishedAt != nil {
			end = *m.finishedAt
		}
		st.DurationMS = int(end.Sub(*m.startedAt).Milliseconds())
	}
	return st
}

// Failures returns a copy of the recorded failures in the order they occurred.
func (m *Manager) Failures() []model.Failure {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Failure(nil), m.failures...)
}

// ReleaseResources closes every session the Manager acquired, including
// sessions borrowed by items still running. Only the first call has an
// effect; later calls return nil. Items that start afterwards fail with
// ErrReleased.
func (m *Manager) ReleaseResources() error {
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return nil
	}
	m.released = true
	sessions := m.sessions
	m.sessions = nil
	m.idle = nil
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", s.ID(), err))
		}
	}
	return errors.Join(errs...)
}
