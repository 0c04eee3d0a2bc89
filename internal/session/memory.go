package session

import (
	"context"
	"sync"

	"github.com/seantiz/fam/internal/model"
)

// Compile-time interface satisfaction check.
var _ Source = (*MemorySource)(nil)

// MemorySource is an in-process Source. Committed changes are kept in a map.
// It is safe for concurrent use.
type MemorySource struct {
	mu        sync.Mutex
	failWith  error
	acquired  int
	closed    int
	committed map[string]string
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{committed: make(map[string]string)}
}

// FailWith makes subsequent Acquire calls return err. A nil err restores
// normal behaviour.
func (m *MemorySource) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Acquire returns a new session.
func (m *MemorySource) Acquire(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.acquired++
	return &memorySession{id: model.NewID(), src: m}, nil
}

// Committed returns a copy of every committed change.
func (m *MemorySource) Committed() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(m.committed))
	for k, v := range m.committed {
		out[k] = v
	}
	return out
}

// Counts reports how many sessions were acquired and how many were closed.
func (m *MemorySource) Counts() (acquired, closed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquired, m.closed
}

type memorySession struct {
	id     string
	src    *MemorySource
	mu     sync.Mutex
	staged []model.Entry
	closed bool
}

func (s *memorySession) ID() string { return s.id }

func (s *memorySession) Put(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.staged = append(s.staged, model.Entry{Key: key, Value: value})
	return nil
}

func (s *memorySession) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staged)
}

func (s *memorySession) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.src.mu.Lock()
	for _, e := range s.staged {
		s.src.committed[e.Key] = e.Value
	}
	s.src.mu.Unlock()

	s.staged = nil
	return nil
}

func (s *memorySession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.staged = nil

	s.src.mu.Lock()
	s.src.closed++
	s.src.mu.Unlock()
	return nil
}
