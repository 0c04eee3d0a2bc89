package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/seantiz/fam/internal/session"
)

func TestMemorySessionCommit(t *testing.T) {
	src := session.NewMemorySource()
	ctx := context.Background()

	s, err := src.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if s.ID() == "" {
		t.Error("session ID is empty")
	}

	if err := s.Put("a", "1"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put("b", "2"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if s.Pending() != 2 {
		t.Errorf("Pending = %d, want 2", s.Pending())
	}
	if len(src.Committed()) != 0 {
		t.Error("staged changes visible before Commit")
	}

	if err := s.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending after Commit = %d, want 0", s.Pending())
	}
	got := src.Committed()
	if got["a"] != "1" || got["b"] != "2" {
		t.Errorf("Committed = %v", got)
	}
}

func TestMemorySessionCloseDiscardsAndIsIdempotent(t *testing.T) {
	src := session.NewMemorySource()
	s, err := src.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	_ = s.Put("k", "v")

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	acquired, closed := src.Counts()
	if acquired != 1 || closed != 1 {
		t.Errorf("Counts = (%d, %d), want (1, 1)", acquired, closed)
	}
	if len(src.Committed()) != 0 {
		t.Error("Close must discard staged changes")
	}
	if err := s.Put("k", "v"); !errors.Is(err, session.ErrClosed) {
		t.Errorf("Put after Close = %v, want ErrClosed", err)
	}
	if err := s.Commit(context.Background()); !errors.Is(err, session.ErrClosed) {
		t.Errorf("Commit after Close = %v, want ErrClosed", err)
	}
}

func TestMemorySourceFailWith(t *testing.T) {
	src := session.NewMemorySource()
	boom := errors.New("login refused")
	src.FailWith(boom)

	if _, err := src.Acquire(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Acquire error = %v, want %v", err, boom)
	}

	src.FailWith(nil)
	if _, err := src.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire after reset: %v", err)
	}
}

func TestMemorySourceCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := session.NewMemorySource().Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire error = %v, want context.Canceled", err)
	}
}
