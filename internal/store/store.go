package store

import (
	"context"
	"errors"

	"github.com/seantiz/fam/internal/model"
	"github.com/seantiz/fam/internal/session"
)

// ErrNotFound is returned when an archived task is not found.
var ErrNotFound = errors.New("task history not found")

// Store persists what outlives a task: the changes its sessions committed and
// the final state recorded when the task was purged. Live registry state is
// never stored here.
type Store interface {
	session.Source
	ListEntries(ctx context.Context, limit, offset int) ([]model.Entry, int, error)
	ArchiveTask(ctx context.Context, rec model.HistoryRecord) error
	GetHistory(ctx context.Context, name string) (*model.HistoryRecord, error)
	ListHistory(ctx context.Context, limit, offset int) ([]model.HistoryRecord, int, error)
	Close() error
}
