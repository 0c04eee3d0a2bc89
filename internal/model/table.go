package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrEmptyKey is returned by Table.Put when a row has no key.
	ErrEmptyKey = errors.New("table: empty row key")
	// ErrDuplicateKey is returned by Table.Put when a row with the same key is already present.
	ErrDuplicateKey = errors.New("table: duplicate row key")
)

// Table is a keyed collection of rows built by iterating live tasks. It is a
// point-in-time projection and is not safe for concurrent use.
type Table[R any] struct {
	key  func(R) string
	rows map[string]R
}

// StatisticsTable holds one Statistics row per task, keyed by task name.
type StatisticsTable = Table[Statistics]

// FailureTable holds Failure rows from any number of tasks, keyed by failure ID.
type FailureTable = Table[Failure]

// NewStatisticsTable creates an empty statistics table.
func NewStatisticsTable() *StatisticsTable {
	return newTable(func(s Statistics) string { return s.Name })
}

// NewFailureTable creates an empty failure table.
func NewFailureTable() *FailureTable {
	return newTable(func(f Failure) string { return f.ID })
}

func newTable[R any](key func(R) string) *Table[R] {
	return &Table[R]{key: key, rows: make(map[string]R)}
}

// Put adds a row. It refuses rows without a key and rows whose key is
// already present; the table is left unchanged in both cases.
func (t *Table[R]) Put(row R) error {
	k := t.key(row)
	if k == "" {
		return ErrEmptyKey
	}
	if _, exists := t.rows[k]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, k)
	}
	t.rows[k] = row
	return nil
}

// PutAll adds rows in order, stopping at the first rejected row.
func (t *Table[R]) PutAll(rows ...R) error {
	for _, row := range rows {
		if err := t.Put(row); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the row stored under key.
func (t *Table[R]) Get(key string) (R, bool) {
	row, ok := t.rows[key]
	return row, ok
}

// Len returns the number of rows.
func (t *Table[R]) Len() int {
	return len(t.rows)
}

// Rows returns all rows sorted by key for a stable response.
func (t *Table[R]) Rows() []R {
	keys := make([]string, 0, len(t.rows))
	for k := range t.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]R, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.rows[k])
	}
	return out
}

// MarshalJSON encodes the table as a JSON array of rows.
func (t *Table[R]) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Rows())
}
