package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/seantiz/fam/internal/model"
	"github.com/seantiz/fam/internal/session"

	_ "modernc.org/sqlite"
)

const createEntriesTable = `
CREATE TABLE IF NOT EXISTS entries (
    id           TEXT PRIMARY KEY,
    session_id   TEXT NOT NULL,
    key          TEXT NOT NULL,
    value        TEXT NOT NULL,
    committed_at DATETIME NOT NULL
)`

const createHistoryTable = `
CREATE TABLE IF NOT EXISTS task_history (
    name       TEXT PRIMARY KEY,
    label      TEXT NOT NULL,
    reason     TEXT NOT NULL,
    statistics TEXT NOT NULL,
    failures   TEXT NOT NULL,
    purged_at  DATETIME NOT NULL
)`

// Compile-time interface satisfaction checks.
var (
	_ Store           = (*SQLiteStore)(nil)
	_ session.Session = (*sqliteSession)(nil)
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: every connection to ":memory:" is a separate database,
	// and per-connection pragmas below then cover every statement. Sessions
	// hold no connection between commits, so commits simply queue.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createEntriesTable, createHistoryTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Acquire establishes a session. Staged changes are buffered in memory and
// written in a single transaction on Commit, so no session holds the
// database lock between commits.
func (s *SQLiteStore) Acquire(ctx context.Context) (session.Session, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	return &sqliteSession{id: model.NewID(), db: s.db}, nil
}

// ListEntries returns committed entries ordered by commit time, newest first,
// along with the total count.
func (s *SQLiteStore) ListEntries(ctx context.Context, limit, offset int) ([]model.Entry, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, session_id, key, value, committed_at
		FROM entries ORDER BY committed_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		var e model.Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Key, &e.Value, &e.CommittedAt); err != nil {
			return nil, 0, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, total, nil
}

// ArchiveTask records the final state of a purged task. Archiving the same
// name again replaces the earlier record.
func (s *SQLiteStore) ArchiveTask(ctx context.Context, rec model.HistoryRecord) error {
	stats, err := json.Marshal(rec.Statistics)
	if err != nil {
		return fmt.Errorf("encode statistics: %w", err)
	}
	failures := rec.Failures
	if failures == nil {
		failures = []model.Failure{}
	}
	fails, err := json.Marshal(failures)
	if err != nil {
		return fmt.Errorf("encode failures: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO task_history (name, label, reason, statistics, failures, purged_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Name, rec.Label, rec.Reason, string(stats), string(fails), rec.PurgedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert task history: %w", err)
	}
	return nil
}

// GetHistory retrieves the archived record of a task by name.
func (s *SQLiteStore) GetHistory(ctx context.Context, name string) (*model.HistoryRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, label, reason, statistics, failures, purged_at
		FROM task_history WHERE name = ?`, name,
	)
	rec, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task history: %w", err)
	}
	return rec, nil
}

// ListHistory returns archived tasks ordered by purge time, newest first,
// along with the total count.
func (s *SQLiteStore) ListHistory(ctx context.Context, limit, offset int) ([]model.HistoryRecord, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM task_history").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count task history: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT name, label, reason, statistics, failures, purged_at
		FROM task_history ORDER BY purged_at DESC, name LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list task history: %w", err)
	}
	defer rows.Close()

	var recs []model.HistoryRecord
	for rows.Next() {
		rec, err := scanHistory(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan task history: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate task history: %w", err)
	}

	return recs, total, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHistory(sc scanner) (*model.HistoryRecord, error) {
	var (
		rec          model.HistoryRecord
		stats, fails string
	)
	if err := sc.Scan(&rec.Name, &rec.Label, &rec.Reason, &stats, &fails, &rec.PurgedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(stats), &rec.Statistics); err != nil {
		return nil, fmt.Errorf("decode statistics: %w", err)
	}
	if err := json.Unmarshal([]byte(fails), &rec.Failures); err != nil {
		return nil, fmt.Errorf("decode failures: %w", err)
	}
	return &rec, nil
}

// sqliteSession buffers staged entries and writes them on Commit.
type sqliteSession struct {
	id string
	db *sql.DB

	mu     sync.Mutex
	staged []model.Entry
	closed bool
}

func (s *sqliteSession) ID() string { return s.id }

func (s *sqliteSession) Put(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return session.ErrClosed
	}
	s.staged = append(s.staged, model.Entry{Key: key, Value: value})
	return nil
}

func (s *sqliteSession) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staged)
}

// Commit writes all staged entries in one transaction. On failure the
// entries stay staged so a later Commit can retry them.
func (s *sqliteSession) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return session.ErrClosed
	}
	if len(s.staged) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO entries (id, session_id, key, value, committed_at) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("prepare insert entry: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, e := range s.staged {
		if _, err := stmt.ExecContext(ctx, model.NewID(), s.id, e.Key, e.Value, now); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entries: %w", err)
	}
	s.staged = nil
	return nil
}

func (s *sqliteSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.staged = nil
	return nil
}
