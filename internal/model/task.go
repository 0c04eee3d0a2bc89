package model

import "time"

// Purge reasons recorded in metrics and archived history.
const (
	PurgeReasonComplete   = "complete"
	PurgeReasonRunnerIdle = "runner_idle"
	PurgeReasonShutdown   = "shutdown"
)

// Statistics is the per-task statistics row. A task contributes exactly one
// row to an aggregated statistics table.
type Statistics struct {
	Name       string     `json:"name"`
	Label      string     `json:"label"`
	Added      int        `json:"added"`
	Started    int        `json:"started"`
	Completed  int        `json:"completed"`
	Successful int        `json:"successful"`
	Failed     int        `json:"failed"`
	Remaining  int        `json:"remaining"`
	Complete   bool       `json:"complete"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMS int        `json:"duration_ms"`
}

// Failure records a single work item that did not succeed.
type Failure struct {
	ID    string    `json:"id"`
	Task  string    `json:"task"`
	Item  string    `json:"item"`
	Error string    `json:"error"`
	Time  time.Time `json:"time"`
}

// HistoryRecord is the final state of a task captured when it was purged.
type HistoryRecord struct {
	Name       string     `json:"name"`
	Label      string     `json:"label"`
	Reason     string     `json:"reason"`
	Statistics Statistics `json:"statistics"`
	Failures   []Failure  `json:"failures"`
	PurgedAt   time.Time  `json:"purged_at"`
}

// Entry is a key/value change committed by a resource session.
type Entry struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	CommittedAt time.Time `json:"committed_at"`
}
