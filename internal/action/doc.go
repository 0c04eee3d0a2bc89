// Package action provides the per-task execution engine. A Manager accepts
// work items for one task, runs them on the shared throttled runner with a
// resource session borrowed per item, and records statistics and failures.
// A Catalog holds the named actions that work items can execute.
package action
