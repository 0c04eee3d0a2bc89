// Package registry tracks the live tasks of the process. It mints unique task
// names, hands out task handles by name, aggregates their statistics and
// failures into tables, and purges tasks that no longer need to be kept.
//
// The registry owns its index; task state (completion, statistics, failures)
// is owned and synchronised by the handle and read here as an eventually
// consistent input.
package registry
