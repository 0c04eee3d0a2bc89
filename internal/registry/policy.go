package registry

// Policy decides which tasks a purge sweep may remove.
type Policy int

const (
	// PolicyCompletedOnly removes a task only once it reports completion.
	PolicyCompletedOnly Policy = iota

	// PolicyRunnerIdle additionally removes every task, complete or not,
	// whenever the worker pool has no running items at the start of the
	// sweep. A task whose items are queued but not yet dispatched can be
	// released before it runs under this policy; use it only when every
	// task submits all of its work before the next sweep.
	PolicyRunnerIdle
)

func (p Policy) String() string {
	switch p {
	case PolicyCompletedOnly:
		return "completed-only"
	case PolicyRunnerIdle:
		return "runner-idle"
	default:
		return "unknown"
	}
}
