// Package runner provides the throttled worker pool that executes work items
// for every task. At most MaxWorkers items run at once; the rest wait for a
// slot. The live count of running items is the signal the task registry may
// consult when deciding whether tasks are idle.
package runner
