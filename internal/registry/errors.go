package registry

import "errors"

var (
	// ErrResourceAcquisition is returned by Create when the task's resource
	// session cannot be established. Nothing is registered in that case.
	ErrResourceAcquisition = errors.New("registry: resource acquisition failed")

	// ErrAggregation is returned by the snapshot methods when a task's row
	// cannot be placed in the combined table. The whole snapshot fails.
	ErrAggregation = errors.New("registry: aggregation failed")
)
