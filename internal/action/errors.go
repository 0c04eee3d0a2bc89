package action

import "errors"

var (
	// ErrSealed is returned by Submit after Seal has been called.
	ErrSealed = errors.New("action: manager sealed")
	// ErrReleased is returned when work is submitted or a session is needed
	// after ReleaseResources.
	ErrReleased = errors.New("action: resources released")
	// ErrUnknownAction is returned by Catalog.Resolve for an unregistered name.
	ErrUnknownAction = errors.New("action: unknown action")
)
