package domain

import "errors"

// Sentinel errors for the event domain. Use errors.Is() to check these.
var (
	// ErrEventNotFound indicates the requested event does not exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrAlreadyRunning is returned by Start on a running expiration task.
	ErrAlreadyRunning = errors.New("event expiration already running")
)
