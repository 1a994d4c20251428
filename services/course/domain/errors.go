package domain

import "errors"

// Sentinel errors for the course domain. Use errors.Is() to check these.
var (
	// ErrClassNotFound indicates the requested class does not exist.
	ErrClassNotFound = errors.New("class not found")

	// ErrNoOfferings indicates a gradable lookup named no course offerings.
	ErrNoOfferings = errors.New("no course offerings requested")
)
