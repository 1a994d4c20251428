package models

import "time"

// Status is the approval state of an event.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusExpired  Status = "expired"
)

// Event is a room event waiting for, or past, approval.
type Event struct {
	ID             int64
	Name           string
	Status         Status
	ExpirationDate *time.Time
}

// IsExpired reports whether a pending event's approval window closed before now.
func (e *Event) IsExpired(now time.Time) bool {
	return e.Status == StatusPending && e.ExpirationDate != nil && e.ExpirationDate.Before(now)
}
