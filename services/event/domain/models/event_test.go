package models

import (
	"testing"
	"time"
)

func TestEvent_IsExpired(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		evt  Event
		want bool
	}{
		{"pending past deadline", Event{Status: StatusPending, ExpirationDate: &past}, true},
		{"pending before deadline", Event{Status: StatusPending, ExpirationDate: &future}, false},
		{"pending without deadline", Event{Status: StatusPending}, false},
		{"approved past deadline", Event{Status: StatusApproved, ExpirationDate: &past}, false},
		{"already expired", Event{Status: StatusExpired, ExpirationDate: &past}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.evt.IsExpired(now); got != tt.want {
				t.Fatalf("IsExpired = %v, want %v", got, tt.want)
			}
		})
	}
}
