// Package patientevents records patient lifecycle events published by the
// patient service.
package patientevents

import (
	"context"
	"time"
)

// Event is one deduplicated entry of the patient event log.
type Event struct {
	EventID    string
	EventType  string
	PatientID  string
	OccurredAt time.Time
}

// Store records events exactly once per EventID. Record reports false for a
// duplicate delivery.
type Store interface {
	Record(ctx context.Context, evt Event) (bool, error)
	CountsByType(ctx context.Context) (map[string]int64, error)
}
