// Package intents stores "provision billing for patient X" intents next to
// the patient write and executes them asynchronously with retry.
package intents

import (
	"context"
	"time"

	"github.com/google/uuid"
	otelx "github.com/pm/patient-management/libs/otel"
)

const DefaultMaxAttempts = 10

type Intent struct {
	ID          int64
	PatientID   uuid.UUID
	Name        string
	Email       string
	Attempts    int
	MaxAttempts int
	NextRunAt   time.Time
	// Trace links the worker's span to the registration that queued it.
	Trace otelx.TraceContext
}

// Queue hands out due intents under a lease: a claimed intent is invisible
// to other claimers until the lease expires or it is completed/failed.
// Claim counts the attempt.
type Queue interface {
	Claim(ctx context.Context, limit int, lease time.Duration) ([]Intent, error)
	Complete(ctx context.Context, id int64, accountID string) error
	Fail(ctx context.Context, in Intent, nextRunAt time.Time, reason string) error
}
