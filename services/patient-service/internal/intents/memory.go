package intents

import (
	"context"
	"sort"
	"sync"
	"time"

	otelx "github.com/pm/patient-management/libs/otel"
)

const (
	statusPending = "pending"
	statusDone    = "done"
	statusFailed  = "failed"
)

type memoryIntent struct {
	Intent
	status    string
	accountID string
	lastError string
}

// MemoryQueue is the in-memory counterpart of Repository.
type MemoryQueue struct {
	mu        sync.Mutex
	nextID    int64
	byID      map[int64]*memoryIntent
	byPatient map[string]int64
	now       func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		byID:      make(map[int64]*memoryIntent),
		byPatient: make(map[string]int64),
		now:       time.Now,
	}
}

// Enqueue records an intent unless one already exists for the patient.
func (q *MemoryQueue) Enqueue(ctx context.Context, in Intent) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := in.PatientID.String()
	if _, ok := q.byPatient[key]; ok {
		return
	}
	q.nextID++
	in.ID = q.nextID
	in.Attempts = 0
	if in.MaxAttempts <= 0 {
		in.MaxAttempts = DefaultMaxAttempts
	}
	in.NextRunAt = q.now()
	in.Trace = otelx.CaptureTraceContext(ctx)
	q.byID[in.ID] = &memoryIntent{Intent: in, status: statusPending}
	q.byPatient[key] = in.ID
}

func (q *MemoryQueue) Claim(_ context.Context, limit int, lease time.Duration) ([]Intent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var due []*memoryIntent
	for _, mi := range q.byID {
		if mi.status == statusPending && !mi.NextRunAt.After(now) {
			due = append(due, mi)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextRunAt.Equal(due[j].NextRunAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].NextRunAt.Before(due[j].NextRunAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]Intent, 0, len(due))
	for _, mi := range due {
		mi.Attempts++
		mi.NextRunAt = now.Add(lease)
		claimed = append(claimed, mi.Intent)
	}
	return claimed, nil
}

func (q *MemoryQueue) Complete(_ context.Context, id int64, accountID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if mi, ok := q.byID[id]; ok {
		mi.status = statusDone
		mi.accountID = accountID
		mi.lastError = ""
	}
	return nil
}

func (q *MemoryQueue) Fail(_ context.Context, in Intent, nextRunAt time.Time, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	mi, ok := q.byID[in.ID]
	if !ok {
		return nil
	}
	mi.status = statusPending
	if in.Attempts >= in.MaxAttempts {
		mi.status = statusFailed
	}
	mi.NextRunAt = nextRunAt
	mi.lastError = reason
	return nil
}

// Status reports the state and account id of the patient's intent.
func (q *MemoryQueue) Status(patientID string) (status string, accountID string, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id, found := q.byPatient[patientID]
	if !found {
		return "", "", false
	}
	mi := q.byID[id]
	return mi.status, mi.accountID, true
}
