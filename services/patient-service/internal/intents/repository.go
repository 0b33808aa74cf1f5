package intents

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pm/patient-management/libs/db"
	otelx "github.com/pm/patient-management/libs/otel"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertTx records the intent inside the caller's transaction. One intent
// exists per patient.
func (r *Repository) InsertTx(ctx context.Context, tx pgx.Tx, in Intent) error {
	maxAttempts := in.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	tc := otelx.CaptureTraceContext(ctx)
	_, err := tx.Exec(ctx, `
		INSERT INTO billing_intents (patient_id, name, email, max_attempts, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (patient_id) DO NOTHING
	`, in.PatientID, in.Name, in.Email, maxAttempts, tc.Traceparent, tc.Tracestate)
	return err
}

func (r *Repository) Claim(ctx context.Context, limit int, lease time.Duration) ([]Intent, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE billing_intents
		SET attempts = attempts + 1,
		    next_run_at = now() + make_interval(secs => $2),
		    updated_at = now()
		WHERE id IN (
			SELECT id
			FROM billing_intents
			WHERE status = 'pending' AND next_run_at <= now()
			ORDER BY next_run_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, patient_id, name, email, attempts, max_attempts, next_run_at, traceparent, tracestate
	`, limit, lease.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claimed []Intent
	for rows.Next() {
		var in Intent
		if err := rows.Scan(&in.ID, &in.PatientID, &in.Name, &in.Email, &in.Attempts, &in.MaxAttempts, &in.NextRunAt, &in.Trace.Traceparent, &in.Trace.Tracestate); err != nil {
			return nil, err
		}
		claimed = append(claimed, in)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return claimed, nil
}

func (r *Repository) Complete(ctx context.Context, id int64, accountID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE billing_intents
		SET status = 'done',
		    account_id = $2,
		    last_error = NULL,
		    updated_at = now()
		WHERE id = $1
	`, id, accountID)
	return err
}

// Fail reschedules the intent, or parks it as failed once attempts reach
// max_attempts.
func (r *Repository) Fail(ctx context.Context, in Intent, nextRunAt time.Time, reason string) error {
	status := "pending"
	if in.Attempts >= in.MaxAttempts {
		status = "failed"
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE billing_intents
		SET status = $2,
		    next_run_at = $3,
		    last_error = $4,
		    updated_at = now()
		WHERE id = $1
	`, in.ID, status, nextRunAt, reason)
	return err
}
