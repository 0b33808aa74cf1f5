package intents

import (
	"context"
	"log/slog"
	"time"

	"github.com/pm/patient-management/services/patient-service/internal/patient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	ResultProvisioned = "provisioned"
	ResultRetry       = "retry"
	ResultExhausted   = "exhausted"
)

// Observer is notified once per processed intent.
type Observer interface {
	IntentProcessed(result string)
}

type WorkerConfig struct {
	Interval    time.Duration
	BatchSize   int
	Lease       time.Duration
	CallTimeout time.Duration
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.Interval <= 0 {
		c.Interval = 2 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 3 * time.Second
	}
	if c.Lease <= c.CallTimeout {
		c.Lease = c.CallTimeout * 10
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 2 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Minute
	}
	if c.MaxBackoff < c.BaseBackoff {
		c.MaxBackoff = c.BaseBackoff
	}
	return c
}

var tracer = otel.Tracer("github.com/pm/patient-management/services/patient-service/internal/intents")

type Worker struct {
	queue    Queue
	billing  patient.BillingProvisioner
	observer Observer
	logger   *slog.Logger
	cfg      WorkerConfig
	now      func() time.Time
}

func NewWorker(queue Queue, billing patient.BillingProvisioner, observer Observer, logger *slog.Logger, cfg WorkerConfig) *Worker {
	return &Worker{
		queue:    queue,
		billing:  billing,
		observer: observer,
		logger:   logger,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ProcessBatch(ctx); err != nil {
				w.logger.ErrorContext(ctx, "billing intent batch failed", "err", err)
			}
		}
	}
}

// ProcessBatch claims due intents and provisions each one. It returns the
// number of intents claimed.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	claimed, err := w.queue.Claim(ctx, w.cfg.BatchSize, w.cfg.Lease)
	if err != nil {
		return 0, err
	}
	for _, in := range claimed {
		if err := w.process(ctx, in); err != nil {
			return len(claimed), err
		}
	}
	return len(claimed), nil
}

func (w *Worker) process(ctx context.Context, in Intent) error {
	ctx = in.Trace.Restore(ctx)
	ctx, span := tracer.Start(ctx, "intents.ProvisionBilling")
	defer span.End()
	span.SetAttributes(
		attribute.String("patient.id", in.PatientID.String()),
		attribute.Int("intent.attempt", in.Attempts),
	)

	callCtx, cancel := context.WithTimeout(ctx, w.cfg.CallTimeout)
	ref, callErr := w.billing.CreateAccount(callCtx, in.PatientID.String(), in.Name, in.Email)
	cancel()

	if callErr == nil {
		if err := w.queue.Complete(ctx, in.ID, ref.AccountID); err != nil {
			return err
		}
		w.observe(ResultProvisioned)
		w.logger.InfoContext(ctx, "billing account provisioned", "patient_id", in.PatientID, "account_id", ref.AccountID, "attempt", in.Attempts)
		return nil
	}

	span.RecordError(callErr)
	span.SetStatus(codes.Error, "billing provisioning failed")
	nextRunAt := w.now().UTC().Add(w.backoff(in.Attempts))
	if err := w.queue.Fail(ctx, in, nextRunAt, callErr.Error()); err != nil {
		return err
	}
	if in.Attempts >= in.MaxAttempts {
		w.observe(ResultExhausted)
		w.logger.ErrorContext(ctx, "billing intent exhausted", "patient_id", in.PatientID, "attempts", in.Attempts, "err", callErr)
		return nil
	}
	w.observe(ResultRetry)
	w.logger.WarnContext(ctx, "billing provisioning failed; will retry", "patient_id", in.PatientID, "attempt", in.Attempts, "next_run_at", nextRunAt, "err", callErr)
	return nil
}

// backoff doubles from BaseBackoff per attempt, capped at MaxBackoff.
func (w *Worker) backoff(attempt int) time.Duration {
	d := w.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= w.cfg.MaxBackoff {
			return w.cfg.MaxBackoff
		}
	}
	return d
}

func (w *Worker) observe(result string) {
	if w.observer != nil {
		w.observer.IntentProcessed(result)
	}
}
