package patient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type BillingMode string

const (
	// BillingModeSync calls the provisioner inline after the write and never
	// compensates on failure.
	BillingModeSync BillingMode = "sync"
	// BillingModeOutbox records a billing intent in the same transaction as
	// the patient and leaves provisioning to the intents worker.
	BillingModeOutbox BillingMode = "outbox"
)

type Config struct {
	BillingTimeout time.Duration
	PublishTimeout time.Duration
	BillingMode    BillingMode
}

func (c Config) withDefaults() Config {
	if c.BillingTimeout <= 0 {
		c.BillingTimeout = 3 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 3 * time.Second
	}
	if c.BillingMode == "" {
		c.BillingMode = BillingModeSync
	}
	return c
}

var tracer = otel.Tracer("github.com/pm/patient-management/services/patient-service/internal/patient")

// Service orchestrates patient registration, update and delete.
//
// Registration runs store write, billing provisioning and event publish in
// that order. The write is the durability boundary: once it commits the
// patient is registered, and billing or publish failures are only logged
// and counted.
type Service struct {
	store    Store
	intents  IntentStore
	billing  BillingProvisioner
	events   EventPublisher
	observer Observer
	logger   *slog.Logger
	cfg      Config
}

func NewService(store Store, billing BillingProvisioner, events EventPublisher, observer Observer, logger *slog.Logger, cfg Config) (*Service, error) {
	cfg = cfg.withDefaults()
	if observer == nil {
		observer = nopObserver{}
	}
	svc := &Service{
		store:    store,
		billing:  billing,
		events:   events,
		observer: observer,
		logger:   logger,
		cfg:      cfg,
	}

	switch cfg.BillingMode {
	case BillingModeSync:
	case BillingModeOutbox:
		intents, ok := store.(IntentStore)
		if !ok {
			return nil, fmt.Errorf("billing mode %q requires a store that records billing intents", cfg.BillingMode)
		}
		svc.intents = intents
	default:
		return nil, fmt.Errorf("unknown billing mode %q", cfg.BillingMode)
	}
	return svc, nil
}

func (s *Service) Register(ctx context.Context, in Input) (Record, error) {
	ctx, span := tracer.Start(ctx, "patient.Register")
	defer span.End()

	candidate, err := NewPatient(in)
	if err != nil {
		s.observer.RegistrationOutcome(OutcomeInvalid)
		return Record{}, err
	}

	// Advisory only: concurrent registrations can both pass this check, and
	// the store's unique constraint decides.
	exists, err := s.store.ExistsByEmail(ctx, candidate.Email)
	if err != nil {
		s.fail(span, err)
		s.observer.RegistrationOutcome(OutcomeError)
		return Record{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		s.logger.WarnContext(ctx, "registration rejected: email address already exists")
		s.observer.RegistrationOutcome(OutcomeDuplicate)
		return Record{}, ErrDuplicateEmail
	}

	created, err := s.insert(ctx, candidate)
	if errors.Is(err, ErrDuplicateEmail) {
		s.logger.WarnContext(ctx, "registration rejected by store: email address already exists")
		s.observer.RegistrationOutcome(OutcomeDuplicate)
		return Record{}, ErrDuplicateEmail
	}
	if err != nil {
		s.fail(span, err)
		s.observer.RegistrationOutcome(OutcomeError)
		return Record{}, fmt.Errorf("insert patient: %w", err)
	}
	span.SetAttributes(attribute.String("patient.id", created.ID.String()))
	s.logger.InfoContext(ctx, "patient registered", "patient_id", created.ID)

	// The write has committed. Side effects keep their own deadlines but no
	// longer follow the caller's cancellation.
	sideCtx := context.WithoutCancel(ctx)
	if s.cfg.BillingMode == BillingModeSync {
		s.provisionBilling(sideCtx, created)
	}
	s.publishCreated(sideCtx, created)

	s.observer.RegistrationOutcome(OutcomeRegistered)
	return ToRecord(created), nil
}

func (s *Service) insert(ctx context.Context, p Patient) (Patient, error) {
	if s.intents != nil {
		return s.intents.InsertWithBillingIntent(ctx, p)
	}
	return s.store.Insert(ctx, p)
}

func (s *Service) provisionBilling(ctx context.Context, p Patient) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.BillingTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "patient.ProvisionBilling")
	defer span.End()

	start := time.Now()
	ref, err := s.billing.CreateAccount(ctx, p.ID.String(), p.Name, p.Email)
	s.observer.SideEffectDuration(StepBilling, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "billing provisioning failed")
		s.observer.SideEffectFailed(StepBilling)
		s.logger.ErrorContext(ctx, "billing provisioning failed; patient stays registered", "patient_id", p.ID, "err", err)
		return
	}
	s.logger.InfoContext(ctx, "billing account provisioned", "patient_id", p.ID, "account_id", ref.AccountID, "status", ref.Status)
}

func (s *Service) publishCreated(ctx context.Context, p Patient) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PublishTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "patient.PublishCreated")
	defer span.End()

	start := time.Now()
	err := s.events.Publish(ctx, NewRegistrationEvent(p))
	s.observer.SideEffectDuration(StepPublish, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		s.observer.SideEffectFailed(StepPublish)
		s.logger.ErrorContext(ctx, "registration event publish failed", "patient_id", p.ID, "err", err)
	}
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (Record, error) {
	ctx, span := tracer.Start(ctx, "patient.Update", trace.WithAttributes(attribute.String("patient.id", id.String())))
	defer span.End()

	changes, err := parseChanges(in)
	if err != nil {
		return Record{}, err
	}

	existing, err := s.store.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		s.fail(span, err)
		return Record{}, fmt.Errorf("find patient: %w", err)
	}

	taken, err := s.store.ExistsByEmailExcluding(ctx, changes.Email, id)
	if err != nil {
		s.fail(span, err)
		return Record{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		s.logger.WarnContext(ctx, "update rejected: email address already exists", "patient_id", id)
		return Record{}, ErrDuplicateEmail
	}

	existing.Name = changes.Name
	existing.Address = changes.Address
	existing.Email = changes.Email
	existing.DateOfBirth = changes.DateOfBirth

	updated, err := s.store.Update(ctx, existing)
	if errors.Is(err, ErrDuplicateEmail) || errors.Is(err, ErrNotFound) {
		return Record{}, err
	}
	if err != nil {
		s.fail(span, err)
		return Record{}, fmt.Errorf("update patient: %w", err)
	}
	return ToRecord(updated), nil
}

// Delete removes the patient. Deleting an unknown id succeeds.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "patient.Delete", trace.WithAttributes(attribute.String("patient.id", id.String())))
	defer span.End()

	if err := s.store.DeleteByID(ctx, id); err != nil {
		s.fail(span, err)
		return fmt.Errorf("delete patient: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	p, err := s.store.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("find patient: %w", err)
	}
	return ToRecord(p), nil
}

func (s *Service) List(ctx context.Context) ([]Record, error) {
	patients, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return ToRecords(patients), nil
}

func (s *Service) fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
