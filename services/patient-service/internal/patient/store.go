package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the durable record store. It is the single point of shared
// mutation and must enforce email uniqueness itself: Insert and Update
// report a unique violation as ErrDuplicateEmail.
type Store interface {
	Insert(ctx context.Context, p Patient) (Patient, error)
	Update(ctx context.Context, p Patient) (Patient, error)
	// FindByID returns ErrNotFound when no record has the id.
	FindByID(ctx context.Context, id uuid.UUID) (Patient, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByEmailExcluding(ctx context.Context, email string, id uuid.UUID) (bool, error)
	// DeleteByID succeeds when the id is already absent.
	DeleteByID(ctx context.Context, id uuid.UUID) error
	FindAll(ctx context.Context) ([]Patient, error)
}

// IntentStore inserts a patient together with a durable "provision billing
// for this id" intent in one transaction.
type IntentStore interface {
	InsertWithBillingIntent(ctx context.Context, p Patient) (Patient, error)
}

type BillingProvisioner interface {
	CreateAccount(ctx context.Context, patientID, name, email string) (AccountRef, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, evt RegistrationEvent) error
}

const (
	OutcomeRegistered = "registered"
	OutcomeDuplicate  = "duplicate_email"
	OutcomeInvalid    = "invalid"
	OutcomeError      = "error"

	StepBilling = "billing"
	StepPublish = "publish"
)

// Observer receives orchestration metrics.
type Observer interface {
	RegistrationOutcome(outcome string)
	SideEffectFailed(step string)
	SideEffectDuration(step string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) RegistrationOutcome(string) {}
func (nopObserver) SideEffectFailed(string) {}
func (nopObserver) SideEffectDuration(string, time.Duration) {}
