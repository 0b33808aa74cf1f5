package storage

import (
	"context"
	"errors"
	"time"

	"github.com/pm/patient-management/libs/db"
)

var ErrNotFound = errors.New("billing account not found")

const (
	ProviderLocal  = "local"
	ProviderStripe = "stripe"

	StatusActive = "active"
)

type Account struct {
	ID          string
	PatientID   string
	Name        string
	Email       string
	Provider    string
	ProviderRef string
	Status      string
	CreatedAt   time.Time
}

type AccountRepository struct {
	pool *db.Pool
}

func NewAccountRepository(pool *db.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create inserts the account unless the patient already has one, in which
// case the existing account is returned with created=false.
func (r *AccountRepository) Create(ctx context.Context, a Account) (Account, bool, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO billing_accounts (id, patient_id, name, email, provider, provider_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (patient_id) DO NOTHING
		RETURNING created_at
	`, a.ID, a.PatientID, a.Name, a.Email, a.Provider, nullIfEmpty(a.ProviderRef), a.Status).Scan(&a.CreatedAt)
	if db.IsNotFound(err) {
		existing, err := r.GetByPatientID(ctx, a.PatientID)
		return existing, false, err
	}
	if err != nil {
		return Account{}, false, err
	}
	return a, true, nil
}

func (r *AccountRepository) GetByPatientID(ctx context.Context, patientID string) (Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, patient_id, name, email, provider, COALESCE(provider_ref, ''), status, created_at
		FROM billing_accounts
		WHERE patient_id = $1
	`, patientID).Scan(&a.ID, &a.PatientID, &a.Name, &a.Email, &a.Provider, &a.ProviderRef, &a.Status, &a.CreatedAt)
	if db.IsNotFound(err) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

func nullIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
