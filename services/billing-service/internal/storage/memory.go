package storage

import (
	"context"
	"sync"
	"time"
)

type MemoryAccountRepository struct {
	mu        sync.Mutex
	byPatient map[string]Account
	now       func() time.Time
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		byPatient: make(map[string]Account),
		now:       time.Now,
	}
}

func (r *MemoryAccountRepository) Create(_ context.Context, a Account) (Account, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byPatient[a.PatientID]; ok {
		return existing, false, nil
	}
	a.CreatedAt = r.now().UTC()
	r.byPatient[a.PatientID] = a
	return a, true, nil
}

func (r *MemoryAccountRepository) GetByPatientID(_ context.Context, patientID string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byPatient[patientID]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryAccountRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byPatient)
}
