package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/pm/patient-management/services/patient-service/internal/intents"
	"github.com/pm/patient-management/services/patient-service/internal/patient"
)

// MemoryStore keeps patients in process memory. Each call holds the lock
// for its own duration only, which makes the email check-and-write atomic.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]patient.Patient
	byEmail map[string]uuid.UUID
	order   []uuid.UUID
	intents *intents.MemoryQueue
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[uuid.UUID]patient.Patient),
		byEmail: make(map[string]uuid.UUID),
	}
}

// NewMemoryStoreWithIntents returns a store whose InsertWithBillingIntent
// enqueues onto q.
func NewMemoryStoreWithIntents(q *intents.MemoryQueue) *MemoryStore {
	s := NewMemoryStore()
	s.intents = q
	return s
}

func (s *MemoryStore) Insert(_ context.Context, p patient.Patient) (patient.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(p)
}

func (s *MemoryStore) InsertWithBillingIntent(ctx context.Context, p patient.Patient) (patient.Patient, error) {
	if s.intents == nil {
		return patient.Patient{}, errors.New("memory store has no intent queue")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.insertLocked(p)
	if err != nil {
		return patient.Patient{}, err
	}
	s.intents.Enqueue(ctx, intents.Intent{PatientID: created.ID, Name: created.Name, Email: created.Email})
	return created, nil
}

func (s *MemoryStore) insertLocked(p patient.Patient) (patient.Patient, error) {
	if _, taken := s.byEmail[p.Email]; taken {
		return patient.Patient{}, patient.ErrDuplicateEmail
	}
	p.ID = uuid.New()
	s.byID[p.ID] = p
	s.byEmail[p.Email] = p.ID
	s.order = append(s.order, p.ID)
	return p, nil
}

func (s *MemoryStore) Update(_ context.Context, p patient.Patient) (patient.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[p.ID]
	if !ok {
		return patient.Patient{}, patient.ErrNotFound
	}
	if owner, taken := s.byEmail[p.Email]; taken && owner != p.ID {
		return patient.Patient{}, patient.ErrDuplicateEmail
	}
	delete(s.byEmail, current.Email)
	p.RegisteredDate = current.RegisteredDate
	s.byID[p.ID] = p
	s.byEmail[p.Email] = p.ID
	return p, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (patient.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return patient.Patient{}, patient.ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.byEmail[email]
	return ok, nil
}

func (s *MemoryStore) ExistsByEmailExcluding(_ context.Context, email string, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.byEmail[email]
	return ok && owner != id, nil
}

func (s *MemoryStore) DeleteByID(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return nil
	}
	delete(s.byID, id)
	delete(s.byEmail, p.Email)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) FindAll(_ context.Context) ([]patient.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]patient.Patient, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out, nil
}

// Len reports the number of stored patients.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
