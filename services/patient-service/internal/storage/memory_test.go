package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pm/patient-management/services/patient-service/internal/intents"
	"github.com/pm/patient-management/services/patient-service/internal/patient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePatient(email string) patient.Patient {
	return patient.Patient{
		Name:           "Ann",
		Email:          email,
		Address:        "1 Main St",
		DateOfBirth:    time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		RegisteredDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMemoryStoreInsertAssignsIDAndEnforcesEmail(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	created, err := s.Insert(ctx, samplePatient("a@x.com"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)

	found, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, found)

	_, err = s.Insert(ctx, samplePatient("a@x.com"))
	assert.ErrorIs(t, err, patient.ErrDuplicateEmail)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreConcurrentInsertsSameEmail(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Insert(ctx, samplePatient("same@x.com")); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a, err := s.Insert(ctx, samplePatient("a@x.com"))
	require.NoError(t, err)
	b, err := s.Insert(ctx, samplePatient("b@x.com"))
	require.NoError(t, err)

	b.Email = "a@x.com"
	_, err = s.Update(ctx, b)
	assert.ErrorIs(t, err, patient.ErrDuplicateEmail)

	a.Email = "c@x.com"
	a.RegisteredDate = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	updated, err := s.Update(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), updated.RegisteredDate)

	exists, err := s.ExistsByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, exists, "old email is released")

	_, err = s.Update(ctx, patient.Patient{ID: uuid.New(), Email: "z@x.com"})
	assert.ErrorIs(t, err, patient.ErrNotFound)
}

func TestMemoryStoreExistsByEmailExcluding(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a, err := s.Insert(ctx, samplePatient("a@x.com"))
	require.NoError(t, err)

	taken, err := s.ExistsByEmailExcluding(ctx, "a@x.com", a.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	taken, err = s.ExistsByEmailExcluding(ctx, "a@x.com", uuid.New())
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestMemoryStoreDeleteAndFindAll(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a, err := s.Insert(ctx, samplePatient("a@x.com"))
	require.NoError(t, err)
	b, err := s.Insert(ctx, samplePatient("b@x.com"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteByID(ctx, uuid.New()))
	require.NoError(t, s.DeleteByID(ctx, a.ID))

	_, err = s.FindByID(ctx, a.ID)
	assert.ErrorIs(t, err, patient.ErrNotFound)

	all, err := s.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []patient.Patient{b}, all)

	_, err = s.Insert(ctx, samplePatient("a@x.com"))
	assert.NoError(t, err, "deleted email is reusable")
}

func TestMemoryStoreInsertWithBillingIntent(t *testing.T) {
	ctx := context.Background()

	_, err := NewMemoryStore().InsertWithBillingIntent(ctx, samplePatient("a@x.com"))
	assert.Error(t, err)

	q := intents.NewMemoryQueue()
	s := NewMemoryStoreWithIntents(q)
	created, err := s.InsertWithBillingIntent(ctx, samplePatient("a@x.com"))
	require.NoError(t, err)

	status, _, ok := q.Status(created.ID.String())
	require.True(t, ok)
	assert.Equal(t, "pending", status)

	_, err = s.InsertWithBillingIntent(ctx, samplePatient("a@x.com"))
	assert.ErrorIs(t, err, patient.ErrDuplicateEmail)
	claimed, err := q.Claim(ctx, 10, time.Minute)
	require.NoError(t, err)
	assert.Len(t, claimed, 1)
}
