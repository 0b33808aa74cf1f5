//go:build integration

package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pm/patient-management/libs/db"
	"github.com/pm/patient-management/services/patient-service/internal/intents"
	"github.com/pm/patient-management/services/patient-service/internal/patient"
	"github.com/pm/patient-management/services/patient-service/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgres(t *testing.T) *db.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("patients_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, db.Migrate(logger, migrations.FS, connStr))

	pool, err := db.Open(ctx, connStr, db.PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestPatientRepositoryRoundTrip(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	repo := NewPatientRepository(pool, intents.NewRepository(pool))

	created, err := repo.Insert(ctx, samplePatient("ann@x.com"))
	require.NoError(t, err)

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "ann@x.com", found.Email)
	assert.True(t, created.DateOfBirth.Equal(found.DateOfBirth))

	_, err = repo.Insert(ctx, samplePatient("ann@x.com"))
	assert.ErrorIs(t, err, patient.ErrDuplicateEmail)

	other, err := repo.Insert(ctx, samplePatient("bob@x.com"))
	require.NoError(t, err)
	other.Email = "ann@x.com"
	_, err = repo.Update(ctx, other)
	assert.ErrorIs(t, err, patient.ErrDuplicateEmail)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, repo.DeleteByID(ctx, created.ID))
	require.NoError(t, repo.DeleteByID(ctx, created.ID))
	_, err = repo.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, patient.ErrNotFound)
}

func TestPatientRepositoryBillingIntentLifecycle(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	intentsRepo := intents.NewRepository(pool)
	repo := NewPatientRepository(pool, intentsRepo)

	created, err := repo.InsertWithBillingIntent(ctx, samplePatient("ann@x.com"))
	require.NoError(t, err)

	claimed, err := intentsRepo.Claim(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, created.ID, claimed[0].PatientID)
	assert.Equal(t, 1, claimed[0].Attempts)

	again, err := intentsRepo.Claim(ctx, 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again, "leased intent is not claimable")

	require.NoError(t, intentsRepo.Complete(ctx, claimed[0].ID, "acct-1"))

	_, err = repo.InsertWithBillingIntent(ctx, samplePatient("ann@x.com"))
	assert.ErrorIs(t, err, patient.ErrDuplicateEmail)

	var intentCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM billing_intents`).Scan(&intentCount))
	assert.Equal(t, 1, intentCount, "rolled back registration leaves no intent")
}
