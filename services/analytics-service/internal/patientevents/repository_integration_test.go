//go:build integration

package patientevents

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pm/patient-management/libs/db"
	"github.com/pm/patient-management/services/analytics-service/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRepositoryDeduplicatesByEventID(t *testing.T) {
	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("analytics_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(slog.New(slog.NewTextHandler(io.Discard, nil)), migrations.FS, connStr))

	pool, err := db.Open(ctx, connStr, db.PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := NewRepository(pool)
	evt := Event{EventID: "e-1", EventType: "created", PatientID: "p-1", OccurredAt: time.Now()}

	recorded, err := repo.Record(ctx, evt)
	require.NoError(t, err)
	assert.True(t, recorded)

	recorded, err = repo.Record(ctx, evt)
	require.NoError(t, err)
	assert.False(t, recorded)

	counts, err := repo.CountsByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"created": 1}, counts)
}
