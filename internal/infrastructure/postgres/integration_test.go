//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/cassiomorais/tripcheckout/internal/domain/intent"
	"github.com/cassiomorais/tripcheckout/internal/domain/trip"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// Run with: go test -tags integration ./internal/infrastructure/postgres/...
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("trips"),
		tcpostgres.WithUsername("trips"),
		tcpostgres.WithPassword("trips"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	src, err := iofs.New(Migrations, "migrations")
	require.NoError(t, err)
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	require.NoError(t, err)
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		require.NoError(t, err)
	}
	srcErr, dbErr := m.Close()
	require.NoError(t, srcErr)
	require.NoError(t, dbErr)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func stagedIntent(actorID, title string, now time.Time) *intent.Intent {
	end := now.Add(72 * time.Hour)
	return intent.New(actorID, trip.Draft{
		Title:       title,
		GroupLabel:  "Friends",
		Description: "Pastéis de nata and tram 28",
		StartAt:     now.Add(48 * time.Hour),
		EndAt:       &end,
	}, now, 24*time.Hour)
}

func TestIntegration_StagingRoundTrip(t *testing.T) {
	pool := startPostgres(t)
	repo := NewStagingRepository(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err := repo.Load(ctx, "user-1")
	assert.ErrorIs(t, err, domainErrors.ErrIntentNotFound)

	first := stagedIntent("user-1", "Lisbon", now)
	require.NoError(t, repo.Save(ctx, first))

	got, err := repo.Load(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "user-1", got.ActorID)
	assert.True(t, got.Draft.Equal(first.Draft), "draft survives the JSON column")
	assert.True(t, got.ExpiresAt.Equal(first.ExpiresAt))

	// A new checkout replaces the row for the actor.
	second := stagedIntent("user-1", "Porto", now)
	require.NoError(t, repo.Save(ctx, second))
	got, err = repo.Load(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, "Porto", got.Draft.Title)

	require.NoError(t, repo.Delete(ctx, "user-1"))
	_, err = repo.Load(ctx, "user-1")
	assert.ErrorIs(t, err, domainErrors.ErrIntentNotFound)
	require.NoError(t, repo.Delete(ctx, "user-1"))
}

func TestIntegration_StagingDeleteExpired(t *testing.T) {
	pool := startPostgres(t)
	repo := NewStagingRepository(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Save(ctx, stagedIntent("user-1", "Lisbon", now)))
	require.NoError(t, repo.Save(ctx, stagedIntent("user-2", "Porto", now.Add(-48*time.Hour))))

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.Load(ctx, "user-1")
	assert.NoError(t, err)
	_, err = repo.Load(ctx, "user-2")
	assert.ErrorIs(t, err, domainErrors.ErrIntentNotFound)
}

func TestIntegration_TripByCorrelationKey(t *testing.T) {
	pool := startPostgres(t)
	trips := NewTripRepository(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	in := stagedIntent("user-1", "Lisbon", now)
	tr := trip.NewTrip(in.Draft, "user-1", in.CorrelationKey(), now)
	tr.JoinCode = "K7M2PQ"
	require.NoError(t, trips.Create(ctx, tr))

	got, err := trips.GetByCorrelationKey(ctx, in.CorrelationKey())
	require.NoError(t, err)
	assert.Equal(t, tr.ID, got.ID)

	dup := trip.NewTrip(in.Draft, "user-1", in.CorrelationKey(), now)
	dup.JoinCode = "ZZZZZZ"
	assert.ErrorIs(t, trips.Create(ctx, dup), domainErrors.ErrDuplicateTrip)
}
