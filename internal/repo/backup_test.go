package repo_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incentive-trips/backend/internal/domain"
	"github.com/incentive-trips/backend/testutil"
)

const (
	firstSnapshot  = `{"name":"Lisbon","agenda":[{"day":1,"items":[{"id":7,"details":[{"text":"Pool","icon":"swim"},["a",["b"]]]}]}]}`
	secondSnapshot = `{"name":"Renamed","agenda":[]}`
)

func TestBackupRepo_AppendAndList(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		tripID := uuid.New()
		base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

		require.NoError(t, s.backups.Append(ctx, domain.Backup{
			TripID: tripID, Version: 1, BackedUpAt: base, Snapshot: json.RawMessage(firstSnapshot),
		}))
		require.NoError(t, s.backups.Append(ctx, domain.Backup{
			TripID: tripID, Version: 2, BackedUpAt: base.Add(time.Minute), Snapshot: json.RawMessage(secondSnapshot),
		}))

		got, err := s.backups.ListByTrip(ctx, tripID)

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, int64(2), got[0].Version, "newest first")
		assert.JSONEq(t, secondSnapshot, string(got[0].Snapshot))
		assert.Equal(t, int64(1), got[1].Version)
		assert.JSONEq(t, firstSnapshot, string(got[1].Snapshot), "legacy detail shapes are kept")
		assert.True(t, got[1].BackedUpAt.Equal(base))
	})
}

func TestBackupRepo_Append_RejectsInvalidJSON(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		err := s.backups.Append(context.Background(), domain.Backup{
			TripID: uuid.New(), Version: 1, Snapshot: json.RawMessage(`{"name":`),
		})

		assert.Error(t, err)
	})
}

func TestBackupRepo_ListByTrip_Empty(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		got, err := s.backups.ListByTrip(context.Background(), uuid.New())

		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestBackupRepo_SurvivesTripDelete(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		created, err := s.trips.Create(ctx, tripFixture())
		require.NoError(t, err)
		stored, err := s.trips.GetStored(ctx, created.ID)
		require.NoError(t, err)
		require.NoError(t, s.backups.Append(ctx, domain.Backup{
			TripID: created.ID, Version: created.Version, Snapshot: stored.Document,
		}))

		require.NoError(t, s.trips.Delete(ctx, created.ID))

		got, err := s.backups.ListByTrip(ctx, created.ID)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestBackupRepo_PostgresRejectsRewrites(t *testing.T) {
	pool := testutil.NewPool(t)
	ctx := context.Background()

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback(context.Background()) })

	_, err = tx.Exec(ctx, `INSERT INTO trip_backups (trip_id, version, snapshot) VALUES ($1, 1, '{}'::jsonb)`, uuid.New())
	require.NoError(t, err)

	_, err = tx.Exec(ctx, `SAVEPOINT before_update`)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, `UPDATE trip_backups SET version = 2`)
	assert.ErrorContains(t, err, "append-only")

	_, err = tx.Exec(ctx, `ROLLBACK TO SAVEPOINT before_update`)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, `DELETE FROM trip_backups`)
	assert.ErrorContains(t, err, "append-only")
}
