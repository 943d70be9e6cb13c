package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/incentive-trips/backend/internal/domain"
)

// BackupRepo stores pre-merge snapshots. It is append-only: there is no
// update or delete.
type BackupRepo interface {
	// Append stores one snapshot.
	Append(ctx context.Context, b domain.Backup) error

	// ListByTrip returns a trip's snapshots, newest first. A trip with no
	// backups yields an empty slice, not an error.
	ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.Backup, error)
}

// pgBackupRepo is the Postgres implementation of BackupRepo. The
// trip_backups table rejects UPDATE and DELETE with a trigger.
type pgBackupRepo struct {
	db db
}

// NewBackupRepo constructs a BackupRepo backed by the provided db connection.
func NewBackupRepo(db db) BackupRepo {
	return &pgBackupRepo{db: db}
}

func (r *pgBackupRepo) Append(ctx context.Context, b domain.Backup) error {
	const q = `
		INSERT INTO trip_backups (trip_id, version, snapshot, backed_up_at)
		VALUES (@trip_id, @version, @snapshot, @backed_up_at)`

	if !json.Valid(b.Snapshot) {
		return fmt.Errorf("repo.BackupRepo.Append: snapshot is not valid JSON")
	}

	backedUpAt := b.BackedUpAt
	if backedUpAt.IsZero() {
		backedUpAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx, q, pgx.NamedArgs{
		"trip_id":      b.TripID,
		"version":      b.Version,
		"snapshot":     []byte(b.Snapshot),
		"backed_up_at": backedUpAt,
	})
	if err != nil {
		return fmt.Errorf("repo.BackupRepo.Append: %w", err)
	}
	return nil
}

func (r *pgBackupRepo) ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.Backup, error) {
	const q = `
		SELECT version, snapshot, backed_up_at
		FROM trip_backups
		WHERE trip_id = @trip_id
		ORDER BY backed_up_at DESC, id DESC`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("repo.BackupRepo.ListByTrip: %w", err)
	}
	defer rows.Close()

	backups := []domain.Backup{}
	for rows.Next() {
		var (
			raw []byte
			b   = domain.Backup{TripID: tripID}
		)
		if err := rows.Scan(&b.Version, &raw, &b.BackedUpAt); err != nil {
			return nil, fmt.Errorf("repo.BackupRepo.ListByTrip: scan: %w", err)
		}
		b.Snapshot = raw
		backups = append(backups, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.BackupRepo.ListByTrip: rows: %w", err)
	}
	return backups, nil
}
