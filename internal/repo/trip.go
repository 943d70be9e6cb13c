// Package repo contains all storage access for the trip agenda service.
// Each resource has its own file with an interface and a Postgres
// implementation; memory.go holds an in-process store used in development
// and tests. No business logic lives here, only queries and type mapping.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/incentive-trips/backend/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TripRepo defines the persistence operations for trip documents.
// The service layer depends on this interface, not the concrete Postgres
// implementation, which allows the service to be unit-tested with a mock or
// the memory store.
type TripRepo interface {
	// Create inserts a new trip and returns the persisted record with the
	// generated id, version 1 and timestamps populated.
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// GetByID retrieves a single trip. Returns domain.ErrNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// GetStored is GetByID plus the stored document, undecoded. Writers use it
	// so backups keep the document exactly as it was.
	GetStored(ctx context.Context, id uuid.UUID) (domain.StoredTrip, error)

	// ListPaged returns one page of trips, newest first, and the total count.
	ListPaged(ctx context.Context, p domain.PaginationParams) (domain.Page[domain.Trip], error)

	// Update replaces the stored document if its version still equals
	// expectedVersion, bumps the version and returns the stored record.
	// Returns domain.ErrNotFound if the trip is gone and domain.ErrConflict if
	// another write got there first.
	Update(ctx context.Context, trip domain.Trip, expectedVersion int64) (domain.Trip, error)

	// Delete removes a trip. Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListAgendas returns every trip's agenda exactly as stored, undecoded.
	ListAgendas(ctx context.Context) ([]domain.AgendaDocument, error)

	// ReplaceAgenda swaps a trip's stored agenda for agenda, with the same
	// version check as Update.
	ReplaceAgenda(ctx context.Context, id uuid.UUID, expectedVersion int64, agenda json.RawMessage) error
}

// tripDocument is the JSONB payload of a trips row. Identity, version and
// timestamps live in their own columns.
type tripDocument struct {
	Name        string       `json:"name"`
	Destination string       `json:"destination,omitempty"`
	StartDate   string       `json:"startDate,omitempty"`
	EndDate     string       `json:"endDate,omitempty"`
	Description string       `json:"description,omitempty"`
	CoverImage  string       `json:"coverImage,omitempty"`
	Agenda      []domain.Day `json:"agenda"`
}

func toDocument(t domain.Trip) ([]byte, error) {
	agenda := t.Agenda
	if agenda == nil {
		agenda = []domain.Day{}
	}
	return json.Marshal(tripDocument{
		Name:        t.Name,
		Destination: t.Destination,
		StartDate:   t.StartDate,
		EndDate:     t.EndDate,
		Description: t.Description,
		CoverImage:  t.CoverImage,
		Agenda:      agenda,
	})
}

// fromDocument decodes a stored document. Detail entries are normalized to
// canonical form on the way in.
func fromDocument(raw []byte, id uuid.UUID, version int64, createdAt, updatedAt time.Time) (domain.Trip, error) {
	var doc tripDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Trip{}, fmt.Errorf("decode trip document: %w", err)
	}
	agenda := doc.Agenda
	if agenda == nil {
		agenda = []domain.Day{}
	}
	return domain.Trip{
		ID:          id,
		Version:     version,
		Name:        doc.Name,
		Destination: doc.Destination,
		StartDate:   doc.StartDate,
		EndDate:     doc.EndDate,
		Description: doc.Description,
		CoverImage:  doc.CoverImage,
		Agenda:      agenda,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// pgTripRepo is the Postgres implementation of TripRepo.
type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

const tripColumns = `id, doc, version, created_at, updated_at`

// Create inserts a new trip row and returns the full persisted record.
func (r *pgTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	const q = `
		INSERT INTO trips (doc)
		VALUES (@doc)
		RETURNING ` + tripColumns

	doc, err := toDocument(trip)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: %w", err)
	}

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"doc": doc})
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves a trip by primary key.
func (r *pgTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	const q = `SELECT ` + tripColumns + ` FROM trips WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}
	return result, nil
}

// GetStored retrieves a trip and its raw document by primary key.
func (r *pgTripRepo) GetStored(ctx context.Context, id uuid.UUID) (domain.StoredTrip, error) {
	const q = `SELECT ` + tripColumns + ` FROM trips WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanStored(row)
	if err != nil {
		return domain.StoredTrip{}, fmt.Errorf("repo.TripRepo.GetStored: %w", err)
	}
	return result, nil
}

// ListPaged returns one page of trips ordered by created_at descending.
// The total comes from a window count so one round trip serves both.
func (r *pgTripRepo) ListPaged(ctx context.Context, p domain.PaginationParams) (domain.Page[domain.Trip], error) {
	const q = `
		SELECT ` + tripColumns + `, count(*) OVER () AS total
		FROM trips
		ORDER BY created_at DESC, id
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"limit": p.Limit, "offset": p.Offset()})
	if err != nil {
		return domain.Page[domain.Trip]{}, fmt.Errorf("repo.TripRepo.ListPaged: %w", err)
	}
	defer rows.Close()

	page := domain.Page[domain.Trip]{Items: []domain.Trip{}}
	for rows.Next() {
		var total int64
		t, err := scanTrip(rows, &total)
		if err != nil {
			return domain.Page[domain.Trip]{}, fmt.Errorf("repo.TripRepo.ListPaged: scan: %w", err)
		}
		page.Items = append(page.Items, t)
		page.Total = total
	}
	if err := rows.Err(); err != nil {
		return domain.Page[domain.Trip]{}, fmt.Errorf("repo.TripRepo.ListPaged: rows: %w", err)
	}

	// An offset past the end returns no rows and therefore no window count.
	if len(page.Items) == 0 && p.Offset() > 0 {
		if err := r.db.QueryRow(ctx, `SELECT count(*) FROM trips`).Scan(&page.Total); err != nil {
			return domain.Page[domain.Trip]{}, fmt.Errorf("repo.TripRepo.ListPaged: count: %w", err)
		}
	}
	return page, nil
}

// Update writes the trip document if the stored version matches.
func (r *pgTripRepo) Update(ctx context.Context, trip domain.Trip, expectedVersion int64) (domain.Trip, error) {
	const q = `
		UPDATE trips
		SET doc        = @doc,
		    version    = version + 1,
		    updated_at = now()
		WHERE id = @id AND version = @version
		RETURNING ` + tripColumns

	doc, err := toDocument(trip)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Update: %w", err)
	}

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": trip.ID, "doc": doc, "version": expectedVersion})
	result, err := scanTrip(row)
	if errors.Is(err, domain.ErrNotFound) {
		err = r.missOrConflict(ctx, trip.ID)
	}
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Update: %w", err)
	}
	return result, nil
}

// Delete removes a trip by primary key. Its backups are kept.
func (r *pgTripRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM trips WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.TripRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// ListAgendas returns the raw agenda of every trip, oldest first.
func (r *pgTripRepo) ListAgendas(ctx context.Context) ([]domain.AgendaDocument, error) {
	const q = `
		SELECT id, version, COALESCE(doc->'agenda', '[]'::jsonb)
		FROM trips
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.ListAgendas: %w", err)
	}
	defer rows.Close()

	docs := []domain.AgendaDocument{}
	for rows.Next() {
		var (
			id  pgtype.UUID
			doc domain.AgendaDocument
		)
		if err := rows.Scan(&id, &doc.Version, &doc.Agenda); err != nil {
			return nil, fmt.Errorf("repo.TripRepo.ListAgendas: scan: %w", err)
		}
		doc.TripID = uuid.UUID(id.Bytes)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.TripRepo.ListAgendas: rows: %w", err)
	}
	return docs, nil
}

// ReplaceAgenda overwrites only the agenda key of the stored document.
func (r *pgTripRepo) ReplaceAgenda(ctx context.Context, id uuid.UUID, expectedVersion int64, agenda json.RawMessage) error {
	const q = `
		UPDATE trips
		SET doc        = jsonb_set(doc, '{agenda}', @agenda::jsonb),
		    version    = version + 1,
		    updated_at = now()
		WHERE id = @id AND version = @version`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id, "version": expectedVersion, "agenda": string(agenda)})
	if err != nil {
		return fmt.Errorf("repo.TripRepo.ReplaceAgenda: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripRepo.ReplaceAgenda: %w", r.missOrConflict(ctx, id))
	}
	return nil
}

// missOrConflict tells apart the two reasons a versioned write matched no row.
func (r *pgTripRepo) missOrConflict(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM trips WHERE id = @id)`, pgx.NamedArgs{"id": id}).Scan(&exists)
	switch {
	case err != nil:
		return err
	case exists:
		return domain.ErrConflict
	default:
		return domain.ErrNotFound
	}
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scanTrip to be
// reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanTrip maps a single database row into a domain.Trip. extra receives any
// columns selected after the standard trip columns.
func scanTrip(s scanner, extra ...any) (domain.Trip, error) {
	stored, err := scanStored(s, extra...)
	return stored.Trip, err
}

// scanStored is scanTrip that also keeps the raw doc column.
func scanStored(s scanner, extra ...any) (domain.StoredTrip, error) {
	var (
		id        pgtype.UUID
		doc       []byte
		version   int64
		createdAt time.Time
		updatedAt time.Time
	)

	dest := append([]any{&id, &doc, &version, &createdAt, &updatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StoredTrip{}, domain.ErrNotFound
		}
		return domain.StoredTrip{}, err
	}

	trip, err := fromDocument(doc, uuid.UUID(id.Bytes), version, createdAt, updatedAt)
	if err != nil {
		return domain.StoredTrip{}, err
	}
	return domain.StoredTrip{Trip: trip, Document: doc}, nil
}
