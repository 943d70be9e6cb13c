package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/incentive-trips/backend/internal/domain"
)

// MemoryStore is an in-process TripRepo and BackupRepo. Documents are held as
// encoded JSON, the same as in Postgres, so reads go through the same decode
// and detail normalization path.
type MemoryStore struct {
	mu      sync.RWMutex
	trips   map[uuid.UUID]*memTrip
	order   []uuid.UUID // creation order
	backups map[uuid.UUID][]memBackup
	now     func() time.Time
}

type memTrip struct {
	doc       []byte
	version   int64
	createdAt time.Time
	updatedAt time.Time
}

type memBackup struct {
	version    int64
	snapshot   []byte
	backedUpAt time.Time
}

var (
	_ TripRepo   = (*MemoryStore)(nil)
	_ BackupRepo = (*MemoryStore)(nil)
)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trips:   make(map[uuid.UUID]*memTrip),
		backups: make(map[uuid.UUID][]memBackup),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ImportDocument stores a raw trip document under id at version 1, as a data
// migration would. The document is not validated or normalized.
func (s *MemoryStore) ImportDocument(id uuid.UUID, doc []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if _, ok := s.trips[id]; !ok {
		s.order = append(s.order, id)
	}
	s.trips[id] = &memTrip{doc: slices.Clone(doc), version: 1, createdAt: now, updatedAt: now}
}

// ---- TripRepo ----------------------------------------------------------------

func (s *MemoryStore) Create(_ context.Context, trip domain.Trip) (domain.Trip, error) {
	doc, err := toDocument(trip)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.MemoryStore.Create: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	now := s.now()
	t := &memTrip{doc: doc, version: 1, createdAt: now, updatedAt: now}
	s.trips[id] = t
	s.order = append(s.order, id)
	return t.decode(id, "repo.MemoryStore.Create")
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (domain.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trips[id]
	if !ok {
		return domain.Trip{}, fmt.Errorf("repo.MemoryStore.GetByID: %w", domain.ErrNotFound)
	}
	return t.decode(id, "repo.MemoryStore.GetByID")
}

func (s *MemoryStore) GetStored(_ context.Context, id uuid.UUID) (domain.StoredTrip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trips[id]
	if !ok {
		return domain.StoredTrip{}, fmt.Errorf("repo.MemoryStore.GetStored: %w", domain.ErrNotFound)
	}
	trip, err := t.decode(id, "repo.MemoryStore.GetStored")
	if err != nil {
		return domain.StoredTrip{}, err
	}
	return domain.StoredTrip{Trip: trip, Document: slices.Clone(t.doc)}, nil
}

// ListPaged returns trips newest first, matching the Postgres ordering.
func (s *MemoryStore) ListPaged(_ context.Context, p domain.PaginationParams) (domain.Page[domain.Trip], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	page := domain.Page[domain.Trip]{Items: []domain.Trip{}, Total: int64(len(s.order))}
	for i := len(s.order) - 1 - p.Offset(); i >= 0 && len(page.Items) < p.Limit; i-- {
		id := s.order[i]
		t, err := s.trips[id].decode(id, "repo.MemoryStore.ListPaged")
		if err != nil {
			return domain.Page[domain.Trip]{}, err
		}
		page.Items = append(page.Items, t)
	}
	return page, nil
}

func (s *MemoryStore) Update(_ context.Context, trip domain.Trip, expectedVersion int64) (domain.Trip, error) {
	doc, err := toDocument(trip)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.MemoryStore.Update: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.versioned(trip.ID, expectedVersion)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.MemoryStore.Update: %w", err)
	}
	t.doc = doc
	t.version++
	t.updatedAt = s.now()
	return t.decode(trip.ID, "repo.MemoryStore.Update")
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trips[id]; !ok {
		return fmt.Errorf("repo.MemoryStore.Delete: %w", domain.ErrNotFound)
	}
	delete(s.trips, id)
	s.order = slices.DeleteFunc(s.order, func(o uuid.UUID) bool { return o == id })
	return nil
}

func (s *MemoryStore) ListAgendas(_ context.Context) ([]domain.AgendaDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]domain.AgendaDocument, 0, len(s.order))
	for _, id := range s.order {
		t := s.trips[id]
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(t.doc, &fields); err != nil {
			return nil, fmt.Errorf("repo.MemoryStore.ListAgendas: %s: %w", id, err)
		}
		agenda := fields["agenda"]
		if len(agenda) == 0 || string(agenda) == "null" {
			agenda = json.RawMessage(`[]`)
		}
		docs = append(docs, domain.AgendaDocument{TripID: id, Version: t.version, Agenda: slices.Clone(agenda)})
	}
	return docs, nil
}

func (s *MemoryStore) ReplaceAgenda(_ context.Context, id uuid.UUID, expectedVersion int64, agenda json.RawMessage) error {
	if !json.Valid(agenda) {
		return fmt.Errorf("repo.MemoryStore.ReplaceAgenda: invalid agenda JSON")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.versioned(id, expectedVersion)
	if err != nil {
		return fmt.Errorf("repo.MemoryStore.ReplaceAgenda: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(t.doc, &fields); err != nil {
		return fmt.Errorf("repo.MemoryStore.ReplaceAgenda: %w", err)
	}
	fields["agenda"] = slices.Clone(agenda)
	doc, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("repo.MemoryStore.ReplaceAgenda: %w", err)
	}
	t.doc = doc
	t.version++
	t.updatedAt = s.now()
	return nil
}

// versioned returns the stored trip if its version matches. Callers hold mu.
func (s *MemoryStore) versioned(id uuid.UUID, expectedVersion int64) (*memTrip, error) {
	t, ok := s.trips[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if t.version != expectedVersion {
		return nil, domain.ErrConflict
	}
	return t, nil
}

func (t *memTrip) decode(id uuid.UUID, op string) (domain.Trip, error) {
	trip, err := fromDocument(t.doc, id, t.version, t.createdAt, t.updatedAt)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("%s: %w", op, err)
	}
	return trip, nil
}

// ---- BackupRepo --------------------------------------------------------------

func (s *MemoryStore) Append(_ context.Context, b domain.Backup) error {
	if !json.Valid(b.Snapshot) {
		return fmt.Errorf("repo.MemoryStore.Append: snapshot is not valid JSON")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	at := b.BackedUpAt
	if at.IsZero() {
		at = s.now()
	}
	s.backups[b.TripID] = append(s.backups[b.TripID], memBackup{
		version:    b.Version,
		snapshot:   slices.Clone(b.Snapshot),
		backedUpAt: at,
	})
	return nil
}

func (s *MemoryStore) ListByTrip(_ context.Context, tripID uuid.UUID) ([]domain.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.backups[tripID]
	out := make([]domain.Backup, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		out = append(out, domain.Backup{
			TripID:     tripID,
			Version:    stored[i].version,
			BackedUpAt: stored[i].backedUpAt,
			Snapshot:   slices.Clone(stored[i].snapshot),
		})
	}
	return out, nil
}
