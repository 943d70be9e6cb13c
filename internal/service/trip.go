// Package service contains the business logic for the trip agenda API.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL lives here; services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/incentive-trips/backend/internal/agenda"
	"github.com/incentive-trips/backend/internal/domain"
	"github.com/incentive-trips/backend/internal/errlog"
	"github.com/incentive-trips/backend/internal/lock"
	"github.com/incentive-trips/backend/internal/repo"
)

// Options tunes the update pipeline.
type Options struct {
	Agenda agenda.Options

	// BackupRequired makes a failed pre-merge backup abort the write. When
	// false the failure is logged and the write goes ahead.
	BackupRequired bool

	// LockWait bounds how long a write waits for the per-trip lock.
	LockWait time.Duration
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Agenda:         agenda.DefaultOptions(),
		BackupRequired: true,
		LockWait:       5 * time.Second,
	}
}

// TripService implements business logic for trips and owns the update
// pipeline: lock, read, merge, guard, backup, persist.
type TripService struct {
	trips   repo.TripRepo
	backups repo.BackupRepo
	locker  lock.Locker
	errs    *errlog.Log
	log     *slog.Logger
	opts    Options
	now     func() time.Time
}

// NewTripService constructs a TripService. errs receives guard rejections,
// backup failures and persistence errors in addition to the returned error.
func NewTripService(trips repo.TripRepo, backups repo.BackupRepo, locker lock.Locker, errs *errlog.Log, log *slog.Logger, opts Options) *TripService {
	return &TripService{
		trips:   trips,
		backups: backups,
		locker:  locker,
		errs:    errs,
		log:     log,
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and persists a new trip.
func (s *TripService) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	if err := validateTrip(trip); err != nil {
		return domain.Trip{}, err
	}
	result, err := s.trips.Create(ctx, trip)
	if err != nil {
		s.recordPersistence(ctx, "trip.create", uuid.Nil, err)
		return domain.Trip{}, fmt.Errorf("service.TripService.Create: %w", err)
	}
	return result, nil
}

// GetByID returns a single trip by ID.
func (s *TripService) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	result, err := s.trips.GetByID(ctx, id)
	if err != nil {
		s.recordPersistence(ctx, "trip.get", id, err)
		return domain.Trip{}, fmt.Errorf("service.TripService.GetByID: %w", err)
	}
	return result, nil
}

// List returns one page of trips, newest first.
// Items is always non-nil so callers can safely range over it.
func (s *TripService) List(ctx context.Context, p domain.PaginationParams) (domain.Page[domain.Trip], error) {
	page, err := s.trips.ListPaged(ctx, p)
	if err != nil {
		s.recordPersistence(ctx, "trip.list", uuid.Nil, err)
		return domain.Page[domain.Trip]{}, fmt.Errorf("service.TripService.List: %w", err)
	}
	if page.Items == nil {
		page.Items = []domain.Trip{}
	}
	return page, nil
}

// Update merges patch onto the stored trip and persists the result.
//
// The merged agenda is checked by the deletion guard before anything is
// written; a rejection returns a *domain.DeletionGuardError and leaves the
// store untouched. On success the previous state is backed up first, then the
// new state is written with a version check.
func (s *TripService) Update(ctx context.Context, id uuid.UUID, patch domain.TripPatch) (domain.Trip, error) {
	if err := validatePatch(patch); err != nil {
		return domain.Trip{}, err
	}

	unlock, err := s.lockTrip(ctx, id)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Update: %w", err)
	}
	defer unlock()

	stored, err := s.load(ctx, "trip.update", id)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Update: %w", err)
	}
	current := stored.Trip
	if patch.Version != nil && *patch.Version != current.Version {
		return domain.Trip{}, fmt.Errorf("service.TripService.Update: %w: version %d is stale, current is %d",
			domain.ErrConflict, *patch.Version, current.Version)
	}

	next := agenda.ApplyPatch(current, patch, s.opts.Agenda)
	if patch.StartDate != nil || patch.EndDate != nil {
		if err := validateDates(next); err != nil {
			return domain.Trip{}, err
		}
	}

	if patch.TouchesAgenda() {
		if deletions := agenda.CheckDeletions(current.Agenda, next.Agenda, patch.Agenda, s.opts.Agenda); len(deletions) > 0 {
			gerr := &domain.DeletionGuardError{Deletions: deletions}
			s.log.WarnContext(ctx, "update rejected by deletion guard",
				"trip_id", id, "items", len(deletions))
			s.errs.Record(ctx, "trip.update.deletion_guard", gerr,
				slog.String("trip_id", id.String()),
				slog.Any("deletions", deletions))
			return domain.Trip{}, fmt.Errorf("service.TripService.Update: %w", gerr)
		}
	}

	result, err := s.commit(ctx, "trip.update", stored, next)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Update: %w", err)
	}
	return result, nil
}

// DeleteDay removes one agenda day. Explicit deletions bypass the deletion
// guard but are backed up like any other write.
func (s *TripService) DeleteDay(ctx context.Context, id uuid.UUID, day int) (domain.Trip, error) {
	result, err := s.edit(ctx, "trip.delete_day", id, func(t *domain.Trip) error {
		i := slices.IndexFunc(t.Agenda, func(d domain.Day) bool { return d.Day == day })
		if i < 0 {
			return fmt.Errorf("%w: day %d", domain.ErrNotFound, day)
		}
		t.Agenda = slices.Delete(t.Agenda, i, i+1)
		return nil
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.DeleteDay: %w", err)
	}
	return result, nil
}

// DeleteItem removes one item, addressed by id, from an agenda day.
func (s *TripService) DeleteItem(ctx context.Context, id uuid.UUID, day int, itemID domain.ItemID) (domain.Trip, error) {
	result, err := s.edit(ctx, "trip.delete_item", id, func(t *domain.Trip) error {
		i := slices.IndexFunc(t.Agenda, func(d domain.Day) bool { return d.Day == day })
		if i < 0 {
			return fmt.Errorf("%w: day %d", domain.ErrNotFound, day)
		}
		items := t.Agenda[i].Items
		j := slices.IndexFunc(items, func(it domain.Item) bool { return it.ID.Equal(itemID) })
		if j < 0 {
			return fmt.Errorf("%w: item %s on day %d", domain.ErrNotFound, itemID, day)
		}
		t.Agenda[i].Items = slices.Delete(items, j, j+1)
		return nil
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.DeleteItem: %w", err)
	}
	return result, nil
}

// Delete removes a trip. Its backups are kept.
func (s *TripService) Delete(ctx context.Context, id uuid.UUID) error {
	unlock, err := s.lockTrip(ctx, id)
	if err != nil {
		return fmt.Errorf("service.TripService.Delete: %w", err)
	}
	defer unlock()

	stored, err := s.load(ctx, "trip.delete", id)
	if err != nil {
		return fmt.Errorf("service.TripService.Delete: %w", err)
	}
	if err := s.backup(ctx, "trip.delete", stored); err != nil {
		return fmt.Errorf("service.TripService.Delete: %w", err)
	}
	if err := s.trips.Delete(ctx, id); err != nil {
		s.recordPersistence(ctx, "trip.delete", id, err)
		return fmt.Errorf("service.TripService.Delete: %w", err)
	}
	return nil
}

// ListBackups returns a trip's snapshots, newest first. Backups of deleted
// trips are still listed.
func (s *TripService) ListBackups(ctx context.Context, id uuid.UUID) ([]domain.Backup, error) {
	backups, err := s.backups.ListByTrip(ctx, id)
	if err != nil {
		s.recordPersistence(ctx, "trip.list_backups", id, err)
		return nil, fmt.Errorf("service.TripService.ListBackups: %w", err)
	}
	if backups == nil {
		return []domain.Backup{}, nil
	}
	return backups, nil
}

// ---- pipeline ----------------------------------------------------------------

// edit runs fn on a copy of the stored trip under the trip lock and commits
// the result.
func (s *TripService) edit(ctx context.Context, op string, id uuid.UUID, fn func(*domain.Trip) error) (domain.Trip, error) {
	unlock, err := s.lockTrip(ctx, id)
	if err != nil {
		return domain.Trip{}, err
	}
	defer unlock()

	stored, err := s.load(ctx, op, id)
	if err != nil {
		return domain.Trip{}, err
	}
	next := stored.Trip.Clone()
	if err := fn(&next); err != nil {
		return domain.Trip{}, err
	}
	return s.commit(ctx, op, stored, next)
}

// load reads the trip a write starts from, with its stored document for the
// backup.
func (s *TripService) load(ctx context.Context, op string, id uuid.UUID) (domain.StoredTrip, error) {
	stored, err := s.trips.GetStored(ctx, id)
	if err != nil {
		s.recordPersistence(ctx, op, id, err)
		return domain.StoredTrip{}, err
	}
	return stored, nil
}

// commit backs up current and writes next, expecting current's version.
func (s *TripService) commit(ctx context.Context, op string, current domain.StoredTrip, next domain.Trip) (domain.Trip, error) {
	if err := s.backup(ctx, op, current); err != nil {
		return domain.Trip{}, err
	}

	result, err := s.trips.Update(ctx, next, current.Trip.Version)
	if err != nil {
		s.recordPersistence(ctx, op, current.Trip.ID, err)
		return domain.Trip{}, err
	}
	s.log.InfoContext(ctx, "trip written", "op", op, "trip_id", result.ID, "version", result.Version)
	return result, nil
}

// backup snapshots the stored document as it is before a write. Failure
// aborts the write unless backups are configured as best effort.
func (s *TripService) backup(ctx context.Context, op string, stored domain.StoredTrip) error {
	current := stored.Trip
	err := s.backups.Append(ctx, domain.Backup{
		TripID:     current.ID,
		Version:    current.Version,
		BackedUpAt: s.now(),
		Snapshot:   stored.Document,
	})
	if err == nil {
		return nil
	}

	s.errs.Record(ctx, op+".backup", err, slog.String("trip_id", current.ID.String()))
	if s.opts.BackupRequired {
		return fmt.Errorf("backup: %w", err)
	}
	s.log.WarnContext(ctx, "backup failed, continuing", "op", op, "trip_id", current.ID, "error", err)
	return nil
}

// recordPersistence error-logs store failures. Not-found and version
// conflicts are outcomes, not failures, and are skipped.
func (s *TripService) recordPersistence(ctx context.Context, op string, id uuid.UUID, err error) {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) {
		return
	}
	s.errs.Record(ctx, op+".persist", err, slog.String("trip_id", id.String()))
}

// lockTrip takes the per-trip lock, waiting at most LockWait.
func (s *TripService) lockTrip(ctx context.Context, id uuid.UUID) (func(), error) {
	lctx, cancel := context.WithTimeout(ctx, s.opts.LockWait)
	defer cancel()

	unlock, err := s.locker.Lock(lctx, id.String())
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, fmt.Errorf("%w: trip %s is being edited", domain.ErrConflict, id)
		}
		return nil, err
	}
	return func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.log.WarnContext(ctx, "release trip lock", "trip_id", id, "error", err)
		}
	}, nil
}

// ---- validation --------------------------------------------------------------

const dateLayout = "2006-01-02"

// validateTrip enforces the rules for a new trip.
//   - Name must be non-empty (whitespace-only names are rejected).
//   - Dates, if set, must be YYYY-MM-DD and the end not before the start.
//   - Day numbers must be at least 1 and unique.
func validateTrip(t domain.Trip) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if err := validateDates(t); err != nil {
		return err
	}
	seen := make(map[int]bool, len(t.Agenda))
	for _, d := range t.Agenda {
		if d.Day < 1 {
			return fmt.Errorf("%w: day numbers start at 1, got %d", domain.ErrValidation, d.Day)
		}
		if seen[d.Day] {
			return fmt.Errorf("%w: day %d appears more than once", domain.ErrValidation, d.Day)
		}
		seen[d.Day] = true
	}
	return nil
}

// validatePatch rejects patches that could never produce a valid trip.
func validatePatch(p domain.TripPatch) error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", domain.ErrValidation)
	}
	for pos, d := range p.Agenda {
		if n := d.Number(pos); n < 1 {
			return fmt.Errorf("%w: day numbers start at 1, got %d", domain.ErrValidation, n)
		}
	}
	return nil
}

func validateDates(t domain.Trip) error {
	var start, end time.Time
	var err error
	if t.StartDate != "" {
		if start, err = time.Parse(dateLayout, t.StartDate); err != nil {
			return fmt.Errorf("%w: startDate must be YYYY-MM-DD", domain.ErrValidation)
		}
	}
	if t.EndDate != "" {
		if end, err = time.Parse(dateLayout, t.EndDate); err != nil {
			return fmt.Errorf("%w: endDate must be YYYY-MM-DD", domain.ErrValidation)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("%w: endDate must not be before startDate", domain.ErrValidation)
	}
	return nil
}
