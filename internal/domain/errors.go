package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the store.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. missing trip name, duplicate day numbers).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrConflict is returned when a write loses a race: the stored version moved
// on since it was read, or the per-trip lock could not be acquired in time.
// Handlers should map this to HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrDeletionGuard is returned when a merged agenda would drop detail entries.
// The concrete error is always a *DeletionGuardError carrying diagnostics.
var ErrDeletionGuard = errors.New("deletion guard")

// DetailDeletion describes one item whose details would shrink.
// Idx is the item's index within its day before the merge.
type DetailDeletion struct {
	Day           int    `json:"day"`
	Idx           int    `json:"idx"`
	ID            ItemID `json:"id"`
	OldDetailsLen int    `json:"oldDetailsLen"`
	NewDetailsLen int    `json:"newDetailsLen"`
}

// DeletionGuardError rejects an update as a whole and lists every offending item.
type DeletionGuardError struct {
	Deletions []DetailDeletion
}

func (e *DeletionGuardError) Error() string {
	return fmt.Sprintf("%s: update would remove details from %d item(s)", ErrDeletionGuard, len(e.Deletions))
}

// Unwrap lets errors.Is(err, ErrDeletionGuard) match.
func (e *DeletionGuardError) Unwrap() error { return ErrDeletionGuard }
