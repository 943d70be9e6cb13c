package agenda

import (
	"github.com/incentive-trips/backend/internal/domain"
)

// ApplyPatch returns a new trip with the patch merged onto current. Trip-level
// fields follow the skip-null rule; the agenda is merged only when the patch
// carries one. current is not modified.
func ApplyPatch(current domain.Trip, patch domain.TripPatch, opts Options) domain.Trip {
	next := current.Clone()

	overwrite(&next.Name, patch.Name)
	overwrite(&next.Destination, patch.Destination)
	overwrite(&next.StartDate, patch.StartDate)
	overwrite(&next.EndDate, patch.EndDate)
	overwrite(&next.Description, patch.Description)
	overwrite(&next.CoverImage, patch.CoverImage)

	if patch.TouchesAgenda() {
		next.Agenda = MergeAgenda(current.Agenda, patch.Agenda, opts)
	}
	return next
}
