// Package domain contains the core data types for the trip agenda service.
// This package has zero external dependencies beyond uuid and is imported by
// every other internal package (agenda, repo, service, handler).
package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Trip is the aggregate root edited by admins: trip-level fields plus an
// ordered agenda of days.
//
// Trips are treated as immutable values. Merges build a new Trip rather than
// mutating the stored one; see Clone.
type Trip struct {
	ID          uuid.UUID `json:"id"`
	Version     int64     `json:"version"` // bumped on every persisted write
	Name        string    `json:"name"`
	Destination string    `json:"destination,omitempty"`
	StartDate   string    `json:"startDate,omitempty"` // "2006-01-02"
	EndDate     string    `json:"endDate,omitempty"`
	Description string    `json:"description,omitempty"`
	CoverImage  string    `json:"coverImage,omitempty"`
	Agenda      []Day     `json:"agenda"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Day is one agenda day. Its identity is the 1-based Day number, never its
// position in the agenda slice.
type Day struct {
	Day   int    `json:"day"`
	Title string `json:"title"`
	Date  string `json:"date"`
	Items []Item `json:"items"`
}

// Item is one agenda entry within a day.
type Item struct {
	ID              ItemID         `json:"id,omitzero"`
	Time            string         `json:"time"`
	Category        string         `json:"category"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	LongDescription string         `json:"longDescription"`
	Images          []string       `json:"images"`
	ImageCaption    string         `json:"imageCaption"`
	Note            map[string]any `json:"note,omitempty"`
	Details         []Detail       `json:"details"`
}

// Clone returns a deep copy of the trip so callers can derive a new tree
// without touching the original.
func (t Trip) Clone() Trip {
	out := t
	out.Agenda = CloneDays(t.Agenda)
	return out
}

// CloneDays deep-copies an agenda.
func CloneDays(days []Day) []Day {
	if days == nil {
		return nil
	}
	out := make([]Day, len(days))
	for i, d := range days {
		out[i] = d.Clone()
	}
	return out
}

// Clone deep-copies a day and its items.
func (d Day) Clone() Day {
	out := d
	if d.Items == nil {
		return out
	}
	out.Items = make([]Item, len(d.Items))
	for i, it := range d.Items {
		out.Items[i] = it.Clone()
	}
	return out
}

// Clone deep-copies an item. Note values are copied one level deep; nested
// note values are JSON-decoded data and never mutated in place.
func (it Item) Clone() Item {
	out := it
	out.Images = slices.Clone(it.Images)
	if it.Note != nil {
		out.Note = make(map[string]any, len(it.Note))
		for k, v := range it.Note {
			out.Note[k] = v
		}
	}
	out.Details = slices.Clone(it.Details)
	return out
}
