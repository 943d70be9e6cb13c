package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Backup is a pre-merge snapshot of a trip. Backups are append-only: nothing
// in this service overwrites or prunes them.
//
// Snapshot is the stored document byte for byte, so detail entries keep
// whatever historical shape they had. Version is the trip version it was
// taken at.
type Backup struct {
	TripID     uuid.UUID       `json:"tripId"`
	Version    int64           `json:"version"`
	BackedUpAt time.Time       `json:"backedUpAt"`
	Snapshot   json.RawMessage `json:"snapshot"`
}

// StoredTrip is a decoded trip together with the document it was decoded
// from.
type StoredTrip struct {
	Trip     Trip
	Document json.RawMessage
}

// AgendaDocument is a trip's agenda exactly as stored, without decoding.
// The offline normalization tool works on this form so it can see detail
// entries in their historical shapes.
type AgendaDocument struct {
	TripID  uuid.UUID
	Version int64
	Agenda  json.RawMessage
}

// DetailChange is one detail entry that normalization would rewrite.
// Before holds the stored entry as compact JSON.
type DetailChange struct {
	Day         int    `json:"day" yaml:"day"`
	ItemIndex   int    `json:"itemIndex" yaml:"itemIndex"`
	ItemID      ItemID `json:"itemId" yaml:"itemId"`
	ItemTitle   string `json:"itemTitle" yaml:"itemTitle"`
	DetailIndex int    `json:"detailIndex" yaml:"detailIndex"`
	Before      string `json:"before" yaml:"before"`
	After       Detail `json:"after" yaml:"after"`
}

// TripNormalization collects the detail changes for one trip. Agenda is the
// fully normalized agenda to write back in apply mode.
type TripNormalization struct {
	TripID  uuid.UUID       `json:"tripId" yaml:"tripId"`
	Version int64           `json:"version" yaml:"version"`
	Changes []DetailChange  `json:"changes" yaml:"changes"`
	Agenda  json.RawMessage `json:"-" yaml:"-"`
}

// NormalizationFailure records a trip the tool could not process.
type NormalizationFailure struct {
	TripID uuid.UUID `json:"tripId" yaml:"tripId"`
	Error  string    `json:"error" yaml:"error"`
}

// NormalizationReport is the artifact written by the detail normalization tool.
type NormalizationReport struct {
	GeneratedAt  time.Time              `json:"generatedAt" yaml:"generatedAt"`
	Applied      bool                   `json:"applied" yaml:"applied"`
	TripsScanned int                    `json:"tripsScanned" yaml:"tripsScanned"`
	Trips        []TripNormalization    `json:"trips" yaml:"trips"`
	Updated      []uuid.UUID            `json:"updated,omitempty" yaml:"updated,omitempty"`
	Failures     []NormalizationFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// ChangeCount returns the number of detail entries the report rewrites.
func (r NormalizationReport) ChangeCount() int {
	n := 0
	for _, t := range r.Trips {
		n += len(t.Changes)
	}
	return n
}
