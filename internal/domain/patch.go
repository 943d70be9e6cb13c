package domain

// TripPatch is a partial trip update as sent by the admin dashboard.
//
// Nil pointers and nil slices mean the field was absent or null in the
// payload; such fields never overwrite stored values. An explicitly empty
// slice (JSON []) is present and non-nil.
type TripPatch struct {
	// Version, when set, must equal the stored version or the update is
	// rejected with ErrConflict before any merge work happens.
	Version *int64 `json:"version"`

	Name        *string `json:"name"`
	Destination *string `json:"destination"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
	Description *string `json:"description"`
	CoverImage  *string `json:"coverImage"`

	Agenda []DayPatch `json:"agenda"`
}

// TouchesAgenda reports whether the payload carried an agenda at all.
func (p TripPatch) TouchesAgenda() bool {
	return p.Agenda != nil
}

// DayPatch is a partial day. Day may be omitted, in which case the day's
// position in the incoming agenda (plus one) is used as its number.
type DayPatch struct {
	Day   *int        `json:"day"`
	Title *string     `json:"title"`
	Date  *string     `json:"date"`
	Items []ItemPatch `json:"items"`
}

// Number returns the day number this patch addresses.
func (p DayPatch) Number(position int) int {
	if p.Day != nil {
		return *p.Day
	}
	return position + 1
}

// ItemPatch is a partial agenda item.
type ItemPatch struct {
	ID              ItemID         `json:"id"`
	Time            *string        `json:"time"`
	Category        *string        `json:"category"`
	Title           *string        `json:"title"`
	Description     *string        `json:"description"`
	LongDescription *string        `json:"longDescription"`
	Images          []string       `json:"images"`
	ImageCaption    *string        `json:"imageCaption"`
	Note            map[string]any `json:"note"`
	Details         []Detail       `json:"details"`
}

// TitleOrEmpty returns the incoming title or "". Together with TimeOrEmpty it
// forms the heuristic identity of an item sent without an id.
func (p ItemPatch) TitleOrEmpty() string { return deref(p.Title) }

// TimeOrEmpty returns the incoming time or "".
func (p ItemPatch) TimeOrEmpty() string { return deref(p.Time) }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
