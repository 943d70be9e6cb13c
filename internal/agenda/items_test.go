package agenda_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incentive-trips/backend/internal/agenda"
	"github.com/incentive-trips/backend/internal/domain"
)

// ---- helpers ---------------------------------------------------------------

func ptr[T any](v T) *T { return &v }

func text(v string) domain.Detail { return domain.Detail{Type: "Text", Value: v} }

func titles(items []domain.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Title
	}
	return out
}

// storedItems is a day's worth of items as they come back from the store.
func storedItems() []domain.Item {
	return []domain.Item{
		{ID: domain.NumericItemID(101), Time: "09:00", Title: "Breakfast", Category: "meal", Details: []domain.Detail{text("A")}},
		{Time: "12:30", Title: "Lunch", Category: "meal", Details: []domain.Detail{text("Terrace")}},
		{ID: domain.StringItemID("gala"), Time: "19:00", Title: "Gala dinner", Note: map[string]any{"dress": "black tie"}},
	}
}

// ---- MergeItems --------------------------------------------------------------

func TestMergeItems_MatchByIDMergesInPlace(t *testing.T) {
	in := []domain.ItemPatch{{ID: domain.NumericItemID(101), Title: ptr("Breakfast buffet")}}

	got := agenda.MergeItems(in, storedItems(), agenda.DefaultOptions())

	require.Len(t, got, 3)
	assert.Equal(t, []string{"Breakfast buffet", "Lunch", "Gala dinner"}, titles(got))
	assert.Equal(t, "09:00", got[0].Time, "absent fields keep stored values")
}

func TestMergeItems_UnknownIDInsertedAtCursor(t *testing.T) {
	in := []domain.ItemPatch{
		{ID: domain.NumericItemID(101)},
		{ID: domain.NumericItemID(555), Title: ptr("Coffee"), Time: ptr("10:30")},
	}

	got := agenda.MergeItems(in, storedItems(), agenda.DefaultOptions())

	assert.Equal(t, []string{"Breakfast", "Coffee", "Lunch", "Gala dinner"}, titles(got))
	assert.Equal(t, domain.NumericItemID(555), got[1].ID)
}

func TestMergeItems_NewItemsFirstInPayloadGoFirst(t *testing.T) {
	in := []domain.ItemPatch{{Title: ptr("Welcome drink"), Time: ptr("08:00")}}

	got := agenda.MergeItems(in, storedItems(), agenda.DefaultOptions())

	assert.Equal(t, []string{"Welcome drink", "Breakfast", "Lunch", "Gala dinner"}, titles(got))
}

func TestMergeItems_HeuristicMatchIsCaseInsensitive(t *testing.T) {
	in := []domain.ItemPatch{{Title: ptr("LUNCH"), Time: ptr("12:30"), Details: []domain.Detail{text("Sea view")}}}

	got := agenda.MergeItems(in, storedItems(), agenda.DefaultOptions())

	require.Len(t, got, 3)
	assert.Equal(t, "LUNCH", got[1].Title)
	assert.Equal(t, []domain.Detail{text("Terrace"), text("Sea view")}, got[1].Details)
}

func TestMergeItems_HeuristicMatchOnlyConsidersUnmatchedItems(t *testing.T) {
	in := []domain.ItemPatch{
		{Title: ptr("Lunch"), Time: ptr("12:30")},
		{Title: ptr("Lunch"), Time: ptr("12:30"), Category: ptr("second sitting")},
	}

	got := agenda.MergeItems(in, storedItems(), agenda.DefaultOptions())

	require.Len(t, got, 4)
	assert.Equal(t, []string{"Breakfast", "Lunch", "Lunch", "Gala dinner"}, titles(got))
	assert.Equal(t, "meal", got[1].Category)
	assert.Equal(t, "second sitting", got[2].Category)
}

func TestMergeItems_HeuristicDisabledInsertsIDlessItems(t *testing.T) {
	in := []domain.ItemPatch{{Title: ptr("Lunch"), Time: ptr("12:30")}}

	got := agenda.MergeItems(in, storedItems(), agenda.Options{HeuristicMatch: false})

	assert.Equal(t, []string{"Lunch", "Breakfast", "Lunch", "Gala dinner"}, titles(got))
}

func TestMergeItems_PreservesRelativeOrderOfStoredItems(t *testing.T) {
	// Payload lists stored items out of order; merging must not reorder them.
	in := []domain.ItemPatch{
		{ID: domain.StringItemID("gala"), Title: ptr("Gala")},
		{Title: ptr("Night cap"), Time: ptr("23:00")},
		{ID: domain.NumericItemID(101), Title: ptr("Early breakfast")},
		{Title: ptr("Check-out"), Time: ptr("10:00")},
	}

	got := agenda.MergeItems(in, storedItems(), agenda.DefaultOptions())

	assert.Equal(t, []string{"Early breakfast", "Check-out", "Lunch", "Gala", "Night cap"}, titles(got))
}

func TestMergeItems_IdentityStableAcrossRequests(t *testing.T) {
	opts := agenda.DefaultOptions()
	in := []domain.ItemPatch{{Title: ptr("City tour"), Time: ptr("15:00"), Details: []domain.Detail{text("Bus")}}}

	first := agenda.MergeItems(in, storedItems(), opts)
	second := agenda.MergeItems(in, first, opts)

	assert.Len(t, first, 4)
	assert.Equal(t, first, second, "resubmitting the same id-less item must not duplicate it")
}

func TestMergeItems_DoesNotModifyExisting(t *testing.T) {
	existing := storedItems()
	in := []domain.ItemPatch{
		{ID: domain.NumericItemID(101), Details: []domain.Detail{text("B")}},
		{ID: domain.StringItemID("gala"), Note: map[string]any{"dress": "smart"}},
	}

	agenda.MergeItems(in, existing, agenda.DefaultOptions())

	assert.Equal(t, storedItems(), existing)
}

// ---- MergeItem (field policy) -----------------------------------------------

func TestMergeItem_SkipsNullFields(t *testing.T) {
	base := storedItems()[0]
	var in domain.ItemPatch
	require.NoError(t, json.Unmarshal([]byte(`{"id":101,"time":null,"category":null,"details":null,"note":null,"images":null}`), &in))

	got := agenda.MergeItem(base, in)

	assert.Equal(t, base, got)
}

func TestMergeItem_FieldPreservation(t *testing.T) {
	base := domain.Item{
		ID:              domain.NumericItemID(7),
		Time:            "14:00",
		Category:        "activity",
		Title:           "Kayak",
		Description:     "Harbour paddle",
		LongDescription: "Two hours along the harbour",
		Images:          []string{"a.jpg", "b.jpg"},
		ImageCaption:    "The harbour",
		Note:            map[string]any{"guide": "Ana"},
		Details:         []domain.Detail{text("Bring a towel")},
	}

	got := agenda.MergeItem(base, domain.ItemPatch{Title: ptr("X")})

	want := base
	want.Title = "X"
	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)
	gotJSON, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, string(wantJSON), string(gotJSON))
}

func TestMergeItem_NoteShallowMerge(t *testing.T) {
	base := domain.Item{Note: map[string]any{"dress": "black tie", "host": "CEO"}}
	in := domain.ItemPatch{Note: map[string]any{"dress": "smart", "host": nil, "music": "jazz"}}

	got := agenda.MergeItem(base, in)

	assert.Equal(t, map[string]any{"dress": "smart", "host": "CEO", "music": "jazz"}, got.Note)
	assert.Equal(t, "black tie", base.Note["dress"], "base note is not modified")
}

func TestMergeItem_DetailsUnion(t *testing.T) {
	base := domain.Item{Details: []domain.Detail{text("A"), {Type: "Price", Value: "10"}}}
	in := domain.ItemPatch{Details: []domain.Detail{text("C"), text("A"), text("B"), text("C")}}

	got := agenda.MergeItem(base, in)

	assert.Equal(t, []domain.Detail{text("A"), {Type: "Price", Value: "10"}, text("C"), text("B")}, got.Details)
}

func TestMergeItem_EmptyDetailsKeepsStored(t *testing.T) {
	base := domain.Item{Details: []domain.Detail{text("A"), text("B")}}

	got := agenda.MergeItem(base, domain.ItemPatch{Details: []domain.Detail{}})

	assert.Equal(t, base.Details, got.Details)
}

func TestMergeItem_OverwritesArraysAndScalars(t *testing.T) {
	base := domain.Item{Images: []string{"a.jpg"}, Description: "old"}

	got := agenda.MergeItem(base, domain.ItemPatch{Images: []string{}, Description: ptr("")})

	assert.Empty(t, got.Images)
	assert.NotNil(t, got.Images)
	assert.Equal(t, "", got.Description)
}

// TestMergeItem_MonotonicDetails checks that no combination of stored and
// incoming details yields fewer details than were stored.
func TestMergeItem_MonotonicDetails(t *testing.T) {
	pool := []domain.Detail{text("A"), text("B"), {Type: "Price", Value: "1"}, {Type: "Object", Value: "{}"}}
	subsets := func() [][]domain.Detail {
		var out [][]domain.Detail
		for mask := 0; mask < 1<<len(pool); mask++ {
			var s []domain.Detail
			for i, d := range pool {
				if mask&(1<<i) != 0 {
					s = append(s, d)
				}
			}
			out = append(out, s)
		}
		return out
	}()

	for _, stored := range subsets {
		for _, incoming := range subsets {
			in := domain.ItemPatch{Details: append([]domain.Detail{}, incoming...)}
			got := agenda.MergeItem(domain.Item{Details: stored}, in)
			assert.GreaterOrEqual(t, len(got.Details), len(stored))
		}
	}
}
