package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incentive-trips/backend/internal/domain"
	"github.com/incentive-trips/backend/internal/repo"
	"github.com/incentive-trips/backend/internal/service"
)

const legacyDoc = `{"name":"Legacy","agenda":[
	{"day":1,"title":"Arrival","items":[
		{"id":101,"title":"Dinner","time":"20:00","note":{"dress":"smart"},"details":[
			"Free text",
			["a","b"],
			{"type":"Currency","value":"100 EUR"},
			{"text":"Wine","icon":"glass"}
		]},
		{"id":"x2","title":"Show","details":[{"type":"Text","value":"Fado"}]}
	]},
	{"day":2,"items":[{"title":"Tour","details":"Bus & boat"}]}
]}`

const cleanDoc = `{"name":"Clean","agenda":[{"day":1,"items":[{"id":1,"details":[{"type":"Text","value":"ok"}]}]}]}`

func TestPlanAgenda_ReportsOnlyNonCanonicalEntries(t *testing.T) {
	var doc struct{ Agenda json.RawMessage }
	require.NoError(t, json.Unmarshal([]byte(legacyDoc), &doc))
	id := uuid.New()

	plan, err := service.PlanAgenda(domain.AgendaDocument{TripID: id, Version: 3, Agenda: doc.Agenda})

	require.NoError(t, err)
	assert.Equal(t, id, plan.TripID)
	assert.Equal(t, int64(3), plan.Version)
	assert.Equal(t, []domain.DetailChange{
		{Day: 1, ItemIndex: 0, ItemID: domain.NumericItemID(101), ItemTitle: "Dinner", DetailIndex: 0, Before: `"Free text"`, After: text("Free text")},
		{Day: 1, ItemIndex: 0, ItemID: domain.NumericItemID(101), ItemTitle: "Dinner", DetailIndex: 1, Before: `["a","b"]`, After: text("a | b")},
		{Day: 1, ItemIndex: 0, ItemID: domain.NumericItemID(101), ItemTitle: "Dinner", DetailIndex: 3, Before: `{"icon":"glass","text":"Wine"}`, After: text("Wine")},
		{Day: 2, ItemIndex: 0, ItemTitle: "Tour", DetailIndex: 0, Before: `"Bus & boat"`, After: text("Bus & boat")},
	}, plan.Changes)

	var agenda []domain.Day
	require.NoError(t, json.Unmarshal(plan.Agenda, &agenda))
	assert.Equal(t, []domain.Detail{text("Free text"), text("a | b"), {Type: "Currency", Value: "100 EUR"}, text("Wine")},
		agenda[0].Items[0].Details)
	assert.Equal(t, "smart", agenda[0].Items[0].Note["dress"], "non-detail fields are carried over")
	assert.Equal(t, []domain.Detail{text("Bus & boat")}, agenda[1].Items[0].Details)
}

func TestPlanAgenda_CleanAgendaHasNoChanges(t *testing.T) {
	plan, err := service.PlanAgenda(domain.AgendaDocument{
		TripID: uuid.New(),
		Agenda: json.RawMessage(`[{"day":1,"items":[{"details":[{"type":"Text","value":"ok"}]},{"title":"no details"}]}]`),
	})

	require.NoError(t, err)
	assert.Empty(t, plan.Changes)
	assert.Nil(t, plan.Agenda)
}

func TestPlanAgenda_RejectsNonListAgenda(t *testing.T) {
	_, err := service.PlanAgenda(domain.AgendaDocument{TripID: uuid.New(), Agenda: json.RawMessage(`{"day":1}`)})

	assert.Error(t, err)
}

func TestPlanAgenda_IsIdempotent(t *testing.T) {
	var doc struct{ Agenda json.RawMessage }
	require.NoError(t, json.Unmarshal([]byte(legacyDoc), &doc))

	first, err := service.PlanAgenda(domain.AgendaDocument{TripID: uuid.New(), Agenda: doc.Agenda})
	require.NoError(t, err)
	second, err := service.PlanAgenda(domain.AgendaDocument{TripID: uuid.New(), Agenda: first.Agenda})

	require.NoError(t, err)
	assert.Empty(t, second.Changes)
}

func seededStore(t *testing.T) (*repo.MemoryStore, uuid.UUID, uuid.UUID) {
	t.Helper()
	store := repo.NewMemoryStore()
	legacy, clean := uuid.New(), uuid.New()
	store.ImportDocument(legacy, []byte(legacyDoc))
	store.ImportDocument(clean, []byte(cleanDoc))
	return store, legacy, clean
}

func TestNormalizer_PlanIsReadOnly(t *testing.T) {
	store, legacy, _ := seededStore(t)
	n := service.NewNormalizer(store, quietLogger(), 2)
	ctx := context.Background()

	report, err := n.Plan(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, report.TripsScanned)
	require.Len(t, report.Trips, 1)
	assert.Equal(t, legacy, report.Trips[0].TripID)
	assert.Equal(t, 4, report.ChangeCount())
	assert.False(t, report.Applied)

	docs, err := store.ListAgendas(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(docs[0].Agenda), `"Free text"`)
	assert.Equal(t, int64(1), docs[0].Version)
}

func TestNormalizer_Apply(t *testing.T) {
	store, legacy, clean := seededStore(t)
	n := service.NewNormalizer(store, quietLogger(), 2)
	ctx := context.Background()

	report, err := n.Plan(ctx)
	require.NoError(t, err)
	require.NoError(t, n.Apply(ctx, &report))

	assert.True(t, report.Applied)
	assert.Equal(t, []uuid.UUID{legacy}, report.Updated)
	assert.Empty(t, report.Failures)

	again, err := n.Plan(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Trips, "a second run finds nothing to change")

	trip, err := store.GetByID(ctx, legacy)
	require.NoError(t, err)
	assert.Equal(t, int64(2), trip.Version)
	assert.Equal(t, "Legacy", trip.Name)

	untouched, err := store.GetByID(ctx, clean)
	require.NoError(t, err)
	assert.Equal(t, int64(1), untouched.Version)
}

func TestNormalizer_ApplySkipsTripsChangedSincePlan(t *testing.T) {
	store, legacy, _ := seededStore(t)
	n := service.NewNormalizer(store, quietLogger(), 1)
	ctx := context.Background()

	report, err := n.Plan(ctx)
	require.NoError(t, err)
	require.NoError(t, store.ReplaceAgenda(ctx, legacy, 1, json.RawMessage(`[]`)))

	require.NoError(t, n.Apply(ctx, &report))

	assert.Empty(t, report.Updated)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, legacy, report.Failures[0].TripID)
	assert.Contains(t, report.Failures[0].Error, domain.ErrConflict.Error())
}

func TestNormalizer_PlanRecordsUnreadableTrips(t *testing.T) {
	store := repo.NewMemoryStore()
	bad := uuid.New()
	store.ImportDocument(bad, []byte(`{"name":"Broken","agenda":{"oops":true}}`))
	n := service.NewNormalizer(store, quietLogger(), 1)

	report, err := n.Plan(context.Background())

	require.NoError(t, err)
	assert.Empty(t, report.Trips)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, bad, report.Failures[0].TripID)
}

func TestNormalizer_PlanRepoError(t *testing.T) {
	repoErr := errors.New("db exploded")
	r := &mockTripRepo{listAgendas: func(context.Context) ([]domain.AgendaDocument, error) { return nil, repoErr }}

	_, err := service.NewNormalizer(r, quietLogger(), 1).Plan(context.Background())

	assert.ErrorIs(t, err, repoErr)
}
