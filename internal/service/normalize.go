package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/incentive-trips/backend/internal/domain"
	"github.com/incentive-trips/backend/internal/repo"
)

// Normalizer rewrites stored detail entries into canonical {type, value}
// form. Plan is read-only; Apply writes the planned agendas back.
type Normalizer struct {
	trips       repo.TripRepo
	log         *slog.Logger
	concurrency int
	now         func() time.Time
}

// NewNormalizer constructs a Normalizer. concurrency bounds parallel writes
// in Apply and is clamped to at least 1.
func NewNormalizer(trips repo.TripRepo, log *slog.Logger, concurrency int) *Normalizer {
	return &Normalizer{
		trips:       trips,
		log:         log,
		concurrency: max(concurrency, 1),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Plan scans every trip and reports the detail entries that are not yet
// canonical. Trips whose agenda cannot be read are listed as failures.
func (n *Normalizer) Plan(ctx context.Context) (domain.NormalizationReport, error) {
	docs, err := n.trips.ListAgendas(ctx)
	if err != nil {
		return domain.NormalizationReport{}, fmt.Errorf("service.Normalizer.Plan: %w", err)
	}

	report := domain.NormalizationReport{
		GeneratedAt:  n.now(),
		TripsScanned: len(docs),
		Trips:        []domain.TripNormalization{},
	}
	for _, doc := range docs {
		plan, err := PlanAgenda(doc)
		if err != nil {
			report.Failures = append(report.Failures, domain.NormalizationFailure{TripID: doc.TripID, Error: err.Error()})
			continue
		}
		if len(plan.Changes) > 0 {
			report.Trips = append(report.Trips, plan)
		}
	}
	return report, nil
}

// Apply writes the normalized agenda of every planned trip, using the version
// seen at plan time. Trips changed since then fail with a conflict and are
// left as they are. Per-trip failures are added to the report; only a
// cancelled context aborts the run.
func (n *Normalizer) Apply(ctx context.Context, report *domain.NormalizationReport) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.concurrency)

	for _, plan := range report.Trips {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			err := n.trips.ReplaceAgenda(gctx, plan.TripID, plan.Version, plan.Agenda)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, domain.NormalizationFailure{TripID: plan.TripID, Error: err.Error()})
				n.log.WarnContext(gctx, "normalize details failed", "trip_id", plan.TripID, "error", err)
				return nil
			}
			report.Updated = append(report.Updated, plan.TripID)
			n.log.InfoContext(gctx, "normalized details", "trip_id", plan.TripID, "changes", len(plan.Changes))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("service.Normalizer.Apply: %w", err)
	}
	report.Applied = true
	return nil
}

// PlanAgenda computes the detail changes for one stored agenda and the
// rewritten agenda. Everything other than detail entries is carried over
// as stored.
func PlanAgenda(doc domain.AgendaDocument) (domain.TripNormalization, error) {
	raw, err := domain.DecodeRaw(doc.Agenda)
	if err != nil {
		return domain.TripNormalization{}, fmt.Errorf("decode agenda: %w", err)
	}
	days, ok := raw.([]any)
	if !ok {
		return domain.TripNormalization{}, fmt.Errorf("agenda is %T, not a list", raw)
	}

	plan := domain.TripNormalization{TripID: doc.TripID, Version: doc.Version, Changes: []domain.DetailChange{}}
	for pos, d := range days {
		day, ok := d.(map[string]any)
		if !ok {
			continue
		}
		dayNum := pos + 1
		if v, ok := day["day"].(json.Number); ok {
			if n, err := v.Int64(); err == nil {
				dayNum = int(n)
			}
		}
		items, _ := day["items"].([]any)
		for idx, i := range items {
			item, ok := i.(map[string]any)
			if !ok {
				continue
			}
			details, changes := normalizeDetails(item["details"])
			for _, c := range changes {
				c.Day = dayNum
				c.ItemIndex = idx
				c.ItemID = rawItemID(item["id"])
				c.ItemTitle, _ = item["title"].(string)
				plan.Changes = append(plan.Changes, c)
			}
			if len(changes) > 0 {
				item["details"] = details
			}
		}
	}

	if len(plan.Changes) > 0 {
		agenda, err := encode(days)
		if err != nil {
			return domain.TripNormalization{}, fmt.Errorf("encode agenda: %w", err)
		}
		plan.Agenda = agenda
	}
	return plan, nil
}

// normalizeDetails returns the canonical details list and the entries that
// changed. A details value that is not a list is treated as a single entry.
func normalizeDetails(v any) ([]any, []domain.DetailChange) {
	var entries []any
	switch d := v.(type) {
	case nil:
		return nil, nil
	case []any:
		entries = d
	default:
		entries = []any{d}
	}

	out := make([]any, len(entries))
	var changes []domain.DetailChange
	for i, e := range entries {
		canon := domain.NormalizeDetail(e)
		out[i] = map[string]any{"type": canon.Type, "value": canon.Value}
		if _, isList := v.([]any); isList && isCanonical(e) {
			continue
		}
		before, _ := encode(e)
		changes = append(changes, domain.DetailChange{DetailIndex: i, Before: string(before), After: canon})
	}
	return out, changes
}

// isCanonical reports whether a raw entry is already exactly {type, value}
// with string values.
func isCanonical(e any) bool {
	m, ok := e.(map[string]any)
	if !ok || len(m) != 2 {
		return false
	}
	_, typeOK := m["type"].(string)
	_, valueOK := m["value"].(string)
	return typeOK && valueOK
}

func rawItemID(v any) domain.ItemID {
	switch id := v.(type) {
	case string:
		return domain.StringItemID(id)
	case json.Number:
		return domain.ParseItemID(id.String())
	default:
		return domain.ItemID{}
	}
}

// encode marshals without HTML escaping so stored text is left as written.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
