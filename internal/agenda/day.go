package agenda

import (
	"cmp"
	"slices"

	"github.com/incentive-trips/backend/internal/domain"
)

// MatchDay resolves an incoming day to the stored day with the same number.
// position is the incoming day's index in the payload and supplies the number
// (position+1) when the payload omits it. On a miss MatchDay returns an empty
// scaffold day carrying that number, and false.
func MatchDay(incoming domain.DayPatch, position int, existing []domain.Day) (domain.Day, bool) {
	n := incoming.Number(position)
	if i := dayIndex(existing, n); i >= 0 {
		return existing[i].Clone(), true
	}
	return domain.Day{Day: n, Items: []domain.Item{}}, false
}

// MergeAgenda merges every incoming day into a copy of existing. Days the
// payload does not mention are kept as they are. New days are appended and
// the result is ordered by day number.
func MergeAgenda(existing []domain.Day, incoming []domain.DayPatch, opts Options) []domain.Day {
	out := domain.CloneDays(existing)
	if out == nil {
		out = []domain.Day{}
	}

	for pos, in := range incoming {
		base, found := MatchDay(in, pos, out)
		merged := mergeDay(base, in, opts)
		if found {
			out[dayIndex(out, merged.Day)] = merged
			continue
		}
		out = append(out, merged)
	}

	slices.SortStableFunc(out, func(a, b domain.Day) int { return cmp.Compare(a.Day, b.Day) })
	return out
}

func mergeDay(base domain.Day, in domain.DayPatch, opts Options) domain.Day {
	out := base
	if in.Title != nil {
		out.Title = *in.Title
	}
	if in.Date != nil {
		out.Date = *in.Date
	}
	if in.Items != nil {
		out.Items = MergeItems(in.Items, base.Items, opts)
	}
	return out
}

func dayIndex(days []domain.Day, n int) int {
	return slices.IndexFunc(days, func(d domain.Day) bool { return d.Day == n })
}
