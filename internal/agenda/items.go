package agenda

import (
	"slices"
	"strings"

	"github.com/incentive-trips/backend/internal/domain"
)

// MergeItems merges the incoming items of one day into a copy of existing.
//
// Each incoming item is resolved by id against the whole list, or, when it has
// no id, by case-insensitive (title, time) against the stored items not yet
// matched in this merge. A match is merged in place and moves the insertion
// cursor just past it; anything unmatched is inserted at the cursor, which then
// advances. Stored items keep their relative order and new items land where
// they sat in the payload.
func MergeItems(incoming []domain.ItemPatch, existing []domain.Item, opts Options) []domain.Item {
	items, _ := mergeItems(incoming, existing, opts)
	return items
}

// mergeItems also reports, for each incoming item, the index in existing it
// was merged into, or -1 when it was inserted.
func mergeItems(incoming []domain.ItemPatch, existing []domain.Item, opts Options) ([]domain.Item, []int) {
	work := make([]domain.Item, len(existing))
	origin := make([]int, len(existing))
	matched := make([]bool, len(existing))
	for i, it := range existing {
		work[i] = it.Clone()
		origin[i] = i
	}

	targets := make([]int, len(incoming))
	cursor := 0
	for k, in := range incoming {
		i := -1
		switch {
		case !in.ID.IsZero():
			i = indexByID(work, in.ID)
		case opts.HeuristicMatch:
			i = indexByTitleTime(work, matched, in.TitleOrEmpty(), in.TimeOrEmpty())
		}

		if i >= 0 {
			work[i] = MergeItem(work[i], in)
			matched[i] = true
			targets[k] = origin[i]
			cursor = i + 1
			continue
		}

		work = slices.Insert(work, cursor, MergeItem(newItem(), in))
		origin = slices.Insert(origin, cursor, -1)
		matched = slices.Insert(matched, cursor, true)
		targets[k] = -1
		cursor++
	}

	return work, targets
}

func newItem() domain.Item {
	return domain.Item{Images: []string{}, Details: []domain.Detail{}}
}

func indexByID(items []domain.Item, id domain.ItemID) int {
	return slices.IndexFunc(items, func(it domain.Item) bool { return it.ID.Equal(id) })
}

func indexByTitleTime(items []domain.Item, matched []bool, title, time string) int {
	for i, it := range items {
		if matched[i] {
			continue
		}
		if sameTitleTime(it.Title, it.Time, title, time) {
			return i
		}
	}
	return -1
}

func sameTitleTime(titleA, timeA, titleB, timeB string) bool {
	return strings.EqualFold(titleA, titleB) && strings.EqualFold(timeA, timeB)
}
