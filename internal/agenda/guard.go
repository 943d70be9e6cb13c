package agenda

import (
	"slices"

	"github.com/incentive-trips/backend/internal/domain"
)

// CheckDeletions compares the agenda before and after a merge and returns one
// record per item whose details would shrink. A nil result means the merge is
// safe to persist.
//
// Items are paired across the two trees by id, or by (title, time) for items
// without one. An item is flagged when its merged details are shorter than the
// stored ones, or when the payload explicitly sent a details list shorter than
// the stored one; NewDetailsLen reports the smaller of the two.
func CheckDeletions(before, after []domain.Day, incoming []domain.DayPatch, opts Options) []domain.DetailDeletion {
	submitted := submittedDetailLens(before, incoming, opts)

	var out []domain.DetailDeletion
	for _, old := range before {
		var merged []domain.Item
		if i := dayIndex(after, old.Day); i >= 0 {
			merged = after[i].Items
		}
		pairs := pairItems(old.Items, merged)

		for idx, it := range old.Items {
			j := pairs[idx]
			if j < 0 {
				continue
			}
			oldLen := len(it.Details)
			newLen := len(merged[j].Details)
			if n, ok := submitted[itemKey{day: old.Day, idx: idx}]; ok {
				newLen = min(newLen, n)
			}
			if newLen < oldLen {
				out = append(out, domain.DetailDeletion{
					Day:           old.Day,
					Idx:           idx,
					ID:            it.ID,
					OldDetailsLen: oldLen,
					NewDetailsLen: newLen,
				})
			}
		}
	}
	return out
}

type itemKey struct {
	day int
	idx int
}

// submittedDetailLens resolves every incoming item that carries a details list
// to the stored item it merges into, using the same matching as MergeItems,
// and records the shortest list sent for each.
func submittedDetailLens(before []domain.Day, incoming []domain.DayPatch, opts Options) map[itemKey]int {
	out := make(map[itemKey]int)
	for pos, in := range incoming {
		n := in.Number(pos)
		i := dayIndex(before, n)
		if i < 0 || in.Items == nil {
			continue
		}
		_, targets := mergeItems(in.Items, before[i].Items, opts)
		for k, t := range targets {
			if t < 0 || in.Items[k].Details == nil {
				continue
			}
			key := itemKey{day: n, idx: t}
			l := len(in.Items[k].Details)
			if prev, ok := out[key]; !ok || l < prev {
				out[key] = l
			}
		}
	}
	return out
}

// pairItems maps each stored item to its index in the merged list, or -1.
// Items with an id pair by id; id-less items pair with an unclaimed id-less
// merged item of the same (title, time). Among several candidates the one
// whose details still start with the stored details wins, since merging only
// ever appends to a stored item's details.
func pairItems(old, merged []domain.Item) []int {
	claimed := make([]bool, len(merged))
	pairs := make([]int, len(old))
	for i, it := range old {
		pick, fallback := -1, -1
		for j, m := range merged {
			if claimed[j] || !sameIdentity(it, m) {
				continue
			}
			if hasPrefix(m.Details, it.Details) {
				pick = j
				break
			}
			if fallback < 0 {
				fallback = j
			}
		}
		if pick < 0 {
			pick = fallback
		}
		if pick >= 0 {
			claimed[pick] = true
		}
		pairs[i] = pick
	}
	return pairs
}

func sameIdentity(stored, merged domain.Item) bool {
	if !stored.ID.IsZero() {
		return stored.ID.Equal(merged.ID)
	}
	return merged.ID.IsZero() && sameTitleTime(stored.Title, stored.Time, merged.Title, merged.Time)
}

func hasPrefix(list, prefix []domain.Detail) bool {
	return len(list) >= len(prefix) && slices.Equal(list[:len(prefix)], prefix)
}
