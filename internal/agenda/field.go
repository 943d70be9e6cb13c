package agenda

import (
	"slices"

	"github.com/incentive-trips/backend/internal/domain"
)

// MergeItem applies one incoming item onto base, field by field:
//   - absent or null fields are skipped, base values survive;
//   - note is merged key by key, null values skipped, other base keys kept;
//   - details are the union of base and incoming, base entries first and
//     never removed, new entries appended in incoming order;
//   - every other field is overwritten.
//
// base is not modified.
func MergeItem(base domain.Item, in domain.ItemPatch) domain.Item {
	out := base.Clone()

	if !in.ID.IsZero() {
		out.ID = in.ID
	}
	overwrite(&out.Time, in.Time)
	overwrite(&out.Category, in.Category)
	overwrite(&out.Title, in.Title)
	overwrite(&out.Description, in.Description)
	overwrite(&out.LongDescription, in.LongDescription)
	overwrite(&out.ImageCaption, in.ImageCaption)
	if in.Images != nil {
		out.Images = append([]string{}, in.Images...)
	}
	if in.Note != nil {
		out.Note = mergeNote(out.Note, in.Note)
	}
	if in.Details != nil {
		out.Details = unionDetails(out.Details, in.Details)
	}
	return out
}

func overwrite(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func mergeNote(base, in map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(in))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range in {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

// unionDetails appends each incoming detail not already present. Details are
// canonical by the time they get here, so struct equality is structural
// equality.
func unionDetails(base, in []domain.Detail) []domain.Detail {
	out := make([]domain.Detail, 0, len(base)+len(in))
	out = append(out, base...)
	for _, d := range in {
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	return out
}
