package evaluate

import (
	"cmp"
	"math"
	"slices"

	"github.com/sells-group/cropcast/internal/model"
)

// WorstCases returns the k largest absolute errors for every cell, ordered
// by cell and then rank. Equal magnitudes are ordered by year then state.
func WorstCases(outcomes []model.Outcome, k int) []model.ErrorCase {
	if k <= 0 {
		return nil
	}
	groups := Group(outcomes)

	var out []model.ErrorCase
	for _, cell := range Cells(groups) {
		cases := make([]model.ErrorCase, len(groups[cell]))
		for i, o := range groups[cell] {
			cases[i] = model.ErrorCase{
				Commodity: o.Record.Commodity,
				Year:      o.Record.Year,
				State:     o.Record.State,
				Week:      o.Record.Week,
				Predicted: o.Record.Predicted,
				Actual:    o.Actual,
				Error:     o.Error(),
			}
		}
		slices.SortFunc(cases, func(a, b model.ErrorCase) int {
			if c := cmp.Compare(math.Abs(b.Error), math.Abs(a.Error)); c != 0 {
				return c
			}
			if c := cmp.Compare(a.Year, b.Year); c != 0 {
				return c
			}
			return cmp.Compare(a.State, b.State)
		})
		out = append(out, cases[:min(k, len(cases))]...)
	}
	return out
}
