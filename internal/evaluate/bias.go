package evaluate

import (
	"cmp"
	"slices"

	"github.com/sells-group/cropcast/internal/model"
)

const (
	// minBiasCases is the fewest forecasts a state needs before its bias can
	// be called systematic.
	minBiasCases = 3
	// systematicShare is the one-sided share of over- or under-predictions
	// that marks a bias as systematic.
	systematicShare = 0.75
)

// StateBiases summarizes signed error per (commodity, state) across all
// weeks and years, sorted by commodity then state.
func StateBiases(outcomes []model.Outcome) []model.StateBias {
	groups := make(map[model.SeriesKey][]model.Outcome)
	for _, o := range outcomes {
		k := model.SeriesKey{Commodity: o.Record.Commodity, State: o.Record.State}
		groups[k] = append(groups[k], o)
	}

	keys := make([]model.SeriesKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b model.SeriesKey) int {
		if c := cmp.Compare(a.Commodity, b.Commodity); c != 0 {
			return c
		}
		return cmp.Compare(a.State, b.State)
	})

	out := make([]model.StateBias, 0, len(keys))
	for _, k := range keys {
		cases := groups[k]
		slices.SortFunc(cases, func(a, b model.Outcome) int {
			if a.Record.Year != b.Record.Year {
				return a.Record.Year - b.Record.Year
			}
			return int(a.Record.Week) - int(b.Record.Week)
		})

		errs := make([]float64, len(cases))
		over, under := 0, 0
		for i, o := range cases {
			errs[i] = o.Error()
			switch {
			case errs[i] > 0:
				over++
			case errs[i] < 0:
				under++
			}
		}

		n := len(cases)
		b := model.StateBias{
			Commodity:        k.Commodity,
			State:            k.State,
			MeanError:        Mean(errs),
			N:                n,
			OverPredictedPct: float64(over) / float64(n),
		}
		underPct := float64(under) / float64(n)
		b.Systematic = n >= minBiasCases && (b.OverPredictedPct >= systematicShare || underPct >= systematicShare)
		out = append(out, b)
	}
	return out
}
