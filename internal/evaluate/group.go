// Package evaluate computes accuracy, worst-case, and bias summaries over
// backtest outcomes.
package evaluate

import (
	"cmp"
	"math"
	"slices"

	"github.com/sells-group/cropcast/internal/model"
)

// Cell identifies one (commodity, forecast week) aggregate.
type Cell struct {
	Commodity model.Commodity    `json:"commodity"`
	Week      model.ForecastWeek `json:"forecast_week"`
}

// Group buckets outcomes by cell. Each bucket is ordered by state then year
// so that aggregates are bit-identical regardless of input order.
func Group(outcomes []model.Outcome) map[Cell][]model.Outcome {
	out := make(map[Cell][]model.Outcome)
	for _, o := range outcomes {
		c := Cell{Commodity: o.Record.Commodity, Week: o.Record.Week}
		out[c] = append(out[c], o)
	}
	for _, cases := range out {
		slices.SortFunc(cases, compareOutcomes)
	}
	return out
}

// Cells returns the keys of g sorted by commodity then week.
func Cells(g map[Cell][]model.Outcome) []Cell {
	cells := make([]Cell, 0, len(g))
	for c := range g {
		cells = append(cells, c)
	}
	slices.SortFunc(cells, func(a, b Cell) int {
		if c := cmp.Compare(a.Commodity, b.Commodity); c != 0 {
			return c
		}
		return cmp.Compare(a.Week, b.Week)
	})
	return cells
}

func compareOutcomes(a, b model.Outcome) int {
	if c := cmp.Compare(a.Record.State, b.Record.State); c != 0 {
		return c
	}
	return cmp.Compare(a.Record.Year, b.Record.Year)
}

// RMSE returns the root mean squared value of errs, or 0 when empty.
func RMSE(errs []float64) float64 {
	if len(errs) == 0 {
		return 0
	}
	var ss float64
	for _, e := range errs {
		ss += e * e
	}
	return math.Sqrt(ss / float64(len(errs)))
}

// MAE returns the mean absolute value of errs, or 0 when empty.
func MAE(errs []float64) float64 {
	if len(errs) == 0 {
		return 0
	}
	var s float64
	for _, e := range errs {
		s += math.Abs(e)
	}
	return s / float64(len(errs))
}

// Mean returns the arithmetic mean of xs, or 0 when empty.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}
