// Package history loads and holds the immutable historical tables (actual
// yields and weekly condition snapshots) shared by every backtest unit.
package history

import (
	"cmp"
	"math"
	"slices"
	"sort"
	"sync/atomic"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cropcast/internal/model"
)

type seasonKey struct {
	model.SeriesKey
	Year int
}

// revisions numbers every Tables value built in this process.
var revisions atomic.Uint64

// Tables is the in-memory historical dataset. It is never mutated after
// construction; WithActual returns a new value.
type Tables struct {
	yields    map[model.SeriesKey][]model.YieldObservation // sorted by year
	snapshots map[seasonKey][]model.ConditionSnapshot      // sorted by week
	nSnaps    int
	rev       uint64
}

// NewTables validates the rows and indexes them by series. Out-of-range
// values and duplicate rows are schema mismatches.
func NewTables(yields []model.YieldObservation, conditions []model.ConditionSnapshot) (*Tables, error) {
	t := &Tables{
		yields:    make(map[model.SeriesKey][]model.YieldObservation),
		snapshots: make(map[seasonKey][]model.ConditionSnapshot),
		rev:       revisions.Add(1),
	}

	seenYield := make(map[seasonKey]bool, len(yields))
	for _, y := range yields {
		if err := validateYield(y); err != nil {
			return nil, err
		}
		sk := seasonKey{model.SeriesKey{Commodity: y.Commodity, State: y.State}, y.Year}
		if seenYield[sk] {
			return nil, eris.Wrapf(model.ErrSchemaMismatch, "history: duplicate yield for %s %d", sk.SeriesKey, y.Year)
		}
		seenYield[sk] = true
		t.yields[sk.SeriesKey] = append(t.yields[sk.SeriesKey], y)
	}
	for k := range t.yields {
		slices.SortFunc(t.yields[k], func(a, b model.YieldObservation) int { return a.Year - b.Year })
	}

	seenWeek := make(map[seasonKey]map[int]bool)
	for _, c := range conditions {
		if err := validateSnapshot(c); err != nil {
			return nil, err
		}
		sk := seasonKey{model.SeriesKey{Commodity: c.Commodity, State: c.State}, c.Year}
		if seenWeek[sk] == nil {
			seenWeek[sk] = make(map[int]bool)
		}
		if seenWeek[sk][c.Week] {
			return nil, eris.Wrapf(model.ErrSchemaMismatch, "history: duplicate condition for %s %d week %d", sk.SeriesKey, c.Year, c.Week)
		}
		seenWeek[sk][c.Week] = true
		t.snapshots[sk] = append(t.snapshots[sk], c)
		t.nSnaps++
	}
	for k := range t.snapshots {
		slices.SortFunc(t.snapshots[k], func(a, b model.ConditionSnapshot) int { return a.Week - b.Week })
	}

	return t, nil
}

func validateYield(y model.YieldObservation) error {
	switch {
	case !y.Commodity.Valid():
		return eris.Wrapf(model.ErrSchemaMismatch, "history: unsupported commodity %q", y.Commodity)
	case y.State == "":
		return eris.Wrapf(model.ErrSchemaMismatch, "history: %s %d has no state", y.Commodity, y.Year)
	case y.Year <= 0:
		return eris.Wrapf(model.ErrSchemaMismatch, "history: %s/%s has invalid year %d", y.Commodity, y.State, y.Year)
	case math.IsNaN(y.Yield) || math.IsInf(y.Yield, 0) || y.Yield < 0:
		return eris.Wrapf(model.ErrSchemaMismatch, "history: %s/%s %d has invalid yield %v", y.Commodity, y.State, y.Year, y.Yield)
	}
	return nil
}

func validateSnapshot(c model.ConditionSnapshot) error {
	switch {
	case !c.Commodity.Valid():
		return eris.Wrapf(model.ErrSchemaMismatch, "history: unsupported commodity %q", c.Commodity)
	case c.State == "" || c.Year <= 0:
		return eris.Wrapf(model.ErrSchemaMismatch, "history: condition row for %s has no state or year", c.Commodity)
	case c.Week < 1 || c.Week > 53:
		return eris.Wrapf(model.ErrSchemaMismatch, "history: %s/%s %d has invalid week %d", c.Commodity, c.State, c.Year, c.Week)
	case math.IsNaN(c.GoodExcellentPct) || c.GoodExcellentPct < 0 || c.GoodExcellentPct > 100:
		return eris.Wrapf(model.ErrSchemaMismatch, "history: %s/%s %d week %d has good_excellent_pct %v outside [0,100]",
			c.Commodity, c.State, c.Year, c.Week, c.GoodExcellentPct)
	}
	for k, v := range c.Weather {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return eris.Wrapf(model.ErrSchemaMismatch, "history: %s/%s %d week %d has non-finite %s", c.Commodity, c.State, c.Year, c.Week, k)
		}
	}
	return nil
}

// WithActual returns a copy of t with obs added, replacing any existing
// actual for the same state-year.
func (t *Tables) WithActual(obs model.YieldObservation) (*Tables, error) {
	if err := validateYield(obs); err != nil {
		return nil, err
	}
	key := model.SeriesKey{Commodity: obs.Commodity, State: obs.State}

	next := &Tables{
		yields:    make(map[model.SeriesKey][]model.YieldObservation, len(t.yields)+1),
		snapshots: t.snapshots,
		nSnaps:    t.nSnaps,
		rev:       revisions.Add(1),
	}
	for k, v := range t.yields {
		next.yields[k] = v
	}

	series := slices.DeleteFunc(slices.Clone(t.yields[key]), func(y model.YieldObservation) bool { return y.Year == obs.Year })
	i := sort.Search(len(series), func(i int) bool { return series[i].Year > obs.Year })
	next.yields[key] = slices.Insert(series, i, obs)
	return next, nil
}

// Revision identifies this value. No two Tables built in the same process
// share a revision, so anything derived from one can be keyed by it.
func (t *Tables) Revision() uint64 {
	return t.rev
}

// Series returns the actual yields for key in ascending year order. The
// slice must not be modified.
func (t *Tables) Series(key model.SeriesKey) []model.YieldObservation {
	return t.yields[key]
}

// Actual returns the actual yield for key in year.
func (t *Tables) Actual(key model.SeriesKey, year int) (float64, bool) {
	s := t.yields[key]
	i := sort.Search(len(s), func(i int) bool { return s[i].Year >= year })
	if i < len(s) && s[i].Year == year {
		return s[i].Yield, true
	}
	return 0, false
}

// Snapshots returns the condition snapshots for key in year, ordered by
// week. The slice must not be modified.
func (t *Tables) Snapshots(key model.SeriesKey, year int) []model.ConditionSnapshot {
	return t.snapshots[seasonKey{key, year}]
}

// Commodity returns every actual yield for c across all states.
func (t *Tables) Commodity(c model.Commodity) []model.YieldObservation {
	var out []model.YieldObservation
	for _, k := range t.Keys() {
		if k.Commodity == c {
			out = append(out, t.yields[k]...)
		}
	}
	return out
}

// Keys returns every series with at least one actual, sorted by commodity
// then state.
func (t *Tables) Keys() []model.SeriesKey {
	keys := make([]model.SeriesKey, 0, len(t.yields))
	for k := range t.yields {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

// States returns the states with actuals for c, sorted.
func (t *Tables) States(c model.Commodity) []string {
	var out []string
	for _, k := range t.Keys() {
		if k.Commodity == c {
			out = append(out, k.State)
		}
	}
	return out
}

// Years returns the years with an actual for key, ascending.
func (t *Tables) Years(key model.SeriesKey) []int {
	s := t.yields[key]
	out := make([]int, len(s))
	for i, y := range s {
		out[i] = y.Year
	}
	return out
}

// Counts returns the number of yield and condition rows.
func (t *Tables) Counts() (yields, conditions int) {
	for _, s := range t.yields {
		yields += len(s)
	}
	return yields, t.nSnaps
}

// seasonKeys returns the state-years with snapshots in a stable order.
func (t *Tables) seasonKeys() []seasonKey {
	keys := make([]seasonKey, 0, len(t.snapshots))
	for k := range t.snapshots {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b seasonKey) int {
		if c := compareKeys(a.SeriesKey, b.SeriesKey); c != 0 {
			return c
		}
		return a.Year - b.Year
	})
	return keys
}

func compareKeys(a, b model.SeriesKey) int {
	if c := cmp.Compare(a.Commodity, b.Commodity); c != 0 {
		return c
	}
	return cmp.Compare(a.State, b.State)
}
