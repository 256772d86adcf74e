// Package estimate fits baseline yield trends from historical actuals.
package estimate

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cropcast/internal/config"
	"github.com/sells-group/cropcast/internal/model"
)

// DefaultMinTrainingYears is the minimum number of training years a fit
// requires when FitOptions leaves it unset.
const DefaultMinTrainingYears = 5

// FitOptions controls which years feed a trend fit and its functional form.
type FitOptions struct {
	FitWindow        int    // number of training years to keep
	ExcludedYear     int    // held-out test year; 0 = none
	MinTrainingYears int    // default 5
	Degree           int    // 1 = linear (default), 2 = quadratic
	Mode             string // config.ModeLeaveOneOut (default) or config.ModeExpanding
}

// OptionsFromParams builds FitOptions for a test year from model parameters.
func OptionsFromParams(p config.ModelParams, excludedYear int) FitOptions {
	return FitOptions{
		FitWindow:        p.FitWindowYears,
		ExcludedYear:     excludedYear,
		MinTrainingYears: p.MinTrainingYears,
		Degree:           p.TrendDegree,
		Mode:             p.TrainingMode,
	}
}

// FitTrend fits a polynomial yield-vs-year trend for one state/commodity
// series. The excluded year never enters the training set, whatever its
// value. Returns an error wrapping model.ErrInsufficientHistory when too few
// years remain.
func FitTrend(key model.SeriesKey, series []model.YieldObservation, opts FitOptions) (*model.TrendModel, error) {
	opts = applyDefaults(opts)

	training := selectTraining(series, opts)
	need := max(opts.MinTrainingYears, opts.Degree+1)
	if len(training) < need {
		return nil, eris.Wrapf(model.ErrInsufficientHistory,
			"estimate: %s excluding %d has %d training years, need %d",
			key, opts.ExcludedYear, len(training), need)
	}

	years := make([]int, len(training))
	var center float64
	for i, obs := range training {
		years[i] = obs.Year
		center += float64(obs.Year)
	}
	center /= float64(len(training))

	p := opts.Degree + 1
	x := make([][]float64, len(training))
	y := make([]float64, len(training))
	for i, obs := range training {
		x[i] = powers(float64(obs.Year)-center, p)
		y[i] = obs.Yield
	}

	coeffs, err := LeastSquares(x, y, 0)
	if err != nil {
		return nil, eris.Wrapf(err, "estimate: fit trend for %s", key)
	}

	m := model.NewTrendModel(key, opts.FitWindow, opts.ExcludedYear, center, coeffs, 0, years)

	var ssr float64
	for _, obs := range training {
		r := obs.Yield - m.Predict(obs.Year)
		ssr += r * r
	}
	if dof := len(training) - p; dof > 0 {
		m.ResidualStd = math.Sqrt(ssr / float64(dof))
	}

	zap.L().Debug("estimate: trend fitted",
		zap.String("series", key.String()),
		zap.Int("excluded_year", opts.ExcludedYear),
		zap.Int("training_years", len(training)),
		zap.Float64("slope", m.Slope),
		zap.Float64("residual_std", m.ResidualStd),
	)

	return m, nil
}

// Fallback builds a flat trend at the average yield of every series of the
// commodity (a regional average) over the window before year. It is the
// substitute callers use when a state's own history is too short.
func Fallback(key model.SeriesKey, all []model.YieldObservation, year, window int) (*model.TrendModel, error) {
	if window <= 0 {
		window = 15
	}
	lo, hi := year-window, year-1
	if year == 0 {
		for _, obs := range all {
			hi = max(hi, obs.Year)
		}
		lo = hi - window + 1
	}

	var sum float64
	var vals []float64
	yearSet := make(map[int]bool)
	for _, obs := range all {
		if obs.Commodity != key.Commodity || obs.Year < lo || obs.Year > hi {
			continue
		}
		sum += obs.Yield
		vals = append(vals, obs.Yield)
		yearSet[obs.Year] = true
	}
	if len(vals) == 0 {
		return nil, eris.Wrapf(model.ErrInsufficientHistory,
			"estimate: no %s yields between %d and %d for regional fallback", key.Commodity, lo, hi)
	}

	mean := sum / float64(len(vals))
	var ss float64
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	var std float64
	if len(vals) > 1 {
		std = math.Sqrt(ss / float64(len(vals)-1))
	}

	years := make([]int, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}

	m := model.NewTrendModel(key, window, year, float64(lo+hi)/2, []float64{mean}, std, years)
	m.Fallback = true
	return m, nil
}

func applyDefaults(opts FitOptions) FitOptions {
	if opts.FitWindow <= 0 {
		opts.FitWindow = 15
	}
	if opts.MinTrainingYears <= 0 {
		opts.MinTrainingYears = DefaultMinTrainingYears
	}
	if opts.Degree <= 0 {
		opts.Degree = 1
	}
	if opts.Mode == "" {
		opts.Mode = config.ModeLeaveOneOut
	}
	return opts
}

// selectTraining returns the in-window, non-excluded observations sorted by
// year.
func selectTraining(series []model.YieldObservation, opts FitOptions) []model.YieldObservation {
	candidates := make([]model.YieldObservation, 0, len(series))
	for _, obs := range series {
		if opts.ExcludedYear != 0 && obs.Year == opts.ExcludedYear {
			continue
		}
		if opts.ExcludedYear != 0 && opts.Mode == config.ModeExpanding && obs.Year > opts.ExcludedYear {
			continue
		}
		candidates = append(candidates, obs)
	}

	if opts.ExcludedYear == 0 || opts.Mode == config.ModeExpanding {
		// Most recent years first.
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Year > candidates[j].Year
		})
	} else {
		// Nearest years to the held-out year first; ties go to the earlier year.
		ex := opts.ExcludedYear
		sort.SliceStable(candidates, func(i, j int) bool {
			di, dj := abs(candidates[i].Year-ex), abs(candidates[j].Year-ex)
			if di != dj {
				return di < dj
			}
			return candidates[i].Year < candidates[j].Year
		})
	}

	if len(candidates) > opts.FitWindow {
		candidates = candidates[:opts.FitWindow]
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Year < candidates[j].Year
	})
	return candidates
}

func powers(x float64, p int) []float64 {
	out := make([]float64, p)
	v := 1.0
	for i := range out {
		out[i] = v
		v *= x
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
