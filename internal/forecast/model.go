// Package forecast produces progressive in-season yield forecasts from a
// fitted trend plus a condition-deviation adjustment.
package forecast

import (
	"math"
	"slices"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cropcast/internal/config"
	"github.com/sells-group/cropcast/internal/estimate"
	"github.com/sells-group/cropcast/internal/model"
)

// goodExcellent is the feature name of the crop-condition rating.
const goodExcellent = "good_excellent_pct"

// Model is the single configuration-driven interface used for every
// commodity. Implementations must be pure: identical inputs give identical
// outputs.
type Model interface {
	// FitTrend fits the baseline trend, never training on excludedYear.
	FitTrend(key model.SeriesKey, series []model.YieldObservation, excludedYear int) (*model.TrendModel, error)

	// FitDeviation fits the mapping from condition deviation to yield
	// deviation at week, using only the given training seasons.
	FitDeviation(trend *model.TrendModel, training []Season, week model.ForecastWeek) (*Deviation, error)

	// Forecast issues the forecast for the target season at week.
	Forecast(trend *model.TrendModel, dev *Deviation, target Season, week model.ForecastWeek) model.ForecastRecord
}

// Deviation maps condition/weather deviations from their training-years
// normal to a yield deviation from trend.
type Deviation struct {
	Week         model.ForecastWeek `json:"forecast_week"`
	Features     []string           `json:"features"`
	Normal       []float64          `json:"normal"`
	Coefficients []float64          `json:"coefficients"`
	ResidualStd  float64            `json:"residual_std"`
	N            int                `json:"n"`
}

// Linear is the default Model: polynomial trend plus a ridge-regularized
// linear deviation function.
type Linear struct {
	params config.ModelParams
}

// New creates a Linear model with the given parameters.
func New(p config.ModelParams) *Linear {
	return &Linear{params: p}
}

// Params returns the model parameters.
func (l *Linear) Params() config.ModelParams {
	return l.params
}

// FitTrend implements Model.
func (l *Linear) FitTrend(key model.SeriesKey, series []model.YieldObservation, excludedYear int) (*model.TrendModel, error) {
	return estimate.FitTrend(key, series, estimate.OptionsFromParams(l.params, excludedYear))
}

// FitDeviation implements Model. A training season without a snapshot at or
// before week is left out of the fit.
func (l *Linear) FitDeviation(trend *model.TrendModel, training []Season, week model.ForecastWeek) (*Deviation, error) {
	if trend == nil {
		return nil, eris.New("forecast: fit deviation without a trend")
	}

	type point struct {
		snap model.ConditionSnapshot
		yDev float64
	}
	var pts []point
	var snaps []model.ConditionSnapshot
	for _, s := range training {
		if !s.HasActual || (trend.ExcludedYear != 0 && s.Year == trend.ExcludedYear) {
			continue
		}
		snap, ok := s.AsOf(week)
		if !ok {
			continue
		}
		pts = append(pts, point{snap: snap, yDev: s.Actual - trend.Predict(s.Year)})
		snaps = append(snaps, snap)
	}

	dev := &Deviation{Week: week, N: len(pts), ResidualStd: trend.ResidualStd}
	if len(pts) == 0 {
		return dev, nil
	}

	// Weather indices participate only when every training point carries them.
	features := append([]string{goodExcellent}, sharedWeatherKeys(snaps)...)
	dev.Features = features

	dev.Normal = make([]float64, len(features))
	for _, p := range pts {
		for i, f := range features {
			dev.Normal[i] += featureValue(p.snap, f)
		}
	}
	for i := range dev.Normal {
		dev.Normal[i] /= float64(len(pts))
	}

	x := make([][]float64, len(pts))
	y := make([]float64, len(pts))
	for r, p := range pts {
		x[r] = dev.deviations(p.snap)
		y[r] = p.yDev
	}

	coeffs, err := estimate.LeastSquares(x, y, l.params.Ridge)
	if err != nil {
		// Degenerate (zero-variance) conditions carry no signal.
		coeffs = make([]float64, len(features))
	}
	dev.Coefficients = coeffs

	if len(pts) >= 2 {
		var ssr float64
		for r := range pts {
			res := y[r] - dot(coeffs, x[r])
			ssr += res * res
		}
		dof := len(pts) - len(features)
		if dof <= 0 {
			dof = len(pts)
		}
		dev.ResidualStd = math.Sqrt(ssr / float64(dof))
	}

	return dev, nil
}

// Forecast implements Model. Without a snapshot at or before week the
// forecast falls back to the trend yield.
func (l *Linear) Forecast(trend *model.TrendModel, dev *Deviation, target Season, week model.ForecastWeek) model.ForecastRecord {
	rec := model.ForecastRecord{
		Commodity:  trend.Commodity,
		State:      trend.State,
		Year:       target.Year,
		Week:       week,
		TrendYield: trend.Predict(target.Year),
	}
	rec.Predicted = rec.TrendYield

	sigma := trend.ResidualStd
	if dev != nil {
		if snap, ok := target.AsOf(week); ok && len(dev.Coefficients) > 0 {
			x := dev.deviations(snap)
			rec.Predicted += dot(dev.Coefficients, x)
			rec.ConditionDeviation = x[0]
			rec.ConditionAvailable = true
		}
		if dev.N >= 2 {
			sigma = dev.ResidualStd
		}
	}

	half := zScore(l.params.IntervalLevel) * sigma
	rec.Interval = model.Interval{
		Lower: rec.Predicted - half,
		Upper: rec.Predicted + half,
		Level: l.params.IntervalLevel,
	}
	return rec
}

// ForecastSeason runs the full per-week pipeline for one target season:
// fit a deviation function per week on the training seasons, then forecast.
func ForecastSeason(m Model, trend *model.TrendModel, training []Season, target Season, weeks []model.ForecastWeek) ([]model.ForecastRecord, error) {
	out := make([]model.ForecastRecord, 0, len(weeks))
	for _, w := range weeks {
		dev, err := m.FitDeviation(trend, training, w)
		if err != nil {
			return nil, eris.Wrapf(err, "forecast: %s %d week %d", trend.Key(), target.Year, w)
		}
		out = append(out, m.Forecast(trend, dev, target, w))
	}
	return out, nil
}

// deviations returns the snapshot's feature values minus their normals.
// Features missing from the snapshot contribute no deviation.
func (d *Deviation) deviations(snap model.ConditionSnapshot) []float64 {
	out := make([]float64, len(d.Features))
	for i, f := range d.Features {
		if f != goodExcellent {
			if _, ok := snap.Weather[f]; !ok {
				continue
			}
		}
		out[i] = featureValue(snap, f) - d.Normal[i]
	}
	return out
}

func featureValue(snap model.ConditionSnapshot, f string) float64 {
	if f == goodExcellent {
		return snap.GoodExcellentPct
	}
	return snap.Weather[f]
}

// sharedWeatherKeys returns, sorted, the weather keys present in every
// snapshot.
func sharedWeatherKeys(snaps []model.ConditionSnapshot) []string {
	if len(snaps) == 0 {
		return nil
	}
	keys := make([]string, 0, len(snaps[0].Weather))
	for k := range snaps[0].Weather {
		keys = append(keys, k)
	}
	for _, s := range snaps[1:] {
		keys = slices.DeleteFunc(keys, func(k string) bool {
			_, ok := s.Weather[k]
			return !ok
		})
	}
	sort.Strings(keys)
	return keys
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// zScore returns the two-sided standard normal quantile for a coverage level.
func zScore(level float64) float64 {
	return math.Sqrt2 * math.Erfinv(level)
}
