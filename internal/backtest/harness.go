// Package backtest replays history to score the forecast model. Every
// (commodity, state, test year) unit is forecast from a trend that never saw
// the test year, then paired with the actual yield and naive benchmarks.
package backtest

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/cropcast/internal/config"
	"github.com/sells-group/cropcast/internal/evaluate"
	"github.com/sells-group/cropcast/internal/forecast"
	"github.com/sells-group/cropcast/internal/history"
	"github.com/sells-group/cropcast/internal/model"
	"github.com/sells-group/cropcast/internal/monitoring"
	"github.com/sells-group/cropcast/internal/scorer"
)

// DefaultConcurrency is the number of units run at once when no option
// sets it.
const DefaultConcurrency = 8

// ModelFactory builds the forecast model for a commodity's parameters.
type ModelFactory func(config.ModelParams) forecast.Model

// Harness runs backtests. It is safe for concurrent use. The memo is the
// only state shared between runs, and its entries are keyed by tables
// revision, so runs over different tables never see each other's fits.
type Harness struct {
	memo        *forecast.Memo
	clock       clockwork.Clock
	metrics     *monitoring.Metrics
	concurrency int
	newModel    ModelFactory
}

// Option configures a Harness.
type Option func(*Harness)

// WithClock sets the clock used for run timestamps and durations.
func WithClock(c clockwork.Clock) Option {
	return func(h *Harness) { h.clock = c }
}

// WithMetrics records unit, cache, and evaluation metrics on m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(h *Harness) { h.metrics = m }
}

// WithConcurrency bounds the number of units run at once.
func WithConcurrency(n int) Option {
	return func(h *Harness) {
		if n > 0 {
			h.concurrency = n
		}
	}
}

// WithModel replaces the default linear model.
func WithModel(f ModelFactory) Option {
	return func(h *Harness) { h.newModel = f }
}

// New creates a Harness that memoizes fits in memo.
func New(memo *forecast.Memo, opts ...Option) *Harness {
	h := &Harness{
		memo:        memo,
		clock:       clockwork.NewRealClock(),
		concurrency: DefaultConcurrency,
		newModel:    func(p config.ModelParams) forecast.Model { return forecast.New(p) },
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Plan selects the units of a run.
type Plan struct {
	Settings *config.BacktestSettings
	States   []string // empty = every state in the tables
	FromYear int      // 0 = no lower bound
	ToYear   int      // 0 = no upper bound
}

type unit struct {
	key    model.SeriesKey
	year   int
	params config.ModelParams
}

type unitResult struct {
	outcomes []model.Outcome
	failure  *Failure
	done     bool
}

// Run backtests every unit of the plan. Skipped units and undefined skill
// scores are reported in Result.Failures; only a schema or leakage error
// aborts the run. A cancelled context stops the run between units and the
// result covers the units that completed, with Partial set.
func (h *Harness) Run(ctx context.Context, tables *history.Tables, plan Plan) (*Result, error) {
	if plan.Settings == nil {
		return nil, eris.New("backtest: plan has no settings")
	}
	if tables == nil {
		return nil, eris.New("backtest: no history tables")
	}

	res := &Result{ID: uuid.New(), StartedAt: h.clock.Now().UTC()}
	log := zap.L().With(zap.String("component", "backtest"), zap.String("run_id", res.ID.String()))

	units := planUnits(tables, plan)
	res.Units = len(units)
	log.Info("backtest started",
		zap.Int("units", len(units)),
		zap.Int("weeks", len(plan.Settings.Weeks)),
		zap.Int("concurrency", h.concurrency),
	)

	results := make([]unitResult, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)

	for i, u := range units {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			r, err := h.runUnit(tables, u, plan.Settings)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("backtest aborted", zap.Error(err))
		return nil, err
	}

	var outcomes []model.Outcome
	expected := make(map[evaluate.Cell]int)
	for i, r := range results {
		u := units[i]
		if r.failure == nil || !errors.Is(r.failure.err, model.ErrInsufficientHistory) {
			for _, w := range plan.Settings.Weeks {
				expected[evaluate.Cell{Commodity: u.key.Commodity, Week: w}]++
			}
		}
		switch {
		case r.failure != nil:
			log.Warn("unit skipped",
				zap.String("series", u.key.String()),
				zap.Int("year", u.year),
				zap.String("kind", r.failure.Kind),
				zap.Error(r.failure.err),
			)
			res.Skipped++
			res.Failures = append(res.Failures, *r.failure)
			h.countUnit(u, "skipped")
		case r.done:
			res.Completed++
			outcomes = append(outcomes, r.outcomes...)
			h.countUnit(u, "ok")
		default:
			h.countUnit(u, "cancelled")
		}
	}
	res.Partial = ctx.Err() != nil && res.Completed+res.Skipped < res.Units

	res.Accuracy = evaluate.Accuracy(outcomes, expected, plan.Settings.TargetRMSE)
	res.WorstCases = evaluate.WorstCases(outcomes, plan.Settings.TopK)
	res.Bias = evaluate.StateBiases(outcomes)

	skill, skillErrs := scorer.Skill(outcomes, scorer.Options{
		Benchmarks:    plan.Settings.Benchmarks,
		WarnThreshold: plan.Settings.SkillWarnThreshold,
	})
	res.Skill = skill
	for _, err := range skillErrs {
		res.Failures = append(res.Failures, Failure{Kind: KindDivisionUndefined, Message: err.Error(), err: err})
	}
	sortFailures(res.Failures)

	res.FinishedAt = h.clock.Now().UTC()
	if h.metrics != nil {
		h.metrics.RunDuration.Observe(res.Elapsed().Seconds())
		h.metrics.ObserveEvaluation(res.Accuracy, res.Skill)
	}

	log.Info("backtest finished",
		zap.Int("completed", res.Completed),
		zap.Int("skipped", res.Skipped),
		zap.Int("outcomes", len(outcomes)),
		zap.Bool("partial", res.Partial),
		zap.Duration("elapsed", res.Elapsed()),
	)
	return res, nil
}

// runUnit forecasts one unit. A recoverable error becomes a failure; a
// returned error aborts the run.
func (h *Harness) runUnit(tables *history.Tables, u unit, s *config.BacktestSettings) (unitResult, error) {
	start := h.clock.Now()
	defer func() {
		if h.metrics != nil {
			h.metrics.UnitDuration.Observe(h.clock.Since(start).Seconds())
		}
	}()

	m := h.newModel(u.params)
	tk := forecast.TrendKey{Revision: tables.Revision(), Series: u.key, ExcludedYear: u.year, Params: u.params}

	trend, err := h.trend(m, tables, tk)
	if err != nil {
		if errors.Is(err, model.ErrLeakageViolation) || errors.Is(err, model.ErrSchemaMismatch) {
			return unitResult{}, err
		}
		return unitResult{failure: newFailure(u, err)}, nil
	}

	training := forecast.TrainingSeasons(tables, u.key, trend.TrainingYears)
	target := forecast.TargetSeason(tables, u.key, u.year)
	actual, _ := tables.Actual(u.key, u.year)
	benchmarks := benchmarkForecasts(tables, u.key, u.year)

	outcomes := make([]model.Outcome, 0, len(s.Weeks))
	for _, w := range s.Weeks {
		rec, _, err := h.memo.Record(forecast.RecordKey{TrendKey: tk, Week: w}, func() (model.ForecastRecord, error) {
			recs, err := forecast.ForecastSeason(m, trend, training, target, []model.ForecastWeek{w})
			if err != nil {
				return model.ForecastRecord{}, err
			}
			return recs[0], nil
		})
		if err != nil {
			return unitResult{failure: newFailure(u, err)}, nil
		}

		bm := make(map[model.Benchmark]float64, len(benchmarks)+1)
		for b, v := range benchmarks {
			bm[b] = v
		}
		bm[model.BenchmarkTrend] = rec.TrendYield
		outcomes = append(outcomes, model.Outcome{Record: rec, Actual: actual, Benchmarks: bm})
	}

	return unitResult{outcomes: outcomes, done: true}, nil
}

// FitTrend returns the trend used to forecast year for key, fitting it on a
// memo miss. The fit is checked against leakage of the held-out year.
func (h *Harness) FitTrend(tables *history.Tables, key model.SeriesKey, year int, params config.ModelParams) (*model.TrendModel, error) {
	tk := forecast.TrendKey{Revision: tables.Revision(), Series: key, ExcludedYear: year, Params: params}
	return h.trend(h.newModel(params), tables, tk)
}

func (h *Harness) trend(m forecast.Model, tables *history.Tables, tk forecast.TrendKey) (*model.TrendModel, error) {
	trend, hit, err := h.memo.Trend(tk, func() (*model.TrendModel, error) {
		return m.FitTrend(tk.Series, tables.Series(tk.Series), tk.ExcludedYear)
	})
	if h.metrics != nil {
		result := "miss"
		if hit {
			result = "hit"
		}
		h.metrics.TrendCache.WithLabelValues(result).Inc()
	}
	if err != nil {
		return nil, err
	}
	if !trend.Valid() {
		return nil, eris.Errorf("backtest: trend for %s test year %d has non-finite coefficients %v",
			tk.Series, tk.ExcludedYear, trend.Coefficients)
	}
	if trend.ExcludedYear != tk.ExcludedYear || trend.TrainedOn(tk.ExcludedYear) {
		return nil, eris.Wrapf(model.ErrLeakageViolation,
			"backtest: trend for %s test year %d was trained on %v", tk.Series, tk.ExcludedYear, trend.TrainingYears)
	}
	return trend, nil
}

// ObserveActual records a newly known actual yield and drops every memoized
// fit for its series. The returned tables carry a new revision and replace
// the old ones for later runs; a run still in flight on the old tables only
// repopulates entries under the old revision.
func (h *Harness) ObserveActual(tables *history.Tables, obs model.YieldObservation) (*history.Tables, error) {
	next, err := tables.WithActual(obs)
	if err != nil {
		return nil, err
	}
	key := model.SeriesKey{Commodity: obs.Commodity, State: obs.State}
	dropped := h.memo.Invalidate(key)
	zap.L().With(zap.String("component", "backtest")).Info("actual observed",
		zap.String("series", key.String()),
		zap.Int("year", obs.Year),
		zap.Int("invalidated", dropped),
	)
	return next, nil
}

func (h *Harness) countUnit(u unit, outcome string) {
	if h.metrics != nil {
		h.metrics.Units.WithLabelValues(string(u.key.Commodity), outcome).Inc()
	}
}

// planUnits lists the units of plan in commodity, state, year order.
func planUnits(tables *history.Tables, plan Plan) []unit {
	var units []unit
	for _, c := range plan.Settings.Commodities {
		params := plan.Settings.ParamsFor(c)
		for _, state := range tables.States(c) {
			if len(plan.States) > 0 && !slices.Contains(plan.States, state) {
				continue
			}
			key := model.SeriesKey{Commodity: c, State: state}
			for _, y := range tables.Years(key) {
				if (plan.FromYear != 0 && y < plan.FromYear) || (plan.ToYear != 0 && y > plan.ToYear) {
					continue
				}
				units = append(units, unit{key: key, year: y, params: params})
			}
		}
	}
	return units
}

// benchmarkForecasts returns the naive forecasts computable for year. The
// trend benchmark comes from the forecast record itself.
func benchmarkForecasts(tables *history.Tables, key model.SeriesKey, year int) map[model.Benchmark]float64 {
	out := make(map[model.Benchmark]float64, 2)
	if prev, ok := tables.Actual(key, year-1); ok {
		out[model.BenchmarkPriorYear] = prev
	}

	var sum float64
	for y := year - 5; y < year; y++ {
		v, ok := tables.Actual(key, y)
		if !ok {
			return out
		}
		sum += v
	}
	out[model.BenchmarkFiveYearAvg] = sum / 5
	return out
}
