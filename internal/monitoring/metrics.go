// Package monitoring exposes Prometheus metrics for backtest runs and
// raises alerts when a run shows red flags.
package monitoring

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/sells-group/cropcast/internal/model"
)

const namespace = "cropcast"

// Metrics holds the Prometheus collectors for a backtest run. Each Metrics
// owns its registry so runs and tests never collide on registration.
type Metrics struct {
	Registry *prometheus.Registry

	Units        *prometheus.CounterVec // labels: commodity, outcome={ok,skipped,cancelled}
	UnitDuration prometheus.Histogram
	TrendCache   *prometheus.CounterVec // labels: result={hit,miss}
	RunDuration  prometheus.Histogram

	RMSE  *prometheus.GaugeVec // labels: commodity, week
	Skill *prometheus.GaugeVec // labels: commodity, week, benchmark
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backtest_units_total",
			Help:      "Backtest units by commodity and outcome.",
		}, []string{"commodity", "outcome"}),
		UnitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backtest_unit_duration_seconds",
			Help:      "Duration of one (commodity, state, year) unit.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		TrendCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trend_cache_total",
			Help:      "Trend cache lookups by result.",
		}, []string{"result"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backtest_run_duration_seconds",
			Help:      "Duration of a complete backtest run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
		RMSE: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_rmse",
			Help:      "Backtest RMSE by commodity and forecast week.",
		}, []string{"commodity", "week"}),
		Skill: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_skill",
			Help:      "Skill score by commodity, forecast week, and benchmark. Undefined scores are not exported.",
		}, []string{"commodity", "week", "benchmark"}),
	}

	m.Registry.MustRegister(
		m.Units,
		m.UnitDuration,
		m.TrendCache,
		m.RunDuration,
		m.RMSE,
		m.Skill,
	)
	return m
}

// WriteTextfile writes every metric in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return eris.Wrapf(err, "monitoring: write textfile %s", path)
	}
	return nil
}

// ObserveEvaluation sets the RMSE and skill gauges from a finished run.
func (m *Metrics) ObserveEvaluation(acc []model.AccuracyMetric, skill []model.SkillScore) {
	for _, a := range acc {
		m.RMSE.WithLabelValues(string(a.Commodity), strconv.Itoa(int(a.Week))).Set(a.RMSE)
	}
	for _, s := range skill {
		if s.Undefined() {
			continue
		}
		m.Skill.WithLabelValues(string(s.Commodity), strconv.Itoa(int(s.Week)), string(s.Benchmark)).Set(*s.Value)
	}
}
