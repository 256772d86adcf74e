package monitoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cropcast/internal/model"
)

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.Units.WithLabelValues("corn", "ok").Inc()
	assert.InDelta(t, 1, testutil.ToFloat64(a.Units.WithLabelValues("corn", "ok")), 1e-12)
	assert.InDelta(t, 0, testutil.ToFloat64(b.Units.WithLabelValues("corn", "ok")), 1e-12)
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RMSE.WithLabelValues("soybeans", "26").Set(1.5)
	m.TrendCache.WithLabelValues("hit").Add(3)

	path := filepath.Join(t.TempDir(), "cropcast.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `cropcast_forecast_rmse{commodity="soybeans",week="26"} 1.5`)
	assert.Contains(t, string(data), `cropcast_trend_cache_total{result="hit"} 3`)
}

func TestMetrics_WriteTextfileBadPath(t *testing.T) {
	err := NewMetrics().WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))
	require.Error(t, err)
}

func TestMetrics_ObserveEvaluation(t *testing.T) {
	m := NewMetrics()
	v := 0.25
	m.ObserveEvaluation(
		[]model.AccuracyMetric{{Commodity: model.Corn, Week: 26, RMSE: 4.5}},
		[]model.SkillScore{
			{Commodity: model.Corn, Week: 26, Benchmark: model.BenchmarkTrend, Value: &v},
			{Commodity: model.Corn, Week: 26, Benchmark: model.BenchmarkPriorYear},
		},
	)
	assert.InDelta(t, 4.5, testutil.ToFloat64(m.RMSE.WithLabelValues("corn", "26")), 1e-12)
	assert.InDelta(t, 0.25, testutil.ToFloat64(m.Skill.WithLabelValues("corn", "26", "trend")), 1e-12)
	// Undefined skill is never exported.
	assert.Equal(t, 1, testutil.CollectAndCount(m.Skill))
}
