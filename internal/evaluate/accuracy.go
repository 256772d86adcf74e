package evaluate

import (
	"math"

	"github.com/sells-group/cropcast/internal/model"
)

// directionTolerance is the deviation from trend treated as no direction.
const directionTolerance = 1e-6

// Accuracy computes one AccuracyMetric per cell with at least one outcome.
// expected gives the full test-set size per cell; a metric whose N falls
// short of it is marked Partial. targets maps weeks to their RMSE target.
func Accuracy(outcomes []model.Outcome, expected map[Cell]int, targets map[model.ForecastWeek]float64) []model.AccuracyMetric {
	groups := Group(outcomes)
	out := make([]model.AccuracyMetric, 0, len(groups))

	for _, cell := range Cells(groups) {
		cases := groups[cell]
		errs := make([]float64, len(cases))
		agree := 0
		for i, o := range cases {
			errs[i] = o.Error()
			if direction(o.Record.Predicted-o.Record.TrendYield) == direction(o.Actual-o.Record.TrendYield) {
				agree++
			}
		}

		m := model.AccuracyMetric{
			Commodity:           cell.Commodity,
			Week:                cell.Week,
			RMSE:                RMSE(errs),
			MAE:                 MAE(errs),
			MeanError:           Mean(errs),
			DirectionalAccuracy: float64(agree) / float64(len(cases)),
			N:                   len(cases),
			ExpectedN:           expected[cell],
			Status:              model.TargetUnset,
		}
		if m.ExpectedN < m.N {
			m.ExpectedN = m.N
		}
		m.Partial = m.N < m.ExpectedN

		if target, ok := targets[cell.Week]; ok {
			m.TargetRMSE = target
			m.Status = model.TargetFail
			if m.RMSE <= target {
				m.Status = model.TargetPass
			}
		}
		out = append(out, m)
	}
	return out
}

// direction returns -1, 0, or 1 for a deviation from trend.
func direction(d float64) int {
	switch {
	case math.Abs(d) < directionTolerance:
		return 0
	case d > 0:
		return 1
	default:
		return -1
	}
}
