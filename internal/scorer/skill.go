// Package scorer scores forecast skill against naive benchmarks.
package scorer

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/cropcast/internal/evaluate"
	"github.com/sells-group/cropcast/internal/model"
)

// DefaultWarnThreshold is the skill at or below which a cell is flagged.
const DefaultWarnThreshold = 0.05

// Options configures skill scoring.
type Options struct {
	Benchmarks    []model.Benchmark
	WarnThreshold float64
}

// Skill computes one SkillScore per (commodity, week, benchmark). Each
// benchmark is scored on the outcomes where it is available, with the model
// RMSE taken over the same outcomes. A zero benchmark RMSE leaves the score
// undefined and is reported in the returned errors, which wrap
// model.ErrDivisionUndefined; it never stops scoring.
func Skill(outcomes []model.Outcome, opts Options) ([]model.SkillScore, []error) {
	groups := evaluate.Group(outcomes)

	var (
		out  []model.SkillScore
		errs []error
	)
	for _, cell := range evaluate.Cells(groups) {
		for _, b := range opts.Benchmarks {
			var modelErrs, benchErrs []float64
			for _, o := range groups[cell] {
				forecast, ok := o.Benchmarks[b]
				if !ok {
					continue
				}
				modelErrs = append(modelErrs, o.Error())
				benchErrs = append(benchErrs, forecast-o.Actual)
			}
			if len(modelErrs) == 0 {
				continue
			}

			s := model.SkillScore{
				Commodity:     cell.Commodity,
				Week:          cell.Week,
				Benchmark:     b,
				ModelRMSE:     evaluate.RMSE(modelErrs),
				BenchmarkRMSE: evaluate.RMSE(benchErrs),
				N:             len(modelErrs),
			}
			if s.BenchmarkRMSE == 0 {
				errs = append(errs, eris.Wrapf(model.ErrDivisionUndefined,
					"scorer: %s week %d vs %s: benchmark rmse is zero", cell.Commodity, cell.Week, b))
			} else {
				// (b-m)/b keeps the sign exact: positive iff the model beats the benchmark.
				v := (s.BenchmarkRMSE - s.ModelRMSE) / s.BenchmarkRMSE
				s.Value = &v
				s.Flagged = v <= opts.WarnThreshold
			}
			out = append(out, s)
		}
	}
	return out, errs
}
