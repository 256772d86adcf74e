package model

// TargetStatus is the pass/fail outcome of comparing RMSE to its target.
type TargetStatus string

const (
	TargetPass  TargetStatus = "pass"
	TargetFail  TargetStatus = "fail"
	TargetUnset TargetStatus = "unset"
)

// AccuracyMetric aggregates forecast accuracy for one (commodity, week).
type AccuracyMetric struct {
	Commodity           Commodity    `json:"commodity"`
	Week                ForecastWeek `json:"forecast_week"`
	RMSE                float64      `json:"rmse"`
	MAE                 float64      `json:"mae"`
	MeanError           float64      `json:"mean_error"`
	DirectionalAccuracy float64      `json:"directional_accuracy"`
	N                   int          `json:"n"`
	ExpectedN           int          `json:"expected_n"`
	Partial             bool         `json:"partial,omitempty"`
	TargetRMSE          float64      `json:"target_rmse,omitempty"`
	Status              TargetStatus `json:"status"`
}

// SkillScore is the relative RMSE improvement over a benchmark. A nil Value
// means the score is undefined because the benchmark RMSE was zero.
type SkillScore struct {
	Commodity     Commodity    `json:"commodity"`
	Week          ForecastWeek `json:"forecast_week"`
	Benchmark     Benchmark    `json:"benchmark"`
	Value         *float64     `json:"value"`
	ModelRMSE     float64      `json:"model_rmse"`
	BenchmarkRMSE float64      `json:"benchmark_rmse"`
	N             int          `json:"n"`
	Flagged       bool         `json:"flagged,omitempty"` // near-zero or negative skill
}

// Undefined reports whether the score could not be computed.
func (s SkillScore) Undefined() bool {
	return s.Value == nil
}

// ErrorCase is a single forecast error used for worst-case diagnosis.
type ErrorCase struct {
	Commodity Commodity    `json:"commodity"`
	Year      int          `json:"year"`
	State     string       `json:"state"`
	Week      ForecastWeek `json:"forecast_week"`
	Predicted float64      `json:"predicted"`
	Actual    float64      `json:"actual"`
	Error     float64      `json:"error"`
}

// StateBias summarizes signed error for one state across all forecast weeks.
type StateBias struct {
	Commodity        Commodity `json:"commodity"`
	State            string    `json:"state"`
	MeanError        float64   `json:"mean_error"`
	N                int       `json:"n"`
	OverPredictedPct float64   `json:"over_predicted_pct"`
	Systematic       bool      `json:"systematic"`
}
