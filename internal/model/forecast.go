package model

// Interval is a prediction interval around a point forecast.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Level float64 `json:"level"` // nominal coverage, e.g. 0.9
}

// ForecastRecord is a yield forecast issued at one forecast week. Immutable
// once created.
type ForecastRecord struct {
	Commodity          Commodity    `json:"commodity"`
	State              string       `json:"state"`
	Year               int          `json:"year"`
	Week               ForecastWeek `json:"forecast_week"`
	Predicted          float64      `json:"predicted_yield"`
	TrendYield         float64      `json:"trend_yield"`
	Interval           Interval     `json:"interval"`
	ConditionDeviation float64      `json:"condition_deviation"`
	ConditionAvailable bool         `json:"condition_available"`
}

// Outcome pairs a ForecastRecord with the now-known actual yield and the
// naive benchmark forecasts for the same state-year.
type Outcome struct {
	Record     ForecastRecord        `json:"record"`
	Actual     float64               `json:"actual"`
	Benchmarks map[Benchmark]float64 `json:"benchmarks,omitempty"` // only benchmarks computable for this year
}

// Error returns predicted minus actual; positive means over-prediction.
func (o Outcome) Error() float64 {
	return o.Record.Predicted - o.Actual
}
