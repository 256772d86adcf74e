package model

import "github.com/rotisserie/eris"

// Benchmark names a naive forecast the model is scored against.
type Benchmark string

const (
	BenchmarkTrend       Benchmark = "trend"         // trend-only forecast
	BenchmarkPriorYear   Benchmark = "prior_year"    // previous year's actual
	BenchmarkFiveYearAvg Benchmark = "five_year_avg" // mean of the five preceding actuals
)

// AllBenchmarks is the full benchmark set in report order.
var AllBenchmarks = []Benchmark{BenchmarkTrend, BenchmarkPriorYear, BenchmarkFiveYearAvg}

// ParseBenchmark validates a benchmark name.
func ParseBenchmark(s string) (Benchmark, error) {
	switch b := Benchmark(s); b {
	case BenchmarkTrend, BenchmarkPriorYear, BenchmarkFiveYearAvg:
		return b, nil
	default:
		return "", eris.Errorf("model: unknown benchmark %q (valid: trend, prior_year, five_year_avg)", s)
	}
}
