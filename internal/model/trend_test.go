package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrendModel_PredictLinear(t *testing.T) {
	key := SeriesKey{Commodity: Corn, State: "IA"}
	// yield = 180 + 2*(year-2010)
	m := NewTrendModel(key, 15, 0, 2010, []float64{180, 2}, 1.5, []int{2012, 2008, 2010})

	assert.InDelta(t, 180, m.Predict(2010), 1e-9)
	assert.InDelta(t, 190, m.Predict(2015), 1e-9)
	assert.InDelta(t, 2.0, m.Slope, 1e-9)
	assert.InDelta(t, 180-2*2010, m.Intercept, 1e-9)
	assert.Equal(t, 1, m.Degree)
	assert.Equal(t, []int{2008, 2010, 2012}, m.TrainingYears)
	assert.True(t, m.TrainedOn(2010))
	assert.False(t, m.TrainedOn(2011))
	assert.True(t, m.Valid())
}

func TestTrendModel_PredictQuadratic(t *testing.T) {
	m := NewTrendModel(SeriesKey{Commodity: Cotton, State: "TX"}, 10, 0, 2000, []float64{1, 0, 0.5}, 0, nil)
	assert.InDelta(t, 1+0.5*9, m.Predict(2003), 1e-9)
}

func TestNewTrendModel_CopiesSlices(t *testing.T) {
	coeffs := []float64{10, 1}
	years := []int{2001, 2002}
	m := NewTrendModel(SeriesKey{Commodity: Corn, State: "IL"}, 5, 0, 2001.5, coeffs, 0, years)
	coeffs[0] = 999
	years[0] = 1900
	assert.InDelta(t, 10, m.Coefficients[0], 1e-9)
	assert.Equal(t, 2001, m.TrainingYears[0])
}

func TestTrendModel_Invalid(t *testing.T) {
	m := &TrendModel{Coefficients: []float64{math.NaN()}}
	assert.False(t, m.Valid())
	assert.False(t, (&TrendModel{}).Valid())
}

func TestOutcome_Error(t *testing.T) {
	o := Outcome{Record: ForecastRecord{Predicted: 55}, Actual: 50}
	assert.InDelta(t, 5, o.Error(), 1e-9)
}
