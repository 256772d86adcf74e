package model

import (
	"math"
	"slices"
)

// TrendModel is a fitted yield-vs-year polynomial for one state/commodity.
// A TrendModel is never mutated after construction; refitting produces a new
// value.
type TrendModel struct {
	Commodity     Commodity `json:"commodity"`
	State         string    `json:"state"`
	FitWindow     int       `json:"fit_window"`
	ExcludedYear  int       `json:"excluded_year,omitempty"` // 0 = none
	Degree        int       `json:"degree"`
	Center        float64   `json:"center"`       // mean training year; coefficients apply to (year - Center)
	Coefficients  []float64 `json:"coefficients"` // ascending powers
	Slope         float64   `json:"slope"`        // yield change per year at Center
	Intercept     float64   `json:"intercept"`    // implied yield at year 0
	ResidualStd   float64   `json:"residual_std"`
	TrainingYears []int     `json:"training_years"`
	Fallback      bool      `json:"fallback,omitempty"` // regional average used in place of a state fit
}

// NewTrendModel builds a TrendModel, copying the slices it is given.
func NewTrendModel(key SeriesKey, window, excluded int, center float64, coeffs []float64, residualStd float64, years []int) *TrendModel {
	m := &TrendModel{
		Commodity:     key.Commodity,
		State:         key.State,
		FitWindow:     window,
		ExcludedYear:  excluded,
		Degree:        len(coeffs) - 1,
		Center:        center,
		Coefficients:  slices.Clone(coeffs),
		ResidualStd:   residualStd,
		TrainingYears: slices.Clone(years),
	}
	slices.Sort(m.TrainingYears)
	if len(coeffs) > 1 {
		m.Slope = coeffs[1]
	}
	m.Intercept = m.Predict(0)
	return m
}

// Predict evaluates the trend at the given year.
func (m *TrendModel) Predict(year int) float64 {
	x := float64(year) - m.Center
	var y float64
	for i := len(m.Coefficients) - 1; i >= 0; i-- {
		y = y*x + m.Coefficients[i]
	}
	return y
}

// TrainedOn reports whether year was part of the training set.
func (m *TrendModel) TrainedOn(year int) bool {
	_, found := slices.BinarySearch(m.TrainingYears, year)
	return found
}

// Key returns the series the model was fit for.
func (m *TrendModel) Key() SeriesKey {
	return SeriesKey{Commodity: m.Commodity, State: m.State}
}

// Valid reports whether the model has finite coefficients.
func (m *TrendModel) Valid() bool {
	if len(m.Coefficients) == 0 {
		return false
	}
	for _, c := range m.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
