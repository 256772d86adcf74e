package model

import (
	"slices"

	"github.com/rotisserie/eris"
)

// ForecastWeek is a week-of-year checkpoint at which a forecast is issued.
type ForecastWeek int

// CanonicalWeeks lists every valid forecast week in ascending order.
var CanonicalWeeks = []ForecastWeek{18, 22, 26, 30, 34, 38}

// ParseWeek validates w against the canonical set.
func ParseWeek(w int) (ForecastWeek, error) {
	fw := ForecastWeek(w)
	if !fw.Valid() {
		return 0, eris.Errorf("model: forecast week %d is not canonical (valid: 18, 22, 26, 30, 34, 38)", w)
	}
	return fw, nil
}

// Valid reports whether w is a canonical forecast week.
func (w ForecastWeek) Valid() bool {
	return slices.Contains(CanonicalWeeks, w)
}

// ParseWeeks validates and sorts a list of weeks, dropping duplicates.
func ParseWeeks(ws []int) ([]ForecastWeek, error) {
	if len(ws) == 0 {
		return nil, eris.New("model: at least one forecast week is required")
	}
	seen := make(map[ForecastWeek]bool, len(ws))
	out := make([]ForecastWeek, 0, len(ws))
	for _, w := range ws {
		fw, err := ParseWeek(w)
		if err != nil {
			return nil, err
		}
		if seen[fw] {
			continue
		}
		seen[fw] = true
		out = append(out, fw)
	}
	slices.Sort(out)
	return out, nil
}
