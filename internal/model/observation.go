package model

// YieldObservation is a single historical actual yield for a state-year.
type YieldObservation struct {
	Commodity Commodity `json:"commodity"`
	State     string    `json:"state"`
	Year      int       `json:"year"`
	Yield     float64   `json:"yield"`
}

// ConditionSnapshot is the crop-condition and weather reading for one
// growing week of a state-year.
type ConditionSnapshot struct {
	Commodity        Commodity          `json:"commodity"`
	State            string             `json:"state"`
	Year             int                `json:"year"`
	Week             int                `json:"week"`
	GoodExcellentPct float64            `json:"good_excellent_pct"`
	Weather          map[string]float64 `json:"weather,omitempty"` // optional indices, e.g. precip_index
}

// SeriesKey identifies a single state/commodity history.
type SeriesKey struct {
	Commodity Commodity `json:"commodity"`
	State     string    `json:"state"`
}

func (k SeriesKey) String() string {
	return string(k.Commodity) + "/" + k.State
}
