package forecast

import (
	"sort"

	"github.com/sells-group/cropcast/internal/history"
	"github.com/sells-group/cropcast/internal/model"
)

// Season is one state-year of inputs: the actual yield (when known) and the
// weekly condition snapshots sorted by week.
type Season struct {
	Year      int
	Actual    float64
	HasActual bool
	Snapshots []model.ConditionSnapshot
}

// AsOf returns the latest snapshot at or before week.
func (s Season) AsOf(week model.ForecastWeek) (model.ConditionSnapshot, bool) {
	i := sort.Search(len(s.Snapshots), func(i int) bool {
		return s.Snapshots[i].Week > int(week)
	})
	if i == 0 {
		return model.ConditionSnapshot{}, false
	}
	return s.Snapshots[i-1], true
}

// TrainingSeasons builds the seasons for years from tables. Years without an
// actual for key are left out.
func TrainingSeasons(tables *history.Tables, key model.SeriesKey, years []int) []Season {
	out := make([]Season, 0, len(years))
	for _, y := range years {
		actual, ok := tables.Actual(key, y)
		if !ok {
			continue
		}
		out = append(out, Season{Year: y, Actual: actual, HasActual: true, Snapshots: tables.Snapshots(key, y)})
	}
	return out
}

// TargetSeason builds the season being forecast. Its actual is never
// attached, so a forecast cannot see it.
func TargetSeason(tables *history.Tables, key model.SeriesKey, year int) Season {
	return Season{Year: year, Snapshots: tables.Snapshots(key, year)}
}
