package forecast

import (
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/cropcast/internal/estimate"
	"github.com/sells-group/cropcast/internal/history"
	"github.com/sells-group/cropcast/internal/model"
)

// Issue produces the in-season forecasts for one state-year from every
// other year's actuals. When the state's own history is too short the trend
// falls back to the regional average of the commodity.
func Issue(m Model, tables *history.Tables, key model.SeriesKey, year int, weeks []model.ForecastWeek, window int) ([]model.ForecastRecord, *model.TrendModel, error) {
	log := zap.L().With(zap.String("component", "forecast"), zap.String("series", key.String()), zap.Int("year", year))

	trend, err := m.FitTrend(key, tables.Series(key), year)
	if errors.Is(err, model.ErrInsufficientHistory) {
		log.Warn("state history too short, using regional average", zap.Error(err))
		trend, err = estimate.Fallback(key, tables.Commodity(key.Commodity), year, window)
	}
	if err != nil {
		return nil, nil, err
	}

	training := TrainingSeasons(tables, key, trend.TrainingYears)
	records, err := ForecastSeason(m, trend, training, TargetSeason(tables, key, year), weeks)
	if err != nil {
		return nil, nil, err
	}

	log.Info("forecast issued",
		zap.Int("weeks", len(records)),
		zap.Bool("fallback", trend.Fallback),
		zap.Int("training_years", len(trend.TrainingYears)),
	)
	return records, trend, nil
}
