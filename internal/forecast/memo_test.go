package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cropcast/internal/config"
	"github.com/sells-group/cropcast/internal/model"
)

func TestMemo_TrendAndInvalidate(t *testing.T) {
	memo, err := NewMemo(16)
	require.NoError(t, err)

	p := config.DefaultModelParams()
	ne := model.SeriesKey{Commodity: model.Corn, State: "NE"}
	fits := 0
	fit := func() (*model.TrendModel, error) {
		fits++
		return model.NewTrendModel(ia, 15, 2020, 2015, []float64{1}, 0, nil), nil
	}

	_, hit, err := memo.Trend(TrendKey{Series: ia, ExcludedYear: 2020, Params: p}, fit)
	require.NoError(t, err)
	assert.False(t, hit)
	_, hit, err = memo.Trend(TrendKey{Series: ia, ExcludedYear: 2020, Params: p}, fit)
	require.NoError(t, err)
	assert.True(t, hit)
	_, _, err = memo.Trend(TrendKey{Series: ne, ExcludedYear: 2020, Params: p}, fit)
	require.NoError(t, err)
	assert.Equal(t, 2, fits)

	_, _, err = memo.Record(RecordKey{TrendKey: TrendKey{Series: ia, ExcludedYear: 2020, Params: p}, Week: 26},
		func() (model.ForecastRecord, error) { return model.ForecastRecord{Predicted: 1}, nil })
	require.NoError(t, err)

	assert.Equal(t, 2, memo.Invalidate(ia))

	_, hit, err = memo.Trend(TrendKey{Series: ia, ExcludedYear: 2020, Params: p}, fit)
	require.NoError(t, err)
	assert.False(t, hit, "invalidated series must refit")
	_, hit, err = memo.Trend(TrendKey{Series: ne, ExcludedYear: 2020, Params: p}, fit)
	require.NoError(t, err)
	assert.True(t, hit, "other series stay cached")

	trends, records := memo.Stats()
	assert.Equal(t, 2, trends.Entries)
	assert.Equal(t, 0, records.Entries)
}

func TestMemo_ParamsArePartOfKey(t *testing.T) {
	memo, err := NewMemo(16)
	require.NoError(t, err)
	a := config.DefaultModelParams()
	b := a
	b.FitWindowYears = 10

	fit := func() (*model.TrendModel, error) { return &model.TrendModel{}, nil }
	_, _, err = memo.Trend(TrendKey{Series: ia, ExcludedYear: 2020, Params: a}, fit)
	require.NoError(t, err)
	_, hit, err := memo.Trend(TrendKey{Series: ia, ExcludedYear: 2020, Params: b}, fit)
	require.NoError(t, err)
	assert.False(t, hit)
}
