package forecast

import (
	"github.com/sells-group/cropcast/internal/cache"
	"github.com/sells-group/cropcast/internal/config"
	"github.com/sells-group/cropcast/internal/model"
)

// TrendKey identifies a memoized trend fit. Revision is the
// history.Tables revision the fit was computed from.
type TrendKey struct {
	Revision     uint64
	Series       model.SeriesKey
	ExcludedYear int
	Params       config.ModelParams
}

// RecordKey identifies a memoized forecast record.
type RecordKey struct {
	TrendKey
	Week model.ForecastWeek
}

// Memo is the explicit cache of trend fits and forecast records shared by
// backtest units. Entries for a series are dropped with Invalidate whenever a
// new actual yield for it becomes available.
type Memo struct {
	trends  *cache.Cache[TrendKey, *model.TrendModel]
	records *cache.Cache[RecordKey, model.ForecastRecord]
}

// NewMemo creates a memo holding at most size entries of each kind.
func NewMemo(size int) (*Memo, error) {
	trends, err := cache.New[TrendKey, *model.TrendModel](size)
	if err != nil {
		return nil, err
	}
	records, err := cache.New[RecordKey, model.ForecastRecord](size)
	if err != nil {
		return nil, err
	}
	return &Memo{trends: trends, records: records}, nil
}

// Trend returns the memoized trend for key, fitting it with fit on a miss.
// The bool reports a cache hit.
func (m *Memo) Trend(key TrendKey, fit func() (*model.TrendModel, error)) (*model.TrendModel, bool, error) {
	return m.trends.GetOrCompute(key, fit)
}

// Record returns the memoized forecast record for key, producing it with
// produce on a miss.
func (m *Memo) Record(key RecordKey, produce func() (model.ForecastRecord, error)) (model.ForecastRecord, bool, error) {
	return m.records.GetOrCompute(key, produce)
}

// Invalidate drops every entry derived from the series and returns how many
// were removed.
func (m *Memo) Invalidate(series model.SeriesKey) int {
	n := m.trends.Invalidate(func(k TrendKey) bool { return k.Series == series })
	n += m.records.Invalidate(func(k RecordKey) bool { return k.Series == series })
	return n
}

// Stats returns cache counters for trends and records.
func (m *Memo) Stats() (trends, records cache.Stats) {
	return m.trends.Stats(), m.records.Stats()
}
