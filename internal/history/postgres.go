package history

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cropcast/internal/db"
	"github.com/sells-group/cropcast/internal/model"
)

// Schema creates the Postgres history tables.
const Schema = `
CREATE TABLE IF NOT EXISTS crop_yields (
	commodity TEXT NOT NULL,
	state     TEXT NOT NULL,
	year      INTEGER NOT NULL,
	yield     DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (commodity, state, year)
);

CREATE TABLE IF NOT EXISTS crop_conditions (
	commodity          TEXT NOT NULL,
	state              TEXT NOT NULL,
	year               INTEGER NOT NULL,
	week               INTEGER NOT NULL,
	good_excellent_pct DOUBLE PRECISION NOT NULL,
	precip_index       DOUBLE PRECISION,
	temp_index         DOUBLE PRECISION,
	PRIMARY KEY (commodity, state, year, week)
);
`

const (
	selectYields     = `SELECT commodity, state, year, yield FROM crop_yields ORDER BY commodity, state, year`
	selectConditions = `SELECT commodity, state, year, week, good_excellent_pct, precip_index, temp_index FROM crop_conditions ORDER BY commodity, state, year, week`
)

// Migrate creates the history tables if they do not exist.
func Migrate(ctx context.Context, pool db.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return eris.Wrap(err, "history: migrate")
	}
	return nil
}

// PostgresSource loads the tables from crop_yields and crop_conditions.
type PostgresSource struct {
	Pool db.Pool
}

// Load implements Source.
func (s *PostgresSource) Load(ctx context.Context) (*Tables, error) {
	yields, err := s.yields(ctx)
	if err != nil {
		return nil, err
	}
	conds, err := s.conditions(ctx)
	if err != nil {
		return nil, err
	}

	t, err := NewTables(yields, conds)
	if err != nil {
		return nil, err
	}
	zap.L().With(zap.String("component", "history")).Info("loaded history from postgres",
		zap.Int("yield_rows", len(yields)),
		zap.Int("condition_rows", len(conds)),
	)
	return t, nil
}

func (s *PostgresSource) yields(ctx context.Context) ([]model.YieldObservation, error) {
	rows, err := s.Pool.Query(ctx, selectYields)
	if err != nil {
		return nil, eris.Wrap(err, "history: query yields")
	}
	defer rows.Close()

	var out []model.YieldObservation
	for rows.Next() {
		var (
			y         model.YieldObservation
			commodity string
		)
		if err := rows.Scan(&commodity, &y.State, &y.Year, &y.Yield); err != nil {
			return nil, eris.Wrapf(model.ErrSchemaMismatch, "history: scan yield row: %v", err)
		}
		c, err := model.ParseCommodity(commodity)
		if err != nil {
			continue
		}
		y.Commodity = c
		out = append(out, y)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "history: iterate yields")
	}
	return out, nil
}

func (s *PostgresSource) conditions(ctx context.Context) ([]model.ConditionSnapshot, error) {
	rows, err := s.Pool.Query(ctx, selectConditions)
	if err != nil {
		return nil, eris.Wrap(err, "history: query conditions")
	}
	defer rows.Close()

	var out []model.ConditionSnapshot
	for rows.Next() {
		var (
			c              model.ConditionSnapshot
			commodity      string
			precip, temper *float64
		)
		if err := rows.Scan(&commodity, &c.State, &c.Year, &c.Week, &c.GoodExcellentPct, &precip, &temper); err != nil {
			return nil, eris.Wrapf(model.ErrSchemaMismatch, "history: scan condition row: %v", err)
		}
		parsed, err := model.ParseCommodity(commodity)
		if err != nil {
			continue
		}
		c.Commodity = parsed
		for i, v := range []*float64{precip, temper} {
			if v == nil {
				continue
			}
			if c.Weather == nil {
				c.Weather = make(map[string]float64, len(WeatherColumns))
			}
			c.Weather[WeatherColumns[i]] = *v
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "history: iterate conditions")
	}
	return out, nil
}

// SaveToPostgres upserts every row of t into the history tables and returns
// the number of yield and condition rows written.
func SaveToPostgres(ctx context.Context, pool db.Pool, t *Tables) (yields, conditions int64, err error) {
	var yieldRows, condRows [][]any
	for _, k := range t.Keys() {
		for _, y := range t.Series(k) {
			yieldRows = append(yieldRows, []any{string(y.Commodity), y.State, y.Year, y.Yield})
		}
	}
	for _, sk := range t.seasonKeys() {
		for _, c := range t.snapshots[sk] {
			row := []any{string(c.Commodity), c.State, c.Year, c.Week, c.GoodExcellentPct}
			for _, w := range WeatherColumns {
				if v, ok := c.Weather[w]; ok {
					row = append(row, v)
				} else {
					row = append(row, nil)
				}
			}
			condRows = append(condRows, row)
		}
	}

	yields, err = db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        "crop_yields",
		Columns:      []string{colCommodity, colState, colYear, colYield},
		ConflictKeys: []string{colCommodity, colState, colYear},
	}, yieldRows)
	if err != nil {
		return 0, 0, eris.Wrap(err, "history: save yields")
	}

	conditions, err = db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        "crop_conditions",
		Columns:      append(append([]string{}, conditionColumns...), WeatherColumns...),
		ConflictKeys: []string{colCommodity, colState, colYear, colWeek},
	}, condRows)
	if err != nil {
		return yields, 0, eris.Wrap(err, "history: save conditions")
	}
	return yields, conditions, nil
}
