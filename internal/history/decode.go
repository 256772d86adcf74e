package history

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cropcast/internal/model"
)

// Column names of the input tables. Headers are matched case-insensitively.
const (
	colCommodity     = "commodity"
	colState         = "state"
	colYear          = "year"
	colYield         = "yield"
	colWeek          = "week"
	colGoodExcellent = "good_excellent_pct"
)

// WeatherColumns are the optional weather indices read from condition tables.
var WeatherColumns = []string{"precip_index", "temp_index"}

var (
	yieldColumns     = []string{colCommodity, colState, colYear, colYield}
	conditionColumns = []string{colCommodity, colState, colYear, colWeek, colGoodExcellent}
)

// table is a decoded header plus data rows from any tabular source.
type table struct {
	name   string
	header []string
	rows   [][]string
}

// rowReader resolves named columns of one table and reports schema errors
// with the offending row number (the header is row 1).
type rowReader struct {
	table string
	cols  map[string]int
	rec   []string
	row   int
}

func newRowReader(t table, required []string) (*rowReader, error) {
	if t.header == nil {
		return nil, eris.Wrapf(model.ErrSchemaMismatch, "history: %s table is empty", t.name)
	}
	cols := make(map[string]int, len(t.header))
	for i, h := range t.header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return nil, eris.Wrapf(model.ErrSchemaMismatch, "history: %s table missing column %q", t.name, c)
		}
	}
	return &rowReader{table: t.name, cols: cols}, nil
}

func (r *rowReader) reset(rec []string, row int) {
	r.rec = rec
	r.row = row
}

func (r *rowReader) has(col string) bool {
	_, ok := r.cols[col]
	return ok
}

func (r *rowReader) str(col string) string {
	i := r.cols[col]
	if i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

func (r *rowReader) int(col string) (int, error) {
	v, err := strconv.Atoi(r.str(col))
	if err != nil {
		return 0, r.typeErr(col, "an integer")
	}
	return v, nil
}

// float parses a number, tolerating thousands separators.
func (r *rowReader) float(col string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(r.str(col), ",", ""), 64)
	if err != nil {
		return 0, r.typeErr(col, "a number")
	}
	return v, nil
}

func (r *rowReader) typeErr(col, want string) error {
	return eris.Wrapf(model.ErrSchemaMismatch, "history: %s row %d: %s %q is not %s", r.table, r.row, col, r.str(col), want)
}

// commodity parses the commodity column. Rows for commodities outside the
// supported set are skipped rather than rejected so that bulk exports
// covering other crops load cleanly.
func (r *rowReader) commodity() (model.Commodity, bool) {
	c, err := model.ParseCommodity(r.str(colCommodity))
	return c, err == nil
}

func (r *rowReader) state() string {
	return strings.ToUpper(r.str(colState))
}

func decodeYields(t table) ([]model.YieldObservation, error) {
	r, err := newRowReader(t, yieldColumns)
	if err != nil {
		return nil, err
	}

	out := make([]model.YieldObservation, 0, len(t.rows))
	skipped := make(map[string]int)
	for i, rec := range t.rows {
		r.reset(rec, i+2)
		c, ok := r.commodity()
		if !ok {
			skipped[r.str(colCommodity)]++
			continue
		}
		year, err := r.int(colYear)
		if err != nil {
			return nil, err
		}
		yield, err := r.float(colYield)
		if err != nil {
			return nil, err
		}
		out = append(out, model.YieldObservation{Commodity: c, State: r.state(), Year: year, Yield: yield})
	}
	logSkipped(t.name, skipped)
	return out, nil
}

func decodeConditions(t table) ([]model.ConditionSnapshot, error) {
	r, err := newRowReader(t, conditionColumns)
	if err != nil {
		return nil, err
	}

	out := make([]model.ConditionSnapshot, 0, len(t.rows))
	skipped := make(map[string]int)
	for i, rec := range t.rows {
		r.reset(rec, i+2)
		c, ok := r.commodity()
		if !ok {
			skipped[r.str(colCommodity)]++
			continue
		}
		snap := model.ConditionSnapshot{Commodity: c, State: r.state()}
		if snap.Year, err = r.int(colYear); err != nil {
			return nil, err
		}
		if snap.Week, err = r.int(colWeek); err != nil {
			return nil, err
		}
		if snap.GoodExcellentPct, err = r.float(colGoodExcellent); err != nil {
			return nil, err
		}
		for _, w := range WeatherColumns {
			// Blank weather cells mean not reported.
			if !r.has(w) || r.str(w) == "" {
				continue
			}
			v, err := r.float(w)
			if err != nil {
				return nil, err
			}
			if snap.Weather == nil {
				snap.Weather = make(map[string]float64, len(WeatherColumns))
			}
			snap.Weather[w] = v
		}
		out = append(out, snap)
	}
	logSkipped(t.name, skipped)
	return out, nil
}

// logSkipped reports rows dropped for unsupported commodities at Warn, so a
// misspelled crop in the data is as visible as one in the config.
func logSkipped(name string, skipped map[string]int) {
	if len(skipped) == 0 {
		return
	}
	rows := 0
	for _, n := range skipped {
		rows += n
	}
	zap.L().With(zap.String("component", "history")).Warn("skipped rows for unsupported commodities",
		zap.String("table", name),
		zap.Int("rows", rows),
		zap.Strings("commodities", slices.Sorted(maps.Keys(skipped))),
	)
}
