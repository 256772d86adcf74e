package history

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/cropcast/internal/fetcher"
	"github.com/sells-group/cropcast/internal/model"
)

const yieldsCSV = "\ufeffCommodity,State,Year,Yield\n" +
	"corn,ia,2019,198\n" +
	"Corn,IA,2020,\"1,178.5\"\n" +
	"barley,ND,2020,70\n"

const conditionsCSV = "commodity,state,year,week,good_excellent_pct,precip_index,temp_index\n" +
	"corn,IA,2020,22,71,0.4,\n" +
	"corn,IA,2020,26,65,,\n"

func TestLoadCSV(t *testing.T) {
	tables, err := LoadCSV(context.Background(), strings.NewReader(yieldsCSV), strings.NewReader(conditionsCSV))
	require.NoError(t, err)

	assert.Equal(t, []model.SeriesKey{iaCorn}, tables.Keys(), "barley rows are skipped")
	v, ok := tables.Actual(iaCorn, 2020)
	require.True(t, ok)
	assert.InDelta(t, 1178.5, v, 1e-9)

	snaps := tables.Snapshots(iaCorn, 2020)
	require.Len(t, snaps, 2)
	assert.Equal(t, map[string]float64{"precip_index": 0.4}, snaps[0].Weather)
	assert.Nil(t, snaps[1].Weather)
}

func TestLoadCSV_WarnsOnUnsupportedCommodities(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	defer zap.ReplaceGlobals(zap.New(core))()

	in := "commodity,state,year,yield\n" +
		"soybean,IL,2019,60\n" +
		"soybean,IL,2020,61\n" +
		"barley,ND,2020,70\n" +
		"soybeans,IL,2021,62\n"
	tables, err := LoadCSV(context.Background(), strings.NewReader(in), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2021}, tables.Years(model.SeriesKey{Commodity: model.Soybeans, State: "IL"}))

	entries := logs.FilterMessage("skipped rows for unsupported commodities").AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "yields", fields["table"])
	assert.Equal(t, int64(3), fields["rows"])
	assert.Equal(t, []interface{}{"barley", "soybean"}, fields["commodities"])
}

func TestLoadCSV_NoConditions(t *testing.T) {
	tables, err := LoadCSV(context.Background(), strings.NewReader(yieldsCSV), nil)
	require.NoError(t, err)
	_, nConds := tables.Counts()
	assert.Zero(t, nConds)
}

func TestLoadCSV_SchemaMismatch(t *testing.T) {
	tests := []struct {
		name       string
		yields     string
		conditions string
		want       string
	}{
		{"empty yields", "", "", "yields table is empty"},
		{"missing yield column", "commodity,state,year\ncorn,IA,2020\n", "", `missing column "yield"`},
		{"non-numeric yield", "commodity,state,year,yield\ncorn,IA,2020,NA\n", "", `yields row 2: yield "NA" is not a number`},
		{"fractional year", "commodity,state,year,yield\ncorn,IA,2020,1\ncorn,IA,2021.5,1\n", "", "yields row 3: year"},
		{"missing week column", "commodity,state,year,yield\n", "commodity,state,year,good_excellent_pct\n", `missing column "week"`},
		{"bad weather value", "commodity,state,year,yield\n", "commodity,state,year,week,good_excellent_pct,temp_index\ncorn,IA,2020,22,60,hot\n", "temp_index"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var conds io.Reader
			if tt.conditions != "" {
				conds = strings.NewReader(tt.conditions)
			}
			_, err := LoadCSV(context.Background(), strings.NewReader(tt.yields), conds)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrSchemaMismatch), err.Error())
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func writeXLSX(t *testing.T, dir, name string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, c := range r {
			row.AddCell().SetString(c)
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, f.Save(path))
	return path
}

func TestFileSource_XLSXWithCSVConditions(t *testing.T) {
	dir := t.TempDir()
	yieldsPath := writeXLSX(t, dir, "yields.xlsx", [][]string{
		{"commodity", "state", "year", "yield"},
		{"soybeans", "IL", "2020", "59"},
		{"soybeans", "IL", "2021", "64"},
	})
	condPath := filepath.Join(dir, "conditions.csv")
	require.NoError(t, os.WriteFile(condPath, []byte("commodity,state,year,week,good_excellent_pct\nsoybeans,IL,2021,26,67\n"), 0o644))

	src := &FileSource{Fetcher: &fetcher.Mux{}, YieldsURI: yieldsPath, ConditionsURI: condPath}
	tables, err := src.Load(context.Background())
	require.NoError(t, err)

	key := model.SeriesKey{Commodity: model.Soybeans, State: "IL"}
	assert.Equal(t, []int{2020, 2021}, tables.Years(key))
	assert.Len(t, tables.Snapshots(key, 2021), 1)
}

func TestFileSource_CSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "yields.csv")
	require.NoError(t, os.WriteFile(path, []byte(yieldsCSV), 0o644))

	tables, err := (&FileSource{Fetcher: &fetcher.Mux{}, YieldsURI: "file://" + path}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2019, 2020}, tables.Years(iaCorn))

	_, err = (&FileSource{Fetcher: &fetcher.Mux{}, YieldsURI: filepath.Join(dir, "missing.csv")}).Load(context.Background())
	require.Error(t, err)
}

func TestIsXLSX(t *testing.T) {
	assert.True(t, isXLSX("/data/Yields.XLSX"))
	assert.True(t, isXLSX("https://example.com/y.xlsx?dl=1"))
	assert.False(t, isXLSX("ftp://example.com/y.csv"))
	assert.False(t, isXLSX(""))
}
