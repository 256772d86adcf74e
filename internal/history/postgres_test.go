package history

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cropcast/internal/model"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestPostgresSource_Load(t *testing.T) {
	mock := newMock(t)
	precip := 0.7

	mock.ExpectQuery("SELECT commodity, state, year, yield FROM crop_yields").
		WillReturnRows(mock.NewRows([]string{"commodity", "state", "year", "yield"}).
			AddRow("corn", "IA", 2019, 198.0).
			AddRow("corn", "IA", 2020, 178.0).
			AddRow("barley", "ND", 2020, 70.0))
	mock.ExpectQuery("SELECT commodity, state, year, week, good_excellent_pct, precip_index, temp_index FROM crop_conditions").
		WillReturnRows(mock.NewRows([]string{"commodity", "state", "year", "week", "good_excellent_pct", "precip_index", "temp_index"}).
			AddRow("corn", "IA", 2020, 22, 71.0, &precip, nil))

	tables, err := (&PostgresSource{Pool: mock}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2019, 2020}, tables.Years(iaCorn))

	snaps := tables.Snapshots(iaCorn, 2020)
	require.Len(t, snaps, 1)
	assert.Equal(t, map[string]float64{"precip_index": 0.7}, snaps[0].Weather)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_QueryError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM crop_yields").WillReturnError(fmt.Errorf("relation does not exist"))

	_, err := (&PostgresSource{Pool: mock}).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query yields")
}

func TestPostgresSource_InvalidRow(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM crop_yields").
		WillReturnRows(mock.NewRows([]string{"commodity", "state", "year", "yield"}).AddRow("corn", "IA", 2020, -1.0))
	mock.ExpectQuery("FROM crop_conditions").
		WillReturnRows(mock.NewRows([]string{"commodity", "state", "year", "week", "good_excellent_pct", "precip_index", "temp_index"}))

	_, err := (&PostgresSource{Pool: mock}).Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrSchemaMismatch))
}

func TestMigrate(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS crop_yields").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, Migrate(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveToPostgres(t *testing.T) {
	tables, err := NewTables(
		[]model.YieldObservation{y(iaCorn, 2020, 178)},
		[]model.ConditionSnapshot{cond(iaCorn, 2020, 22, 71)},
	)
	require.NoError(t, err)

	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_crop_yields"}, []string{"commodity", "state", "year", "yield"}).WillReturnResult(1)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_crop_conditions"},
		[]string{"commodity", "state", "year", "week", "good_excellent_pct", "precip_index", "temp_index"}).WillReturnResult(1)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	nYields, nConds, err := SaveToPostgres(context.Background(), mock, tables)
	require.NoError(t, err)
	assert.Equal(t, int64(1), nYields)
	assert.Equal(t, int64(1), nConds)
	assert.NoError(t, mock.ExpectationsWereMet())
}
