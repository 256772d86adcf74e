package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var yieldUpsert = UpsertConfig{
	Table:        "crop_yields",
	Columns:      []string{"commodity", "state", "year", "yield"},
	ConflictKeys: []string{"commodity", "state", "year"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, yieldUpsert, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "crop_yields",
		ConflictKeys: []string{"state"},
	}, [][]any{{"IA"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "crop_yields",
		Columns: []string{"state"},
	}, [][]any{{"IA"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_RejectsMismatchedRows(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, yieldUpsert, [][]any{
		{"corn", "IA", 2020, 178.0},
		{"corn", "IL", 2020},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crop_yields row 1 has 3 values for 4 columns")

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "crop_conditions",
		Columns:      []string{"commodity", "state", "year"},
		ConflictKeys: []string{"commodity", "state", "year", "week"},
	}, [][]any{{"corn", "IA", 2020}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `conflict key "week" is not a column of crop_conditions`)
}

func TestMergeSQL_Conditions(t *testing.T) {
	cfg := UpsertConfig{
		Table:        "crop_conditions",
		Columns:      []string{"commodity", "state", "year", "week", "good_excellent_pct"},
		ConflictKeys: []string{"commodity", "state", "year", "week"},
	}
	assert.Equal(t,
		`INSERT INTO "crop_conditions" ("commodity", "state", "year", "week", "good_excellent_pct") `+
			`SELECT "commodity", "state", "year", "week", "good_excellent_pct" FROM "_tmp_upsert_crop_conditions" `+
			`ON CONFLICT ("commodity", "state", "year", "week") DO UPDATE SET "good_excellent_pct" = EXCLUDED."good_excellent_pct"`,
		cfg.mergeSQL())
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_crop_yields"}, yieldUpsert.Columns).WillReturnResult(2)
	mock.ExpectExec(`ON CONFLICT \("commodity", "state", "year"\) DO UPDATE SET "yield" = EXCLUDED."yield"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{{"corn", "IA", 2020, 178.0}, {"corn", "IL", 2020, 181.0}}
	n, err := BulkUpsert(context.Background(), mock, yieldUpsert, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_KeysOnlyDoesNothing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := UpsertConfig{Table: "crops.states", Columns: []string{"state"}, ConflictKeys: []string{"state"}}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_crops_states"}, cfg.Columns).WillReturnResult(1)
	mock.ExpectExec(`ON CONFLICT \("state"\) DO NOTHING`).WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, cfg, [][]any{{"IA"}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_crop_yields"}, yieldUpsert.Columns).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, yieldUpsert, [][]any{{"corn", "IA", 2020, 178.0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for crop_yields")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, `"crop_yields"`, identifier("crop_yields").Sanitize())
	assert.Equal(t, `"crops"."yields"`, identifier("crops.yields").Sanitize())
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"commodity", "state"`, quoteAndJoin([]string{"commodity", "state"}))
}
