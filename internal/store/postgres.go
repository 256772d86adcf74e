package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/cropcast/internal/backtest"
	"github.com/sells-group/cropcast/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Close leaves the pool open.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for loading history tables
// from the same database.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	id          UUID PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	partial     BOOLEAN NOT NULL DEFAULT false,
	units       INTEGER NOT NULL,
	completed   INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	result      JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_backtest_runs_started_at ON backtest_runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, res *backtest.Result) error {
	data, err := encodeResult(res)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO backtest_runs (id, started_at, finished_at, partial, units, completed, skipped, result)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET finished_at = EXCLUDED.finished_at, partial = EXCLUDED.partial,
		 units = EXCLUDED.units, completed = EXCLUDED.completed, skipped = EXCLUDED.skipped, result = EXCLUDED.result`,
		res.ID.String(), res.StartedAt, res.FinishedAt, res.Partial, res.Units, res.Completed, res.Skipped, data,
	)
	return eris.Wrapf(err, "postgres: save run %s", res.ID)
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*backtest.Result, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT result FROM backtest_runs WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	return decodeResult(data)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error) {
	query := `SELECT id::text, started_at, finished_at, partial, units, completed, skipped FROM backtest_runs WHERE 1=1`
	var args []any
	argN := 1

	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND started_at >= $%d`, argN)
		args = append(args, filter.Since)
		argN++
	}
	if filter.PartialOnly {
		query += ` AND partial`
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argN)
	args = append(args, limit)
	argN++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Partial, &r.Units, &r.Completed, &r.Skipped); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
