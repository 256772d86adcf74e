// Package store persists backtest results.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cropcast/internal/backtest"
	"github.com/sells-group/cropcast/internal/config"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Since       time.Time `json:"since,omitempty"` // zero = no lower bound
	PartialOnly bool      `json:"partial_only,omitempty"`
	Limit       int       `json:"limit,omitempty"`
	Offset      int       `json:"offset,omitempty"`
}

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Partial    bool      `json:"partial"`
	Units      int       `json:"units"`
	Completed  int       `json:"completed"`
	Skipped    int       `json:"skipped"`
}

// Store defines the persistence interface for backtest runs.
type Store interface {
	SaveRun(ctx context.Context, res *backtest.Result) error
	GetRun(ctx context.Context, id string) (*backtest.Result, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the store selected by cfg and migrates it.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL)
	case "sqlite":
		s, err = NewSQLite(cfg.SQLitePath)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

const defaultListLimit = 100

func encodeResult(res *backtest.Result) ([]byte, error) {
	if res == nil {
		return nil, eris.New("store: nil result")
	}
	data, err := json.Marshal(res)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal result")
	}
	return data, nil
}

func decodeResult(data []byte) (*backtest.Result, error) {
	var res backtest.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal result")
	}
	return &res, nil
}
