package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/cropcast/internal/config"
	"github.com/sells-group/cropcast/internal/db"
	"github.com/sells-group/cropcast/internal/fetcher"
	"github.com/sells-group/cropcast/internal/history"
)

// sourceFlags selects where history tables come from.
type sourceFlags struct {
	yields     string
	conditions string
	fromDB     bool
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.yields, "yields", "", "yield history table (path, http(s):// or ftp:// URI; .csv or .xlsx)")
	cmd.Flags().StringVar(&f.conditions, "conditions", "", "weekly condition table (same forms as --yields)")
	cmd.Flags().BoolVar(&f.fromDB, "from-db", false, "read history tables from store.database_url instead of files")
}

// loadTables loads the history tables once, up front.
func loadTables(ctx context.Context, c *config.Config, f sourceFlags) (*history.Tables, error) {
	if f.fromDB {
		pool, err := db.Connect(ctx, c.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		defer pool.Close()
		src := &history.PostgresSource{Pool: pool}
		return src.Load(ctx)
	}

	if f.yields == "" {
		return nil, eris.New("either --yields or --from-db is required")
	}
	src := &history.FileSource{
		Fetcher:       fetcher.New(c.Fetch),
		YieldsURI:     f.yields,
		ConditionsURI: f.conditions,
	}
	return src.Load(ctx)
}
