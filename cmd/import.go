package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cropcast/internal/config"
	"github.com/sells-group/cropcast/internal/db"
	"github.com/sells-group/cropcast/internal/fetcher"
	"github.com/sells-group/cropcast/internal/history"
)

var importSource sourceFlags

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import yield and condition tables into Postgres",
	Long:  "Validates the tables, creates crop_yields and crop_conditions if needed, and upserts every row into store.database_url.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runImport(cmd.Context(), cfg, importSource)
	},
}

func runImport(ctx context.Context, c *config.Config, f sourceFlags) error {
	if f.yields == "" {
		return eris.New("--yields is required")
	}
	src := &history.FileSource{
		Fetcher:       fetcher.New(c.Fetch),
		YieldsURI:     f.yields,
		ConditionsURI: f.conditions,
	}
	tables, err := src.Load(ctx)
	if err != nil {
		return eris.Wrap(err, "import: load tables")
	}

	pool, err := db.Connect(ctx, c.Store.DatabaseURL)
	if err != nil {
		return eris.Wrap(err, "import")
	}
	defer pool.Close()

	if err := history.Migrate(ctx, pool); err != nil {
		return err
	}
	yields, conds, err := history.SaveToPostgres(ctx, pool, tables)
	if err != nil {
		return eris.Wrap(err, "import")
	}

	zap.L().Info("import complete",
		zap.Int64("yields", yields),
		zap.Int64("conditions", conds),
		zap.String("source", f.yields),
	)
	return nil
}

func init() {
	importCmd.Flags().StringVar(&importSource.yields, "yields", "", "yield history table (required)")
	importCmd.Flags().StringVar(&importSource.conditions, "conditions", "", "weekly condition table")
	_ = importCmd.MarkFlagRequired("yields")
	rootCmd.AddCommand(importCmd)
}
