package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cropcast/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "cropcast",
	Short: "Progressive crop-yield forecasting and backtesting",
	Long:  "Forecasts state crop yields at fixed weeks before harvest from trend plus crop condition, and backtests those forecasts against history with accuracy, skill, and bias reporting.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
