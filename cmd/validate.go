package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/cropcast/internal/config"
	"github.com/sells-group/cropcast/internal/model"
)

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Check cropcast.yaml and environment overrides",
	Long:  "Loads the configuration the same way every command does and prints the effective backtest settings. A typo in a commodity, week, or benchmark fails here.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// PersistentPreRunE already loaded and validated cfg.
		s, err := cfg.Backtest.Settings()
		if err != nil {
			return err
		}
		printSettings(cmd.OutOrStdout(), s)
		return nil
	},
}

func printSettings(w io.Writer, s *config.BacktestSettings) {
	names := make([]string, len(s.Commodities))
	for i, c := range s.Commodities {
		names[i] = string(c)
	}
	weeks := make([]string, len(s.Weeks))
	for i, wk := range s.Weeks {
		weeks[i] = fmt.Sprint(int(wk))
	}
	benches := make([]string, len(s.Benchmarks))
	for i, b := range s.Benchmarks {
		benches[i] = string(b)
	}

	fmt.Fprintf(w, "commodities: %s\n", strings.Join(names, ", "))
	fmt.Fprintf(w, "forecast weeks: %s\n", strings.Join(weeks, ", "))
	fmt.Fprintf(w, "benchmarks: %s\n", strings.Join(benches, ", "))
	fmt.Fprintf(w, "top-k worst cases: %d\n", s.TopK)

	targets := make([]model.ForecastWeek, 0, len(s.TargetRMSE))
	for wk := range s.TargetRMSE {
		targets = append(targets, wk)
	}
	slices.Sort(targets)
	for _, wk := range targets {
		fmt.Fprintf(w, "target rmse week %d: %g\n", wk, s.TargetRMSE[wk])
	}

	for _, c := range s.Commodities {
		p := s.ParamsFor(c)
		fmt.Fprintf(w, "%s: window=%d min_years=%d degree=%d mode=%s interval=%g\n",
			c, p.FitWindowYears, p.MinTrainingYears, p.TrendDegree, p.TrainingMode, p.IntervalLevel)
	}
}

func init() {
	rootCmd.AddCommand(validateConfigCmd)
}
