package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/cropcast/internal/config"
	"github.com/sells-group/cropcast/internal/forecast"
	"github.com/sells-group/cropcast/internal/model"
)

type forecastOptions struct {
	source    sourceFlags
	commodity string
	state     string
	year      int
	format    string
}

// forecastOutput is the result of an operational forecast.
type forecastOutput struct {
	Trend   *model.TrendModel      `json:"trend"`
	Records []model.ForecastRecord `json:"forecasts"`
}

var fcOpts forecastOptions

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Issue in-season forecasts for one state and year",
	Long:  "Fits the trend on every other year's actual yield and forecasts the target year at each configured forecast week. A state with too little history falls back to the regional average for the commodity.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := runForecast(cmd.Context(), cfg, fcOpts)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), out, fcOpts.format)
	},
}

func runForecast(ctx context.Context, c *config.Config, opts forecastOptions) (*forecastOutput, error) {
	commodity, err := model.ParseCommodity(opts.commodity)
	if err != nil {
		return nil, err
	}
	settings, err := c.Backtest.Settings()
	if err != nil {
		return nil, err
	}

	tables, err := loadTables(ctx, c, opts.source)
	if err != nil {
		return nil, err
	}

	params := settings.ParamsFor(commodity)
	key := model.SeriesKey{Commodity: commodity, State: strings.ToUpper(opts.state)}
	records, trend, err := forecast.Issue(forecast.New(params), tables, key, opts.year, settings.Weeks, params.FitWindowYears)
	if err != nil {
		return nil, err
	}
	return &forecastOutput{Trend: trend, Records: records}, nil
}

func init() {
	fcOpts.source.register(forecastCmd)
	forecastCmd.Flags().StringVar(&fcOpts.commodity, "commodity", "", "commodity to forecast (required)")
	forecastCmd.Flags().StringVar(&fcOpts.state, "state", "", "state code, e.g. IA (required)")
	forecastCmd.Flags().IntVar(&fcOpts.year, "year", 0, "season to forecast (required)")
	forecastCmd.Flags().StringVar(&fcOpts.format, "format", "json", "output format (json, yaml)")
	_ = forecastCmd.MarkFlagRequired("commodity")
	_ = forecastCmd.MarkFlagRequired("state")
	_ = forecastCmd.MarkFlagRequired("year")
	rootCmd.AddCommand(forecastCmd)
}
