package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cropcast/internal/backtest"
	"github.com/sells-group/cropcast/internal/config"
	"github.com/sells-group/cropcast/internal/forecast"
	"github.com/sells-group/cropcast/internal/history"
	"github.com/sells-group/cropcast/internal/monitoring"
	"github.com/sells-group/cropcast/internal/store"
)

type backtestOptions struct {
	source      sourceFlags
	states      []string
	fromYear    int
	toYear      int
	timeout     time.Duration
	format      string
	out         string
	metricsFile string
	save        bool
	alert       bool
}

var btOpts backtestOptions

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest the forecast model against history",
	Long:  "Forecasts every (commodity, state, year) with an actual yield from a trend that never saw that year, then reports accuracy, skill against naive benchmarks, worst cases, and state bias.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		res, err := runBacktest(ctx, cfg, btOpts)
		if err != nil {
			return err
		}
		return writeOutputFile(btOpts.out, res, btOpts.format)
	},
}

// runBacktest loads the tables, runs the harness, and handles the optional
// metrics export, result store, and alerts.
func runBacktest(ctx context.Context, c *config.Config, opts backtestOptions) (*backtest.Result, error) {
	log := zap.L().With(zap.String("component", "cmd.backtest"))

	settings, err := c.Backtest.Settings()
	if err != nil {
		return nil, err
	}

	tables, err := loadTables(ctx, c, opts.source)
	if err != nil {
		return nil, eris.Wrap(err, "backtest: load history")
	}

	// The wall-clock budget covers the run only, not loading.
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	res, metrics, err := runHarness(ctx, c, tables, backtest.Plan{
		Settings: settings,
		States:   opts.states,
		FromYear: opts.fromYear,
		ToYear:   opts.toYear,
	})
	if err != nil {
		return nil, err
	}

	if opts.metricsFile != "" {
		if err := metrics.WriteTextfile(opts.metricsFile); err != nil {
			return nil, err
		}
	}

	// Saving and alerting use a fresh context so a timed-out run still
	// records its partial result.
	bg := context.WithoutCancel(ctx)
	if opts.save {
		st, err := store.Open(bg, c.Store)
		if err != nil {
			return nil, eris.Wrap(err, "backtest: open store")
		}
		defer st.Close() //nolint:errcheck
		if err := st.SaveRun(bg, res); err != nil {
			return nil, err
		}
		log.Info("run saved", zap.String("run_id", res.ID.String()), zap.String("driver", c.Store.Driver))
	}

	if opts.alert {
		alerter := monitoring.NewAlerter(c.Monitor, nil)
		alerts := alerter.Evaluate(res.Summary())
		for _, a := range alerts {
			log.Warn(a.Message, zap.String("alert", string(a.Type)), zap.String("severity", a.Severity))
		}
		alerter.SendAlerts(bg, alerts)
	}

	return res, nil
}

func runHarness(ctx context.Context, c *config.Config, tables *history.Tables, plan backtest.Plan) (*backtest.Result, *monitoring.Metrics, error) {
	memo, err := forecast.NewMemo(c.Cache.Size)
	if err != nil {
		return nil, nil, err
	}
	metrics := monitoring.NewMetrics()
	h := backtest.New(memo,
		backtest.WithConcurrency(c.Batch.MaxConcurrentUnits),
		backtest.WithMetrics(metrics),
	)
	res, err := h.Run(ctx, tables, plan)
	if err != nil {
		return nil, nil, err
	}
	return res, metrics, nil
}

func init() {
	btOpts.source.register(backtestCmd)
	backtestCmd.Flags().StringSliceVar(&btOpts.states, "states", nil, "limit to these states (default: all)")
	backtestCmd.Flags().IntVar(&btOpts.fromYear, "from-year", 0, "first test year (default: earliest)")
	backtestCmd.Flags().IntVar(&btOpts.toYear, "to-year", 0, "last test year (default: latest)")
	backtestCmd.Flags().DurationVar(&btOpts.timeout, "timeout", 0, "wall-clock budget for the run; a run cut short reports partial metrics")
	backtestCmd.Flags().StringVar(&btOpts.format, "format", "json", "output format (json, yaml)")
	backtestCmd.Flags().StringVarP(&btOpts.out, "out", "o", "", "write the result here instead of stdout")
	backtestCmd.Flags().StringVar(&btOpts.metricsFile, "metrics-file", "", "write Prometheus metrics in textfile format")
	backtestCmd.Flags().BoolVar(&btOpts.save, "save", false, "persist the result to the configured store")
	backtestCmd.Flags().BoolVar(&btOpts.alert, "alert", false, "raise alerts for red flags and send them to monitoring.webhook_url")
	rootCmd.AddCommand(backtestCmd)
}
