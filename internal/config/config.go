package config

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/cropcast/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Backtest BacktestConfig `yaml:"backtest" mapstructure:"backtest"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Monitor  MonitorConfig  `yaml:"monitoring" mapstructure:"monitoring"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures where input tables are read from and run results
// are written to.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// BacktestConfig configures the forecast model and the backtest harness.
type BacktestConfig struct {
	Commodities        []string                  `yaml:"commodities" mapstructure:"commodities"`
	FitWindowYears     int                       `yaml:"fit_window_years" mapstructure:"fit_window_years"`
	ForecastWeeks      []int                     `yaml:"forecast_weeks" mapstructure:"forecast_weeks"`
	TargetRMSEPerWeek  map[string]float64        `yaml:"target_rmse_per_week" mapstructure:"target_rmse_per_week"`
	BenchmarkSet       []string                  `yaml:"benchmark_set" mapstructure:"benchmark_set"`
	TopKWorstCases     int                       `yaml:"top_k_worst_cases" mapstructure:"top_k_worst_cases"`
	MinTrainingYears   int                       `yaml:"min_training_years" mapstructure:"min_training_years"`
	TrendDegree        int                       `yaml:"trend_degree" mapstructure:"trend_degree"`
	TrainingMode       string                    `yaml:"training_mode" mapstructure:"training_mode"`
	IntervalLevel      float64                   `yaml:"interval_level" mapstructure:"interval_level"`
	DeviationRidge     float64                   `yaml:"deviation_ridge" mapstructure:"deviation_ridge"`
	SkillWarnThreshold float64                   `yaml:"skill_warn_threshold" mapstructure:"skill_warn_threshold"`
	Overrides          map[string]ParamsOverride `yaml:"overrides" mapstructure:"overrides"`
}

// ParamsOverride replaces model parameters for a single commodity. Zero
// values inherit the backtest-wide setting.
type ParamsOverride struct {
	FitWindowYears   int     `yaml:"fit_window_years" mapstructure:"fit_window_years"`
	MinTrainingYears int     `yaml:"min_training_years" mapstructure:"min_training_years"`
	TrendDegree      int     `yaml:"trend_degree" mapstructure:"trend_degree"`
	IntervalLevel    float64 `yaml:"interval_level" mapstructure:"interval_level"`
}

// BatchConfig configures the backtest worker pool.
type BatchConfig struct {
	MaxConcurrentUnits int `yaml:"max_concurrent_units" mapstructure:"max_concurrent_units"`
}

// CacheConfig configures the fitted-model cache.
type CacheConfig struct {
	Size int `yaml:"size" mapstructure:"size"`
}

// FetchConfig configures remote table downloads.
type FetchConfig struct {
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// MonitorConfig configures run alerts.
type MonitorConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Training modes for trend fitting.
const (
	ModeLeaveOneOut = "leave_one_out"
	ModeExpanding   = "expanding"
)

// Load reads configuration from file and environment, then validates it.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("cropcast")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CROPCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "cropcast.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("batch.max_concurrent_units", 8)
	v.SetDefault("cache.size", 4096)
	v.SetDefault("fetch.user_agent", "cropcast/1.0")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.requests_per_second", 5.0)
	v.SetDefault("monitoring.failure_rate_threshold", 0.2)
	v.SetDefault("backtest.commodities", []string{"corn", "soybeans"})
	v.SetDefault("backtest.fit_window_years", 15)
	v.SetDefault("backtest.forecast_weeks", []int{18, 22, 26, 30, 34, 38})
	v.SetDefault("backtest.benchmark_set", []string{"trend", "prior_year", "five_year_avg"})
	v.SetDefault("backtest.top_k_worst_cases", 5)
	v.SetDefault("backtest.min_training_years", 5)
	v.SetDefault("backtest.trend_degree", 1)
	v.SetDefault("backtest.training_mode", ModeLeaveOneOut)
	v.SetDefault("backtest.interval_level", 0.9)
	v.SetDefault("backtest.deviation_ridge", 1e-6)
	v.SetDefault("backtest.skill_warn_threshold", 0.05)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks every setting that would otherwise fail silently later,
// such as a misspelled commodity producing an empty backtest.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store.driver %q (valid: sqlite, postgres)", c.Store.Driver)
	}
	if c.Batch.MaxConcurrentUnits <= 0 {
		return eris.New("config: batch.max_concurrent_units must be positive")
	}
	if c.Cache.Size <= 0 {
		return eris.New("config: cache.size must be positive")
	}
	if c.Monitor.FailureRateThreshold < 0 || c.Monitor.FailureRateThreshold > 1 {
		return eris.New("config: monitoring.failure_rate_threshold must be in [0, 1]")
	}
	if _, err := c.Backtest.Settings(); err != nil {
		return err
	}
	return nil
}

// ModelParams parameterizes the forecast model for one commodity.
type ModelParams struct {
	FitWindowYears   int     `json:"fit_window_years"`
	MinTrainingYears int     `json:"min_training_years"`
	TrendDegree      int     `json:"trend_degree"`
	TrainingMode     string  `json:"training_mode"`
	IntervalLevel    float64 `json:"interval_level"`
	Ridge            float64 `json:"ridge"`
}

// BacktestSettings is the validated, typed form of BacktestConfig.
type BacktestSettings struct {
	Commodities        []model.Commodity
	Weeks              []model.ForecastWeek
	TargetRMSE         map[model.ForecastWeek]float64
	Benchmarks         []model.Benchmark
	TopK               int
	SkillWarnThreshold float64
	Params             map[model.Commodity]ModelParams
}

// ParamsFor returns the model parameters for a commodity, or the defaults
// for one not listed in the settings.
func (s *BacktestSettings) ParamsFor(c model.Commodity) ModelParams {
	if p, ok := s.Params[c]; ok {
		return p
	}
	return DefaultModelParams()
}

// Settings validates the backtest configuration and returns its typed form.
func (b BacktestConfig) Settings() (*BacktestSettings, error) {
	if len(b.Commodities) == 0 {
		return nil, eris.New("config: backtest.commodities must list at least one commodity")
	}
	s := &BacktestSettings{
		TargetRMSE:         make(map[model.ForecastWeek]float64, len(b.TargetRMSEPerWeek)),
		TopK:               b.TopKWorstCases,
		SkillWarnThreshold: b.SkillWarnThreshold,
		Params:             make(map[model.Commodity]ModelParams, len(b.Commodities)),
	}

	seen := make(map[model.Commodity]bool)
	for _, name := range b.Commodities {
		c, err := model.ParseCommodity(name)
		if err != nil {
			return nil, eris.Wrap(err, "config: backtest.commodities")
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		s.Commodities = append(s.Commodities, c)
	}

	weeks, err := model.ParseWeeks(b.ForecastWeeks)
	if err != nil {
		return nil, eris.Wrap(err, "config: backtest.forecast_weeks")
	}
	s.Weeks = weeks

	for k, target := range b.TargetRMSEPerWeek {
		n, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, eris.Errorf("config: backtest.target_rmse_per_week key %q is not a week number", k)
		}
		w, err := model.ParseWeek(n)
		if err != nil {
			return nil, eris.Wrap(err, "config: backtest.target_rmse_per_week")
		}
		if target <= 0 {
			return nil, eris.Errorf("config: backtest.target_rmse_per_week[%d] must be positive", n)
		}
		s.TargetRMSE[w] = target
	}

	for _, name := range b.BenchmarkSet {
		bm, err := model.ParseBenchmark(name)
		if err != nil {
			return nil, eris.Wrap(err, "config: backtest.benchmark_set")
		}
		s.Benchmarks = append(s.Benchmarks, bm)
	}

	if b.TopKWorstCases <= 0 {
		return nil, eris.New("config: backtest.top_k_worst_cases must be positive")
	}

	base := ModelParams{
		FitWindowYears:   b.FitWindowYears,
		MinTrainingYears: b.MinTrainingYears,
		TrendDegree:      b.TrendDegree,
		TrainingMode:     b.TrainingMode,
		IntervalLevel:    b.IntervalLevel,
		Ridge:            b.DeviationRidge,
	}
	if err := base.validate("backtest"); err != nil {
		return nil, err
	}

	overrideNames := make([]string, 0, len(b.Overrides))
	for name := range b.Overrides {
		overrideNames = append(overrideNames, name)
	}
	sort.Strings(overrideNames)
	overrides := make(map[model.Commodity]ParamsOverride, len(b.Overrides))
	for _, name := range overrideNames {
		c, err := model.ParseCommodity(name)
		if err != nil {
			return nil, eris.Wrap(err, "config: backtest.overrides")
		}
		overrides[c] = b.Overrides[name]
	}

	for _, c := range s.Commodities {
		p := base
		if o, ok := overrides[c]; ok {
			if o.FitWindowYears > 0 {
				p.FitWindowYears = o.FitWindowYears
			}
			if o.MinTrainingYears > 0 {
				p.MinTrainingYears = o.MinTrainingYears
			}
			if o.TrendDegree > 0 {
				p.TrendDegree = o.TrendDegree
			}
			if o.IntervalLevel > 0 {
				p.IntervalLevel = o.IntervalLevel
			}
			if err := p.validate("backtest.overrides." + string(c)); err != nil {
				return nil, err
			}
		}
		s.Params[c] = p
	}

	return s, nil
}

func (p ModelParams) validate(prefix string) error {
	if p.FitWindowYears <= 0 {
		return eris.Errorf("config: %s.fit_window_years must be positive", prefix)
	}
	if p.MinTrainingYears <= 0 {
		return eris.Errorf("config: %s.min_training_years must be positive", prefix)
	}
	if p.TrendDegree < 1 || p.TrendDegree > 2 {
		return eris.Errorf("config: %s.trend_degree must be 1 or 2", prefix)
	}
	if p.TrainingMode != ModeLeaveOneOut && p.TrainingMode != ModeExpanding {
		return eris.Errorf("config: %s.training_mode %q (valid: %s, %s)", prefix, p.TrainingMode, ModeLeaveOneOut, ModeExpanding)
	}
	if p.IntervalLevel <= 0 || p.IntervalLevel >= 1 {
		return eris.Errorf("config: %s.interval_level must be in (0, 1)", prefix)
	}
	if p.Ridge < 0 {
		return eris.Errorf("config: %s.deviation_ridge must not be negative", prefix)
	}
	return nil
}

// DefaultModelParams returns the parameters used when no config is loaded.
func DefaultModelParams() ModelParams {
	return ModelParams{
		FitWindowYears:   15,
		MinTrainingYears: 5,
		TrendDegree:      1,
		TrainingMode:     ModeLeaveOneOut,
		IntervalLevel:    0.9,
		Ridge:            1e-6,
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
