package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sartorproj/healthcast/arima"
	"github.com/sartorproj/healthcast/forecast"
	"github.com/sartorproj/healthcast/pipeline"
	"github.com/sartorproj/healthcast/selection"
	"github.com/sartorproj/healthcast/stats"
	"github.com/sartorproj/healthcast/timeseries"
)

// EnvPrefix prefixes environment overrides, e.g. HEALTHCAST_SELECTION_CUTOFF.
const EnvPrefix = "HEALTHCAST"

// Config represents the complete application configuration
type Config struct {
	Series    SeriesConfig    `mapstructure:"series"`
	Selection SelectionConfig `mapstructure:"selection"`
	Forecast  ForecastConfig  `mapstructure:"forecast"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// SeriesConfig identifies the series to forecast
type SeriesConfig struct {
	File      string `mapstructure:"file"`
	Region    string `mapstructure:"region"`
	Metric    string `mapstructure:"metric"`
	MinPoints int    `mapstructure:"min_points"`
}

// SelectionConfig holds model selection configuration
type SelectionConfig struct {
	Cutoff    int      `mapstructure:"cutoff"`
	Catalog   [][3]int `mapstructure:"catalog"`
	Criterion string   `mapstructure:"criterion"`
	Workers   int      `mapstructure:"workers"`
	Fallback  [3]int   `mapstructure:"fallback"`
}

// ForecastConfig holds final forecast configuration
type ForecastConfig struct {
	Horizon int `mapstructure:"horizon"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds Prometheus configuration
type MetricsConfig struct {
	Namespace      string `mapstructure:"namespace"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// Load reads configuration from an optional file and environment variables.
// An empty path uses defaults plus environment overrides only. A .env file
// in the working directory is loaded first if present; variables already
// set in the environment win.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration without consulting files or
// the environment.
func Default() *Config {
	catalog := make([][3]int, 0, len(selection.DefaultCatalog()))
	for _, o := range selection.DefaultCatalog() {
		catalog = append(catalog, fromOrder(o))
	}

	return &Config{
		Series: SeriesConfig{
			MinPoints: timeseries.DefaultMinPoints,
		},
		Selection: SelectionConfig{
			Cutoff:    pipeline.DefaultCutoff,
			Catalog:   catalog,
			Criterion: stats.CriterionAIC,
			Fallback:  fromOrder(selection.DefaultFallback),
		},
		Forecast: ForecastConfig{
			Horizon: forecast.DefaultHorizon,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Namespace: "healthcast",
			Job:       "healthcast",
		},
	}
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	d := Default()

	// Series defaults
	v.SetDefault("series.file", d.Series.File)
	v.SetDefault("series.region", d.Series.Region)
	v.SetDefault("series.metric", d.Series.Metric)
	v.SetDefault("series.min_points", d.Series.MinPoints)

	// Selection defaults
	v.SetDefault("selection.cutoff", d.Selection.Cutoff)
	v.SetDefault("selection.catalog", d.Selection.Catalog)
	v.SetDefault("selection.criterion", d.Selection.Criterion)
	v.SetDefault("selection.workers", d.Selection.Workers)
	v.SetDefault("selection.fallback", d.Selection.Fallback)

	// Forecast defaults
	v.SetDefault("forecast.horizon", d.Forecast.Horizon)

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	// Metrics defaults
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
	v.SetDefault("metrics.pushgateway_url", d.Metrics.PushgatewayURL)
	v.SetDefault("metrics.job", d.Metrics.Job)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Series config
	if c.Series.MinPoints < 1 {
		return fmt.Errorf("series.min_points must be at least 1")
	}

	// Validate Selection config
	if len(c.Selection.Catalog) == 0 {
		return fmt.Errorf("selection.catalog must contain at least one order")
	}
	for i, o := range c.Selection.Catalog {
		if err := toOrder(o).Validate(); err != nil {
			return fmt.Errorf("selection.catalog[%d]: %w", i, err)
		}
	}
	if err := toOrder(c.Selection.Fallback).Validate(); err != nil {
		return fmt.Errorf("selection.fallback: %w", err)
	}
	if !stats.ValidCriterion(c.Selection.Criterion) {
		return fmt.Errorf("selection.criterion must be one of: aic, aicc, bic")
	}
	if c.Selection.Workers < 0 {
		return fmt.Errorf("selection.workers must not be negative")
	}

	// Validate Forecast config
	if c.Forecast.Horizon < 1 {
		return fmt.Errorf("forecast.horizon must be at least 1")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, console")
	}

	// Validate Metrics config
	if c.Metrics.Namespace == "" {
		return fmt.Errorf("metrics.namespace is required")
	}
	if c.Metrics.PushgatewayURL != "" {
		u, err := url.Parse(c.Metrics.PushgatewayURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("metrics.pushgateway_url must be an absolute URL")
		}
	}

	return nil
}

// SelectorConfig converts the selection section for selection.New.
func (c *Config) SelectorConfig() *selection.Config {
	catalog := make(selection.Catalog, len(c.Selection.Catalog))
	for i, o := range c.Selection.Catalog {
		catalog[i] = toOrder(o)
	}
	return &selection.Config{
		Catalog:   catalog,
		Criterion: c.Selection.Criterion,
		Workers:   c.Selection.Workers,
		Fallback:  toOrder(c.Selection.Fallback),
	}
}

// PipelineConfig converts the configuration for pipeline.New.
func (c *Config) PipelineConfig() *pipeline.Config {
	return &pipeline.Config{
		Region:    c.Series.Region,
		Metric:    c.Series.Metric,
		MinPoints: c.Series.MinPoints,
		Cutoff:    c.Selection.Cutoff,
		Selection: c.SelectorConfig(),
		Forecast:  &forecast.Config{Horizon: c.Forecast.Horizon},
	}
}

func toOrder(o [3]int) arima.Order {
	return arima.Order{P: o[0], D: o[1], Q: o[2]}
}

func fromOrder(o arima.Order) [3]int {
	return [3]int{o.P, o.D, o.Q}
}
