package pipeline

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sartorproj/healthcast/forecast"
	"github.com/sartorproj/healthcast/selection"
	"github.com/sartorproj/healthcast/timeseries"
)

// DefaultCutoff is the last period used for training when a test set exists.
const DefaultCutoff = 2018

// Run results passed to Recorder.ObserveRun.
const (
	ResultOK       = "ok"
	ResultDegraded = "degraded"
	ResultFailed   = "failed"
)

// State is a pipeline stage. A run only moves forward through the states.
type State int

const (
	StateLoaded State = iota
	StateCleaned
	StateSplit
	StateSelecting
	StateSelected
	StateRefitting
	StateForecastValid
	StateForecastInvalid
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateCleaned:
		return "cleaned"
	case StateSplit:
		return "split"
	case StateSelecting:
		return "selecting"
	case StateSelected:
		return "selected"
	case StateRefitting:
		return "refitting"
	case StateForecastValid:
		return "forecast_valid"
	case StateForecastInvalid:
		return "forecast_invalid"
	default:
		return "unknown"
	}
}

// Config holds the inputs of a single run.
type Config struct {
	Region    string
	Metric    string
	MinPoints int // Minimum usable observations (default: timeseries.DefaultMinPoints)
	Cutoff    int // Last training period (default: 2018)
	Selection *selection.Config
	Forecast  *forecast.Config
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() *Config {
	return &Config{
		MinPoints: timeseries.DefaultMinPoints,
		Cutoff:    DefaultCutoff,
		Selection: selection.DefaultConfig(),
		Forecast:  forecast.DefaultConfig(),
	}
}

func (c *Config) clone() *Config {
	out := *c
	if c.Selection != nil {
		sel := *c.Selection
		sel.Catalog = slices.Clone(c.Selection.Catalog)
		out.Selection = &sel
	}
	if c.Forecast != nil {
		fc := *c.Forecast
		out.Forecast = &fc
	}
	return &out
}

// Report describes one run. Fields are filled as the run advances, so a
// report returned with a fatal error shows how far the run got.
type Report struct {
	RunID     string
	Region    string
	Metric    string
	Cutoff    int
	Quality   timeseries.Quality
	TrainSize int
	TestSize  int
	Selection *selection.Outcome
	Forecast  *forecast.Result
	Degraded  error // Non-nil iff the forecast must not be used
	State     State
	StartedAt time.Time
	Duration  time.Duration
}

// Usable reports whether Forecast holds values fit for presentation.
func (r *Report) Usable() bool {
	return r.State == StateForecastValid && r.Degraded == nil && r.Forecast != nil
}

// Recorder receives observations from every stage of a run.
type Recorder interface {
	selection.Recorder
	forecast.Recorder
	ObserveRun(result string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCandidate(string, time.Duration) {}
func (nopRecorder) ObserveFallback()                       {}
func (nopRecorder) ObserveForecast(string)                 {}
func (nopRecorder) ObserveRun(string, time.Duration)       {}

// Pipeline runs clean, split, select and forecast over one series.
type Pipeline struct {
	config   *Config
	log      zerolog.Logger
	recorder Recorder
	fit      selection.FitFunc
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the base logger. Each run adds run_id, region and metric.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithFitFunc replaces the estimator for both selection and the final refit.
func WithFitFunc(fn selection.FitFunc) Option {
	return func(p *Pipeline) { p.fit = fn }
}

// New creates a Pipeline. A nil config selects DefaultConfig; nil
// sub-configurations select their package defaults. The pipeline keeps its
// own copy, so later changes to config do not affect it.
func New(config *Config, opts ...Option) *Pipeline {
	cfg := DefaultConfig()
	if config != nil {
		cfg = config.clone()
	}
	if cfg.Selection == nil {
		cfg.Selection = selection.DefaultConfig()
	}
	if cfg.Forecast == nil {
		cfg.Forecast = forecast.DefaultConfig()
	}

	p := &Pipeline{
		config:   cfg,
		log:      zerolog.Nop(),
		recorder: nopRecorder{},
		fit:      selection.FitARIMA,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one pass over points.
//
// The returned error is non-nil only when no model could be produced:
// too few usable observations (timeseries.ErrInsufficientData), a cutoff
// before the first observation (timeseries.ErrEmptyTrain), a failed fallback
// fit (selection.ErrAllCandidatesFailed), an invalid configuration or a
// canceled context. An unusable final forecast is not an error; it is
// reported through Report.Degraded.
func (p *Pipeline) Run(ctx context.Context, points []timeseries.Point) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Region:    p.config.Region,
		Metric:    p.config.Metric,
		Cutoff:    p.config.Cutoff,
		State:     StateLoaded,
		StartedAt: time.Now(),
	}

	runLog := p.log.With().
		Str("run_id", report.RunID).
		Str("region", report.Region).
		Str("metric", report.Metric).
		Logger()
	log := runLog.With().Str("component", "pipeline").Logger()

	log.Info().Int("points", len(points)).Int("cutoff", report.Cutoff).Msg("run started")

	series, err := timeseries.Preprocess(points, p.config.MinPoints)
	if err != nil {
		return p.fail(log, report, err)
	}
	report.Quality = timeseries.Describe(points, series)
	report.State = StateCleaned
	log.Debug().
		Int("kept", series.Len()).
		Int("dropped", report.Quality.Dropped).
		Int("first_period", report.Quality.FirstPeriod).
		Int("last_period", report.Quality.LastPeriod).
		Msg("series cleaned")

	part, err := timeseries.Split(series, report.Cutoff)
	if err != nil {
		return p.fail(log, report, err)
	}
	report.TrainSize = part.Train.Len()
	report.TestSize = part.Test.Len()
	report.State = StateSplit
	log.Debug().Int("train", report.TrainSize).Int("test", report.TestSize).Msg("series split")

	report.State = StateSelecting
	selector := selection.New(p.config.Selection,
		selection.WithFitFunc(p.fit),
		selection.WithLogger(runLog),
		selection.WithRecorder(p.recorder),
	)
	outcome, err := selector.Select(ctx, part)
	if err != nil {
		return p.fail(log, report, err)
	}
	report.Selection = outcome
	report.State = StateSelected

	report.State = StateRefitting
	forecaster := forecast.New(p.config.Forecast,
		forecast.WithFitFunc(p.fit),
		forecast.WithLogger(runLog),
		forecast.WithRecorder(p.recorder),
	)
	result, err := forecaster.Forecast(series, outcome.Best)
	report.Forecast = result
	if err != nil {
		if !errors.Is(err, forecast.ErrForecastInvalid) {
			return p.fail(log, report, err)
		}
		report.Degraded = err
		report.State = StateForecastInvalid
		report.Duration = time.Since(report.StartedAt)
		p.recorder.ObserveRun(ResultDegraded, report.Duration)
		log.Warn().Err(err).Str("order", outcome.Best.String()).Msg("run finished with unusable forecast")
		return report, nil
	}

	report.State = StateForecastValid
	report.Duration = time.Since(report.StartedAt)
	p.recorder.ObserveRun(ResultOK, report.Duration)
	log.Info().
		Str("order", outcome.Best.String()).
		Str("mode", outcome.Mode.String()).
		Bool("fallback", outcome.Fallback).
		Dur("duration", report.Duration).
		Msg("run finished")

	return report, nil
}

func (p *Pipeline) fail(log zerolog.Logger, report *Report, err error) (*Report, error) {
	report.Duration = time.Since(report.StartedAt)
	p.recorder.ObserveRun(ResultFailed, report.Duration)
	log.Error().Err(err).Str("state", report.State.String()).Msg("run failed")
	return report, err
}
