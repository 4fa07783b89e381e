// Package forecast refits a selected ARIMA order on the full history and
// projects it forward.
package forecast

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sartorproj/healthcast/arima"
	"github.com/sartorproj/healthcast/selection"
	"github.com/sartorproj/healthcast/stats"
	"github.com/sartorproj/healthcast/timeseries"
)

// DefaultHorizon is the number of periods forecast past the last observation.
const DefaultHorizon = 3

var (
	// ErrForecastInvalid is returned when the final forecast cannot be used,
	// either because the refit failed or because a value is NaN or infinite.
	// It marks a degraded run, not an aborted one.
	ErrForecastInvalid = errors.New("forecast is not usable")
	// ErrInvalidHorizon is returned for a horizon below one period.
	ErrInvalidHorizon = errors.New("forecast horizon must be at least 1")
)

// Outcome labels passed to Recorder.ObserveForecast.
const (
	OutcomeValid   = "valid"
	OutcomeInvalid = "invalid"
)

// Config controls the final forecast.
type Config struct {
	Horizon int // Periods to forecast (default: 3)
}

// DefaultConfig returns the default forecast configuration.
func DefaultConfig() *Config {
	return &Config{Horizon: DefaultHorizon}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Horizon < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidHorizon, c.Horizon)
	}
	return nil
}

// Result is a forecast for the periods following the observed series.
type Result struct {
	Order   arima.Order
	Periods []int     // last+1 ... last+Horizon
	Values  []float64 // One value per period
	Summary *arima.Summary
}

// Points returns the forecast as period/value pairs.
func (r *Result) Points() []timeseries.Point {
	points := make([]timeseries.Point, len(r.Values))
	for i, v := range r.Values {
		points[i] = timeseries.Point{Period: r.Periods[i], Value: v}
	}
	return points
}

// Recorder receives forecast outcomes.
type Recorder interface {
	ObserveForecast(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveForecast(string) {}

// Forecaster produces the final forecast for a chosen order.
type Forecaster struct {
	config   *Config
	fit      selection.FitFunc
	log      zerolog.Logger
	recorder Recorder
}

// Option configures a Forecaster.
type Option func(*Forecaster)

// WithFitFunc replaces the estimator used for the refit.
func WithFitFunc(fn selection.FitFunc) Option {
	return func(f *Forecaster) { f.fit = fn }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(f *Forecaster) {
		f.log = log.With().Str("component", "forecast").Logger()
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(f *Forecaster) { f.recorder = r }
}

// New creates a Forecaster. A nil config selects DefaultConfig.
func New(config *Config, opts ...Option) *Forecaster {
	if config == nil {
		config = DefaultConfig()
	}
	f := &Forecaster{
		config:   config,
		fit:      selection.FitARIMA,
		log:      zerolog.Nop(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Forecast refits order on the whole series and predicts Horizon periods
// past its last observation.
//
// A failed refit or a non-finite value yields an error wrapping
// ErrForecastInvalid. When the refit succeeded the Result is returned with
// that error so callers can still report the fitted parameters; its Values
// must not be presented as a forecast.
func (f *Forecaster) Forecast(series *timeseries.Series, order arima.Order) (*Result, error) {
	if err := f.config.Validate(); err != nil {
		return nil, err
	}

	horizon := f.config.Horizon
	log := f.log.With().Str("order", order.String()).Int("horizon", horizon).Logger()

	model, err := f.fit(order, series)
	if err != nil {
		f.recorder.ObserveForecast(OutcomeInvalid)
		log.Error().Err(err).Int("points", series.Len()).Msg("refit on full series failed")
		return nil, fmt.Errorf("%w: refit ARIMA%s: %w", ErrForecastInvalid, order, err)
	}

	values, err := model.Predict(horizon)
	if err != nil {
		f.recorder.ObserveForecast(OutcomeInvalid)
		log.Error().Err(err).Msg("prediction failed")
		return nil, fmt.Errorf("%w: predict ARIMA%s: %w", ErrForecastInvalid, order, err)
	}

	last := series.LastPeriod()
	periods := make([]int, horizon)
	for i := range periods {
		periods[i] = last + 1 + i
	}

	result := &Result{
		Order:   order,
		Periods: periods,
		Values:  values,
		Summary: model.Summary(),
	}

	if !stats.AllFinite(values) {
		f.recorder.ObserveForecast(OutcomeInvalid)
		log.Warn().Floats64("values", values).Msg("forecast contains non-finite values")
		return result, fmt.Errorf("%w: ARIMA%s produced non-finite values", ErrForecastInvalid, order)
	}

	f.recorder.ObserveForecast(OutcomeValid)
	log.Info().
		Int("first_period", periods[0]).
		Int("last_period", periods[horizon-1]).
		Msg("forecast produced")

	return result, nil
}
