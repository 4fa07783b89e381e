package selection

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/sartorproj/healthcast/arima"
	"github.com/sartorproj/healthcast/stats"
	"github.com/sartorproj/healthcast/timeseries"
)

var (
	// ErrModelFit marks a candidate whose estimation or prediction failed.
	ErrModelFit = errors.New("model fit failed")
	// ErrForecastNonFinite marks a candidate whose held-out forecast had NaN
	// or infinite values.
	ErrForecastNonFinite = errors.New("forecast contains non-finite values")
	// ErrNonFiniteCriterion marks a candidate whose criterion is NaN.
	ErrNonFiniteCriterion = errors.New("information criterion is NaN")
	// ErrAllCandidatesFailed is returned when no candidate was valid and the
	// fallback configuration could not be fitted either.
	ErrAllCandidatesFailed = errors.New("all candidates failed")
	// ErrInvalidConfig is returned for an unusable selection configuration.
	ErrInvalidConfig = errors.New("invalid selection config")
)

// Catalog is an ordered list of candidate orders. Earlier entries win ties.
type Catalog []arima.Order

// DefaultCatalog returns the standard candidate list.
func DefaultCatalog() Catalog {
	return Catalog{
		{P: 1, D: 1, Q: 1},
		{P: 2, D: 1, Q: 1},
		{P: 1, D: 1, Q: 2},
		{P: 2, D: 1, Q: 2},
		{P: 0, D: 1, Q: 1},
		{P: 1, D: 0, Q: 1},
	}
}

// DefaultFallback is fitted when no catalog entry produces a valid result.
var DefaultFallback = arima.Order{P: 1, D: 1, Q: 1}

// Config holds configuration for catalog selection.
type Config struct {
	Catalog   Catalog     // Candidates in tie-break order (default: DefaultCatalog)
	Criterion string      // Information criterion: "aic", "aicc" or "bic" (default: "aic")
	Workers   int         // Concurrent fits (default: min(len(Catalog), NumCPU))
	Fallback  arima.Order // Forced order when every candidate fails (default: (1,1,1))
}

// DefaultConfig returns the default selection configuration.
func DefaultConfig() *Config {
	return &Config{
		Catalog:   DefaultCatalog(),
		Criterion: stats.CriterionAIC,
		Fallback:  DefaultFallback,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if len(c.Catalog) == 0 {
		return fmt.Errorf("%w: catalog is empty", ErrInvalidConfig)
	}
	for _, order := range c.Catalog {
		if err := order.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if err := c.Fallback.Validate(); err != nil {
		return fmt.Errorf("%w: fallback: %w", ErrInvalidConfig, err)
	}
	if !stats.ValidCriterion(c.Criterion) {
		return fmt.Errorf("%w: unknown criterion %q", ErrInvalidConfig, c.Criterion)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return max(1, min(len(c.Catalog), runtime.NumCPU()))
}

// Mode is the scoring policy used for a selection run.
type Mode int

const (
	// ModeHoldout scores candidates by mean absolute error on the test set.
	ModeHoldout Mode = iota
	// ModeCriterion scores candidates by in-sample information criterion.
	ModeCriterion
)

func (m Mode) String() string {
	switch m {
	case ModeHoldout:
		return "holdout"
	case ModeCriterion:
		return "criterion"
	default:
		return "unknown"
	}
}

// Status is the outcome of evaluating one candidate.
type Status int

const (
	// StatusScored means the candidate fitted and produced a usable score.
	StatusScored Status = iota
	// StatusFitFailed means estimation, prediction or scoring failed.
	StatusFitFailed
	// StatusForecastInvalid means the held-out forecast was not finite.
	StatusForecastInvalid
)

func (s Status) String() string {
	switch s {
	case StatusScored:
		return "scored"
	case StatusFitFailed:
		return "fit_failed"
	case StatusForecastInvalid:
		return "forecast_invalid"
	default:
		return "unknown"
	}
}

// Model is a fitted candidate.
type Model interface {
	Predict(steps int) ([]float64, error)
	Criterion(name string) float64
	Summary() *arima.Summary
}

// FitFunc estimates a model of the given order on series.
type FitFunc func(order arima.Order, series *timeseries.Series) (Model, error)

// FitARIMA is the default FitFunc.
func FitARIMA(order arima.Order, series *timeseries.Series) (Model, error) {
	model := arima.NewFromOrder(order)
	if err := model.Fit(series); err != nil {
		return nil, err
	}
	return model, nil
}

// FitResult is the evaluation of one catalog entry.
type FitResult struct {
	Index     int // Catalog position, -1 for the fallback fit
	Order     arima.Order
	Status    Status
	Err       error          // Cause when Status is not StatusScored
	Summary   *arima.Summary // Fitted parameters; nil when the fit failed
	Criterion float64        // In-sample criterion; NaN when the fit failed
	Forecast  []float64      // Held-out forecast; nil in criterion mode
	MAE       float64        // Held-out error; NaN unless HasMAE
	HasMAE    bool
}

// Valid reports whether the candidate may be considered for selection.
func (r FitResult) Valid() bool {
	return r.Status == StatusScored
}

// Score returns the value compared under mode.
func (r FitResult) Score(mode Mode) float64 {
	if mode == ModeHoldout {
		return r.MAE
	}
	return r.Criterion
}

// Outcome is the result of a selection run.
type Outcome struct {
	Best      arima.Order
	BestFit   FitResult
	Evaluated []FitResult // One entry per catalog order, in catalog order
	Accepted  []int       // Catalog indices that improved the running best
	Mode      Mode
	Criterion string
	Fallback  bool
}

// Recorder receives per-candidate observations.
type Recorder interface {
	ObserveCandidate(status string, elapsed time.Duration)
	ObserveFallback()
}

type nopRecorder struct{}

func (nopRecorder) ObserveCandidate(string, time.Duration) {}
func (nopRecorder) ObserveFallback()                       {}

func newFitResult(idx int, order arima.Order) FitResult {
	return FitResult{
		Index:     idx,
		Order:     order,
		Criterion: math.NaN(),
		MAE:       math.NaN(),
	}
}
