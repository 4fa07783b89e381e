package selection

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sartorproj/healthcast/arima"
	"github.com/sartorproj/healthcast/stats"
	"github.com/sartorproj/healthcast/timeseries"
)

// Selector evaluates a catalog of ARIMA orders and picks the best one.
type Selector struct {
	config   *Config
	fit      FitFunc
	log      zerolog.Logger
	recorder Recorder
}

// Option configures a Selector.
type Option func(*Selector)

// WithFitFunc replaces the estimator used for every candidate.
func WithFitFunc(fn FitFunc) Option {
	return func(s *Selector) { s.fit = fn }
}

// WithLogger sets the logger used for candidate diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Selector) {
		s.log = log.With().Str("component", "selection").Logger()
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Selector) { s.recorder = r }
}

// New creates a Selector. A nil config selects DefaultConfig.
func New(config *Config, opts ...Option) *Selector {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Selector{
		config:   config,
		fit:      FitARIMA,
		log:      zerolog.Nop(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select fits every catalog entry on the partition's training data and
// returns the winner.
//
// With a test set, candidates are scored by mean absolute error of a
// len(test)-step forecast; otherwise by the configured information criterion
// over the whole series. Only strictly lower scores replace the running
// best, so ties go to the earlier catalog entry. Candidates are fitted
// concurrently but reduced in catalog order.
//
// Candidate failures never surface as errors. When no candidate is valid the
// fallback order is fitted instead; ErrAllCandidatesFailed is returned only
// if that fit fails too.
func (s *Selector) Select(ctx context.Context, part *timeseries.Partition) (*Outcome, error) {
	if err := s.config.Validate(); err != nil {
		return nil, err
	}

	train := part.Training()
	mode := ModeCriterion
	var test *timeseries.Series
	if part.HasTest() {
		mode = ModeHoldout
		test = part.Test
	}

	catalog := s.config.Catalog
	results := make([]FitResult, len(catalog))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.workers())
	for i, order := range catalog {
		i, order := i, order
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.evaluate(i, order, train, test)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		s.logCandidate(r, mode)
	}

	best, accepted := reduce(results, mode)

	outcome := &Outcome{
		Evaluated: results,
		Accepted:  accepted,
		Mode:      mode,
		Criterion: s.config.Criterion,
	}

	if best >= 0 {
		outcome.Best = results[best].Order
		outcome.BestFit = results[best]
		s.log.Info().
			Str("mode", mode.String()).
			Str("order", outcome.Best.String()).
			Float64("score", outcome.BestFit.Score(mode)).
			Int("train_points", train.Len()).
			Msg("best model selected")
		return outcome, nil
	}

	fallback, err := s.fitFallback(train)
	if err != nil {
		return nil, err
	}
	outcome.Best = fallback.Order
	outcome.BestFit = fallback
	outcome.Fallback = true

	return outcome, nil
}

// reduce folds results in catalog order. The first valid result seeds the
// running best; later ones replace it only with a strictly lower score.
func reduce(results []FitResult, mode Mode) (best int, accepted []int) {
	best = -1
	for i, r := range results {
		if !r.Valid() {
			continue
		}
		if best == -1 || r.Score(mode) < results[best].Score(mode) {
			best = i
			accepted = append(accepted, i)
		}
	}
	return best, accepted
}

// evaluate fits and scores one candidate. test is nil in criterion mode.
func (s *Selector) evaluate(idx int, order arima.Order, train, test *timeseries.Series) (res FitResult) {
	start := time.Now()
	res = newFitResult(idx, order)
	defer func() {
		s.recorder.ObserveCandidate(res.Status.String(), time.Since(start))
	}()

	model, err := s.fit(order, train)
	if err != nil {
		res.Status = StatusFitFailed
		res.Err = fmt.Errorf("%w: ARIMA%s: %w", ErrModelFit, order, err)
		return res
	}

	res.Summary = model.Summary()
	res.Criterion = model.Criterion(s.config.Criterion)

	if test == nil {
		if math.IsNaN(res.Criterion) {
			res.Status = StatusFitFailed
			res.Err = fmt.Errorf("%w: ARIMA%s", ErrNonFiniteCriterion, order)
			return res
		}
		res.Status = StatusScored
		return res
	}

	forecast, err := model.Predict(test.Len())
	if err != nil {
		res.Status = StatusFitFailed
		res.Err = fmt.Errorf("%w: ARIMA%s: predict: %w", ErrModelFit, order, err)
		return res
	}
	res.Forecast = forecast

	if !stats.AllFinite(forecast) {
		res.Status = StatusForecastInvalid
		res.Err = fmt.Errorf("%w: ARIMA%s", ErrForecastNonFinite, order)
		return res
	}

	mae, err := stats.MAE(test.Values, forecast)
	if err != nil {
		res.Status = StatusFitFailed
		res.Err = fmt.Errorf("%w: ARIMA%s: score: %w", ErrModelFit, order, err)
		return res
	}

	res.MAE = mae
	res.HasMAE = true
	res.Status = StatusScored
	return res
}

func (s *Selector) fitFallback(train *timeseries.Series) (FitResult, error) {
	order := s.config.Fallback
	s.recorder.ObserveFallback()
	s.log.Warn().
		Str("order", order.String()).
		Int("candidates", len(s.config.Catalog)).
		Msg("no valid candidate, fitting fallback order")

	model, err := s.fit(order, train)
	if err != nil {
		return FitResult{}, fmt.Errorf("%w: fallback ARIMA%s: %w", ErrAllCandidatesFailed, order, err)
	}

	res := newFitResult(-1, order)
	res.Status = StatusScored
	res.Summary = model.Summary()
	res.Criterion = model.Criterion(s.config.Criterion)
	return res, nil
}

func (s *Selector) logCandidate(r FitResult, mode Mode) {
	event := s.log.Debug().
		Int("index", r.Index).
		Str("order", r.Order.String()).
		Str("status", r.Status.String())

	if r.Valid() {
		event = event.Float64("criterion", r.Criterion)
		if mode == ModeHoldout {
			event = event.Float64("mae", r.MAE)
		}
	} else {
		event = event.Err(r.Err)
	}

	event.Msg("candidate evaluated")
}
