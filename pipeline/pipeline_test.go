package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/healthcast/arima"
	"github.com/sartorproj/healthcast/forecast"
	"github.com/sartorproj/healthcast/selection"
	"github.com/sartorproj/healthcast/timeseries"
)

func malariaPoints() []timeseries.Point {
	return []timeseries.Point{
		{Period: 2015, Value: 0.40},
		{Period: 2016, Value: 0.38},
		{Period: 2017, Value: 0.35},
		{Period: 2018, Value: 0.33},
		{Period: 2019, Value: 0.30},
		{Period: 2020, Value: 0.28},
	}
}

type runRecorder struct {
	mu         sync.Mutex
	runs       []string
	forecasts  []string
	candidates int
	fallbacks  int
}

func (r *runRecorder) ObserveCandidate(string, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates++
}

func (r *runRecorder) ObserveFallback() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks++
}

func (r *runRecorder) ObserveForecast(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forecasts = append(r.forecasts, outcome)
}

func (r *runRecorder) ObserveRun(result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, result)
}

type nanModel struct{}

func (nanModel) Predict(steps int) ([]float64, error) {
	out := make([]float64, steps)
	for i := range out {
		out[i] = math.NaN()
	}
	return out, nil
}

func (nanModel) Criterion(string) float64 { return 1 }
func (nanModel) Summary() *arima.Summary   { return &arima.Summary{} }

func TestRunHoldout(t *testing.T) {
	rec := &runRecorder{}
	cfg := DefaultConfig()
	cfg.Region, cfg.Metric = "Kenya", "Malaria Mortality"

	report, err := New(cfg, WithRecorder(rec)).Run(context.Background(), malariaPoints())
	require.NoError(t, err)

	_, err = uuid.Parse(report.RunID)
	assert.NoError(t, err)

	assert.Equal(t, 4, report.TrainSize)
	assert.Equal(t, 2, report.TestSize)
	assert.Equal(t, selection.ModeHoldout, report.Selection.Mode)
	assert.Len(t, report.Selection.Evaluated, len(selection.DefaultCatalog()))

	require.True(t, report.Usable())
	assert.Equal(t, StateForecastValid, report.State)
	assert.Equal(t, []int{2021, 2022, 2023}, report.Forecast.Periods)
	assert.Equal(t, report.Selection.Best, report.Forecast.Order)
	assert.Equal(t, 2015, report.Quality.FirstPeriod)
	assert.Equal(t, 2020, report.Quality.LastPeriod)

	assert.Equal(t, []string{ResultOK}, rec.runs)
	assert.Equal(t, []string{forecast.OutcomeValid}, rec.forecasts)
	assert.Equal(t, len(selection.DefaultCatalog()), rec.candidates)
}

func TestRunCriterionModeWhenCutoffAfterLastPeriod(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cutoff = 2025

	report, err := New(cfg).Run(context.Background(), malariaPoints())
	require.NoError(t, err)

	assert.Equal(t, 6, report.TrainSize)
	assert.Equal(t, 0, report.TestSize)
	assert.Equal(t, selection.ModeCriterion, report.Selection.Mode)
	assert.Nil(t, report.Selection.BestFit.Forecast)
}

func TestRunInsufficientData(t *testing.T) {
	rec := &runRecorder{}
	points := []timeseries.Point{
		{Period: 2018, Value: 0.33},
		{Period: 2019, Value: 0.31},
		{Period: 2020, Value: 0.29},
	}

	report, err := New(nil, WithRecorder(rec)).Run(context.Background(), points)
	require.Error(t, err)
	assert.ErrorIs(t, err, timeseries.ErrInsufficientData)
	assert.Contains(t, err.Error(), "need at least 5")

	require.NotNil(t, report)
	assert.Equal(t, StateLoaded, report.State)
	assert.Nil(t, report.Selection)
	assert.False(t, report.Usable())
	assert.Zero(t, rec.candidates)
	assert.Equal(t, []string{ResultFailed}, rec.runs)
}

func TestRunDropsMissingValues(t *testing.T) {
	points := append(malariaPoints(),
		timeseries.Point{Period: 2021, Value: math.NaN()},
		timeseries.Point{Period: 2013, Value: math.Inf(1)},
	)

	report, err := New(nil).Run(context.Background(), points)
	require.NoError(t, err)

	assert.Equal(t, 8, report.Quality.Total)
	assert.Equal(t, 2, report.Quality.Dropped)
	assert.Equal(t, 2020, report.Quality.LastPeriod)
	assert.Equal(t, 2021, report.Forecast.Periods[0])
}

func TestRunUnsortedInput(t *testing.T) {
	points := malariaPoints()
	points[0], points[5] = points[5], points[0]
	points[1], points[3] = points[3], points[1]

	sorted, err := New(nil).Run(context.Background(), malariaPoints())
	require.NoError(t, err)
	shuffled, err := New(nil).Run(context.Background(), points)
	require.NoError(t, err)

	assert.Equal(t, sorted.Selection.Best, shuffled.Selection.Best)
	assert.Equal(t, sorted.Forecast.Values, shuffled.Forecast.Values)
}

func TestRunEmptyTrain(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cutoff = 2000

	report, err := New(cfg).Run(context.Background(), malariaPoints())
	assert.ErrorIs(t, err, timeseries.ErrEmptyTrain)
	assert.Equal(t, StateCleaned, report.State)
}

func TestRunDegradedForecast(t *testing.T) {
	rec := &runRecorder{}
	cfg := DefaultConfig()
	cfg.Cutoff = 2025 // criterion mode never predicts, so every candidate is valid
	fit := func(arima.Order, *timeseries.Series) (selection.Model, error) {
		return nanModel{}, nil
	}

	report, err := New(cfg, WithFitFunc(fit), WithRecorder(rec)).Run(context.Background(), malariaPoints())
	require.NoError(t, err)

	assert.Equal(t, StateForecastInvalid, report.State)
	assert.ErrorIs(t, report.Degraded, forecast.ErrForecastInvalid)
	assert.False(t, report.Usable())
	assert.Equal(t, selection.DefaultCatalog()[0], report.Selection.Best)
	assert.Equal(t, []string{ResultDegraded}, rec.runs)
	assert.Equal(t, []string{forecast.OutcomeInvalid}, rec.forecasts)
}

func TestRunAllCandidatesFailed(t *testing.T) {
	rec := &runRecorder{}
	errFit := errors.New("singular")
	fit := func(arima.Order, *timeseries.Series) (selection.Model, error) {
		return nil, errFit
	}

	report, err := New(nil, WithFitFunc(fit), WithRecorder(rec)).Run(context.Background(), malariaPoints())
	assert.ErrorIs(t, err, selection.ErrAllCandidatesFailed)
	assert.ErrorIs(t, err, errFit)
	assert.Equal(t, StateSelecting, report.State)
	assert.Equal(t, 1, rec.fallbacks)
	assert.Equal(t, []string{ResultFailed}, rec.runs)
}

func TestRunFallbackStillForecasts(t *testing.T) {
	// Only the fallback order fits; every catalog entry is rejected.
	cfg := DefaultConfig()
	cfg.Selection.Catalog = selection.Catalog{{P: 2, D: 1, Q: 2}, {P: 3, D: 1, Q: 3}}

	report, err := New(cfg).Run(context.Background(), malariaPoints())
	require.NoError(t, err)

	assert.True(t, report.Selection.Fallback)
	assert.Equal(t, selection.DefaultFallback, report.Selection.Best)
	assert.Equal(t, selection.DefaultFallback, report.Forecast.Order)
}

func TestRunLogsRunContext(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	cfg := DefaultConfig()
	cfg.Region, cfg.Metric = "Kenya", "Malaria Mortality"

	report, err := New(cfg, WithLogger(log)).Run(context.Background(), malariaPoints())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"run_id":"`+report.RunID+`"`)
	assert.Contains(t, out, `"region":"Kenya"`)
	assert.Contains(t, out, `"component":"selection"`)
	assert.Contains(t, out, `"component":"forecast"`)
	assert.Contains(t, out, "candidate evaluated")
	assert.Equal(t, len(selection.DefaultCatalog()), strings.Count(out, "candidate evaluated"))
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(nil).Run(ctx, malariaPoints())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateSelecting, report.State)
}

func TestNewLeavesCallerConfigUntouched(t *testing.T) {
	partial := &Config{MinPoints: timeseries.DefaultMinPoints, Cutoff: DefaultCutoff}
	New(partial)
	assert.Nil(t, partial.Selection)
	assert.Nil(t, partial.Forecast)

	cfg := DefaultConfig()
	p := New(cfg)
	cfg.Selection.Catalog = selection.Catalog{{P: 3, D: 1, Q: 3}}
	cfg.Forecast.Horizon = 7

	report, err := p.Run(context.Background(), malariaPoints())
	require.NoError(t, err)
	assert.Len(t, report.Selection.Evaluated, len(selection.DefaultCatalog()))
	assert.Len(t, report.Forecast.Values, forecast.DefaultHorizon)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "loaded", StateLoaded.String())
	assert.Equal(t, "forecast_invalid", StateForecastInvalid.String())
	assert.Equal(t, "unknown", State(99).String())
}
