package selection

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/healthcast/arima"
	"github.com/sartorproj/healthcast/timeseries"
)

// stubModel returns canned forecasts and criteria.
type stubModel struct {
	order     arima.Order
	value     float64 // Repeated for every forecast step
	criterion float64
}

func (m *stubModel) Predict(steps int) ([]float64, error) {
	out := make([]float64, steps)
	for i := range out {
		out[i] = m.value
	}
	return out, nil
}

func (m *stubModel) Criterion(string) float64 { return m.criterion }

func (m *stubModel) Summary() *arima.Summary {
	return &arima.Summary{Order: m.order, AIC: m.criterion}
}

var errStubFit = errors.New("stub fit failed")

// stubFit fits models from a table keyed by order; missing orders fail.
func stubFit(models map[arima.Order]*stubModel) FitFunc {
	return func(order arima.Order, _ *timeseries.Series) (Model, error) {
		m, ok := models[order]
		if !ok {
			return nil, errStubFit
		}
		m.order = order
		return m, nil
	}
}

type countingRecorder struct {
	mu         sync.Mutex
	candidates map[string]int
	fallbacks  int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{candidates: make(map[string]int)}
}

func (r *countingRecorder) ObserveCandidate(status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates[status]++
}

func (r *countingRecorder) ObserveFallback() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks++
}

var (
	orderA = arima.Order{P: 1, D: 1, Q: 1}
	orderB = arima.Order{P: 2, D: 1, Q: 1}
	orderC = arima.Order{P: 0, D: 1, Q: 1}
)

func holdoutPartition(t *testing.T) *timeseries.Partition {
	t.Helper()
	series := timeseries.NewYearly(2015, []float64{0.40, 0.38, 0.35, 0.33, 0.30, 0.28})
	part, err := timeseries.Split(series, 2018)
	require.NoError(t, err)
	require.True(t, part.HasTest())
	return part
}

func fullPartition(t *testing.T) *timeseries.Partition {
	t.Helper()
	series := timeseries.NewYearly(2015, []float64{0.40, 0.38, 0.35, 0.33, 0.30, 0.28})
	part, err := timeseries.Split(series, 2025)
	require.NoError(t, err)
	require.False(t, part.HasTest())
	return part
}

func stubConfig(catalog ...arima.Order) *Config {
	cfg := DefaultConfig()
	cfg.Catalog = catalog
	return cfg
}

func TestSelectHoldoutShortSeries(t *testing.T) {
	part := holdoutPartition(t)

	out, err := New(nil).Select(context.Background(), part)
	require.NoError(t, err)

	assert.Equal(t, ModeHoldout, out.Mode)
	assert.False(t, out.Fallback)
	require.Len(t, out.Evaluated, len(DefaultCatalog()))

	// Four training points cannot carry three ARMA terms after differencing.
	for _, idx := range []int{1, 2, 3} {
		r := out.Evaluated[idx]
		assert.Equal(t, StatusFitFailed, r.Status, "candidate %s", r.Order)
		assert.ErrorIs(t, r.Err, ErrModelFit)
		assert.ErrorIs(t, r.Err, arima.ErrInsufficientData)
	}

	require.True(t, out.BestFit.Valid())
	assert.True(t, out.BestFit.HasMAE)
	assert.Len(t, out.BestFit.Forecast, part.Test.Len())
	assert.Contains(t, []arima.Order{
		{P: 1, D: 1, Q: 1}, {P: 0, D: 1, Q: 1}, {P: 1, D: 0, Q: 1},
	}, out.Best)

	for _, r := range out.Evaluated {
		if r.Valid() {
			assert.Len(t, r.Forecast, part.Test.Len())
			assert.GreaterOrEqual(t, r.MAE, out.BestFit.MAE)
		}
	}
}

func TestSelectCriterionModeWithoutTest(t *testing.T) {
	part := fullPartition(t)

	out, err := New(nil).Select(context.Background(), part)
	require.NoError(t, err)

	assert.Equal(t, ModeCriterion, out.Mode)
	require.True(t, out.BestFit.Valid())
	assert.False(t, out.BestFit.HasMAE)
	assert.Nil(t, out.BestFit.Forecast)

	for _, r := range out.Evaluated {
		if !r.Valid() {
			continue
		}
		assert.GreaterOrEqual(t, r.Criterion, out.BestFit.Criterion)
		if r.Criterion == out.BestFit.Criterion {
			assert.GreaterOrEqual(t, r.Index, out.BestFit.Index, "ties go to the earlier entry")
		}
	}
}

func TestSelectSkipsNonFiniteForecast(t *testing.T) {
	part := holdoutPartition(t)
	fit := stubFit(map[arima.Order]*stubModel{
		orderA: {value: math.NaN()},
		orderB: {value: 0.25}, // MAE 0.04
		orderC: {value: 0.29}, // MAE 0.01
	})

	out, err := New(stubConfig(orderA, orderB, orderC), WithFitFunc(fit)).
		Select(context.Background(), part)
	require.NoError(t, err)

	assert.Equal(t, StatusForecastInvalid, out.Evaluated[0].Status)
	assert.ErrorIs(t, out.Evaluated[0].Err, ErrForecastNonFinite)
	assert.False(t, out.Evaluated[0].HasMAE)

	assert.Equal(t, orderC, out.Best)
	assert.Equal(t, []int{1, 2}, out.Accepted)
	assert.InDelta(t, 0.01, out.BestFit.MAE, 1e-12)
	assert.False(t, out.Fallback)
}

func TestSelectTieKeepsEarlierCandidate(t *testing.T) {
	part := fullPartition(t)
	fit := stubFit(map[arima.Order]*stubModel{
		orderA: {criterion: -10},
		orderB: {criterion: -10},
		orderC: {criterion: -10},
	})

	out, err := New(stubConfig(orderA, orderB, orderC), WithFitFunc(fit)).
		Select(context.Background(), part)
	require.NoError(t, err)

	assert.Equal(t, orderA, out.Best)
	assert.Equal(t, []int{0}, out.Accepted)
}

func TestSelectAcceptsOnlyStrictImprovements(t *testing.T) {
	part := fullPartition(t)
	fit := stubFit(map[arima.Order]*stubModel{
		orderA: {criterion: 3},
		orderB: {criterion: 1},
		orderC: {criterion: 1},
	})

	out, err := New(stubConfig(orderA, orderB, orderC), WithFitFunc(fit)).
		Select(context.Background(), part)
	require.NoError(t, err)

	assert.Equal(t, orderB, out.Best)
	assert.Equal(t, []int{0, 1}, out.Accepted)
}

func TestSelectFirstValidSeedsBest(t *testing.T) {
	part := fullPartition(t)
	fit := stubFit(map[arima.Order]*stubModel{
		orderB: {criterion: math.Inf(1)},
		orderC: {criterion: math.Inf(1)},
	})

	out, err := New(stubConfig(orderA, orderB, orderC), WithFitFunc(fit)).
		Select(context.Background(), part)
	require.NoError(t, err)

	assert.Equal(t, orderB, out.Best)
	assert.Equal(t, []int{1}, out.Accepted)
	assert.Equal(t, StatusFitFailed, out.Evaluated[0].Status)
}

func TestSelectNaNCriterionIsFailure(t *testing.T) {
	part := fullPartition(t)
	fit := stubFit(map[arima.Order]*stubModel{
		orderA: {criterion: math.NaN()},
		orderB: {criterion: 5},
	})

	out, err := New(stubConfig(orderA, orderB), WithFitFunc(fit)).
		Select(context.Background(), part)
	require.NoError(t, err)

	assert.Equal(t, StatusFitFailed, out.Evaluated[0].Status)
	assert.ErrorIs(t, out.Evaluated[0].Err, ErrNonFiniteCriterion)
	assert.Equal(t, orderB, out.Best)
}

func TestSelectFallback(t *testing.T) {
	part := holdoutPartition(t)
	rec := newCountingRecorder()

	// Every candidate forecasts NaN, but the fallback order still fits.
	fit := stubFit(map[arima.Order]*stubModel{
		orderA: {value: math.NaN(), criterion: 1},
		orderB: {value: math.Inf(1)},
	})

	out, err := New(stubConfig(orderA, orderB), WithFitFunc(fit), WithRecorder(rec)).
		Select(context.Background(), part)
	require.NoError(t, err)

	assert.True(t, out.Fallback)
	assert.Equal(t, DefaultFallback, out.Best)
	assert.Equal(t, -1, out.BestFit.Index)
	assert.Empty(t, out.Accepted)
	assert.NotNil(t, out.BestFit.Summary)

	assert.Equal(t, 2, rec.candidates[StatusForecastInvalid.String()])
	assert.Equal(t, 1, rec.fallbacks)
}

func TestSelectFallbackFailure(t *testing.T) {
	part := holdoutPartition(t)
	fit := stubFit(nil)

	out, err := New(stubConfig(orderA, orderB), WithFitFunc(fit)).
		Select(context.Background(), part)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrAllCandidatesFailed)
	assert.ErrorIs(t, err, errStubFit)
}

func TestSelectDeterministicAcrossWorkers(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 10 + 0.5*float64(i) + math.Sin(float64(i))
	}
	series := timeseries.NewYearly(1990, values)
	part, err := timeseries.Split(series, 2013)
	require.NoError(t, err)

	run := func(workers int) *Outcome {
		cfg := DefaultConfig()
		cfg.Workers = workers
		out, err := New(cfg).Select(context.Background(), part)
		require.NoError(t, err)
		return out
	}

	serial := run(1)
	parallel := run(8)
	again := run(8)

	for _, out := range []*Outcome{parallel, again} {
		assert.Equal(t, serial.Best, out.Best)
		assert.Equal(t, serial.Accepted, out.Accepted)
		require.Len(t, out.Evaluated, len(serial.Evaluated))
		for i := range out.Evaluated {
			assert.Equal(t, serial.Evaluated[i].Status, out.Evaluated[i].Status)
			assert.Equal(t, serial.Evaluated[i].Forecast, out.Evaluated[i].Forecast)
		}
	}
}

func TestSelectAcceptedIsMonotonic(t *testing.T) {
	part := fullPartition(t)
	fit := stubFit(map[arima.Order]*stubModel{
		{P: 1, D: 1, Q: 1}: {criterion: 9},
		{P: 2, D: 1, Q: 1}: {criterion: 12},
		{P: 1, D: 1, Q: 2}: {criterion: 7},
		{P: 2, D: 1, Q: 2}: {criterion: 7},
		{P: 0, D: 1, Q: 1}: {criterion: 2},
		{P: 1, D: 0, Q: 1}: {criterion: 4},
	})

	out, err := New(nil, WithFitFunc(fit)).Select(context.Background(), part)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2, 4}, out.Accepted)
	for i := 1; i < len(out.Accepted); i++ {
		prev := out.Evaluated[out.Accepted[i-1]]
		cur := out.Evaluated[out.Accepted[i]]
		assert.Less(t, cur.Criterion, prev.Criterion)
	}
	assert.Equal(t, arima.Order{P: 0, D: 1, Q: 1}, out.Best)
}

func TestSelectRecordsEveryCandidate(t *testing.T) {
	part := holdoutPartition(t)
	rec := newCountingRecorder()

	_, err := New(nil, WithRecorder(rec)).Select(context.Background(), part)
	require.NoError(t, err)

	total := 0
	for _, n := range rec.candidates {
		total += n
	}
	assert.Equal(t, len(DefaultCatalog()), total)
	assert.Equal(t, 3, rec.candidates[StatusFitFailed.String()])
	assert.Zero(t, rec.fallbacks)
}

func TestSelectCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Select(ctx, holdoutPartition(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty catalog", func(c *Config) { c.Catalog = nil }},
		{"negative order", func(c *Config) { c.Catalog = Catalog{{P: -1, D: 1, Q: 1}} }},
		{"bad fallback", func(c *Config) { c.Fallback = arima.Order{P: 1, D: -1, Q: 1} }},
		{"unknown criterion", func(c *Config) { c.Criterion = "hqic" }},
		{"negative workers", func(c *Config) { c.Workers = -2 }},
	}

	require.NoError(t, DefaultConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

			_, err := New(cfg).Select(context.Background(), fullPartition(t))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestStatusAndModeStrings(t *testing.T) {
	assert.Equal(t, "scored", StatusScored.String())
	assert.Equal(t, "fit_failed", StatusFitFailed.String())
	assert.Equal(t, "forecast_invalid", StatusForecastInvalid.String())
	assert.Equal(t, "holdout", ModeHoldout.String())
	assert.Equal(t, "criterion", ModeCriterion.String())
}
