// Package arima implements ARIMA (AutoRegressive Integrated Moving Average) models.
package arima

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/sartorproj/healthcast/stats"
	"github.com/sartorproj/healthcast/timeseries"
)

var (
	// ErrInvalidOrder is returned for negative model orders.
	ErrInvalidOrder = errors.New("invalid model order")
	// ErrInsufficientData is returned when the differenced series is shorter
	// than the number of ARMA terms plus the intercept.
	ErrInsufficientData = errors.New("insufficient data points for the specified order")
	// ErrDegenerate is returned when estimation produces non-finite parameters.
	ErrDegenerate = errors.New("estimation did not converge to finite parameters")
	// ErrNotFitted is returned by Predict on an unfitted model.
	ErrNotFitted = errors.New("model must be fitted before prediction")
	// ErrInvalidSteps is returned by Predict for a non-positive horizon.
	ErrInvalidSteps = errors.New("steps must be at least 1")
)

// Order represents ARIMA model order (p, d, q).
type Order struct {
	P int `json:"p" mapstructure:"p"` // AR order (number of autoregressive terms)
	D int `json:"d" mapstructure:"d"` // Differencing order
	Q int `json:"q" mapstructure:"q"` // MA order (number of moving average terms)
}

// String renders the order as (p,d,q).
func (o Order) String() string {
	return fmt.Sprintf("(%d,%d,%d)", o.P, o.D, o.Q)
}

// Validate rejects negative orders.
func (o Order) Validate() error {
	if o.P < 0 || o.D < 0 || o.Q < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidOrder, o)
	}
	return nil
}

// Model represents an ARIMA model.
type Model struct {
	Order      Order
	ARCoeffs   []float64 // AR coefficients (phi)
	MACoeffs   []float64 // MA coefficients (theta)
	Intercept  float64
	Variance   float64 // Residual variance
	AIC        float64
	AICc       float64 // Corrected AIC for small sample sizes
	BIC        float64
	LogLik     float64
	fitted     bool
	data       *timeseries.Series
	diffData   *timeseries.Series
	lastLevels []float64 // last value of the series differenced 0..d-1 times
	residuals  []float64
	fittedVals []float64
}

// New creates a new ARIMA model with the specified order.
func New(p, d, q int) *Model {
	return NewFromOrder(Order{P: p, D: d, Q: q})
}

// NewFromOrder creates a new ARIMA model from an Order value.
func NewFromOrder(order Order) *Model {
	return &Model{
		Order:    order,
		ARCoeffs: make([]float64, max(order.P, 0)),
		MACoeffs: make([]float64, max(order.Q, 0)),
	}
}

// Fit fits the ARIMA model to the given time series data.
//
// The series only needs to keep P+Q+1 observations after differencing, so
// short yearly series can still be fitted; information criteria computed
// from so few residuals are correspondingly rough.
func (m *Model) Fit(series *timeseries.Series) error {
	m.fitted = false

	if err := m.Order.Validate(); err != nil {
		return err
	}

	if series.Len()-m.Order.D < m.Order.P+m.Order.Q+1 {
		return fmt.Errorf("%w: ARIMA%s needs %d observations, got %d",
			ErrInsufficientData, m.Order, m.Order.P+m.Order.Q+m.Order.D+1, series.Len())
	}

	if !series.AllFinite() {
		return fmt.Errorf("%w: series contains non-finite values", ErrDegenerate)
	}

	m.data = series

	// Apply differencing, remembering where each level ends for integration.
	m.lastLevels = make([]float64, m.Order.D)
	diffSeries := series
	for i := 0; i < m.Order.D; i++ {
		m.lastLevels[i] = diffSeries.Values[diffSeries.Len()-1]
		diffSeries = diffSeries.Diff()
		if diffSeries.Len() == 0 {
			return errors.New("differencing resulted in empty series")
		}
	}
	m.diffData = diffSeries

	// Fit using Conditional Sum of Squares (CSS) method
	if err := m.fitCSS(); err != nil {
		return err
	}

	if !m.finiteParams() {
		return fmt.Errorf("%w: ARIMA%s", ErrDegenerate, m.Order)
	}

	m.calculateIC()

	m.fitted = true
	return nil
}

// fitCSS fits the model using Conditional Sum of Squares estimation.
func (m *Model) fitCSS() error {
	y := m.diffData.Values
	n := len(y)
	p := m.Order.P
	q := m.Order.Q

	if p == 0 && q == 0 {
		// Just a white noise model
		m.Intercept = m.diffData.Mean()
		m.Variance = 0
		for _, v := range y {
			diff := v - m.Intercept
			m.Variance += diff * diff
		}
		if n > 1 {
			m.Variance /= float64(n - 1)
		}
		m.residuals = make([]float64, n)
		m.fittedVals = make([]float64, n)
		for i, v := range y {
			m.residuals[i] = v - m.Intercept
			m.fittedVals[i] = m.Intercept
		}
		return nil
	}

	// Yule-Walker for initial AR estimates
	for i := range m.ARCoeffs {
		m.ARCoeffs[i] = 0
	}
	if p > 0 {
		acf := stats.ACF(m.diffData, p)
		if phi := yuleWalker(acf, p); phi != nil {
			copy(m.ARCoeffs, phi)
		}
		for i := range m.ARCoeffs {
			m.ARCoeffs[i] = clampCoeff(m.ARCoeffs[i])
		}
	}

	// Initialize MA coefficients to small values
	for i := range m.MACoeffs {
		m.MACoeffs[i] = 0.1
	}

	return m.optimizeCSS(y)
}

// optimizeCSS optimizes parameters using conditional sum of squares.
func (m *Model) optimizeCSS(y []float64) error {
	n := len(y)
	p := m.Order.P
	q := m.Order.Q

	m.Intercept = m.diffData.Mean()

	// Simple iterative refinement
	maxIter := 100
	tolerance := 1e-6
	learningRate := 0.01
	startIdx := m.startIdx()

	residuals := make([]float64, n)
	for iter := 0; iter < maxIter; iter++ {
		prevSSE := m.conditionalResiduals(y, residuals, startIdx)

		arGrad := make([]float64, p)
		maGrad := make([]float64, q)

		for t := startIdx; t < n; t++ {
			for i := 0; i < p && t-i-1 >= 0; i++ {
				arGrad[i] -= 2 * residuals[t] * (y[t-i-1] - m.Intercept)
			}
			for i := 0; i < q && t-i-1 >= 0; i++ {
				maGrad[i] -= 2 * residuals[t] * residuals[t-i-1]
			}
		}

		for i := 0; i < p; i++ {
			m.ARCoeffs[i] = clampCoeff(m.ARCoeffs[i] - learningRate*arGrad[i]/float64(n))
		}
		for i := 0; i < q; i++ {
			m.MACoeffs[i] = clampCoeff(m.MACoeffs[i] - learningRate*maGrad[i]/float64(n))
		}

		newSSE := m.conditionalResiduals(y, residuals, startIdx)
		if math.IsNaN(newSSE) || math.IsInf(newSSE, 0) {
			return fmt.Errorf("%w: ARIMA%s sum of squares diverged", ErrDegenerate, m.Order)
		}

		if math.Abs(prevSSE-newSSE) < tolerance {
			break
		}
	}

	// Final residuals and fitted values
	m.residuals = make([]float64, n)
	m.fittedVals = make([]float64, n)

	for t := 0; t < n; t++ {
		if t < startIdx {
			m.fittedVals[t] = m.Intercept
			m.residuals[t] = y[t] - m.fittedVals[t]
			continue
		}

		pred := m.onestep(y, m.residuals, t)
		m.fittedVals[t] = pred
		m.residuals[t] = y[t] - pred
	}

	sse := 0.0
	count := 0
	for t := startIdx; t < n; t++ {
		sse += m.residuals[t] * m.residuals[t]
		count++
	}
	if count > p+q+1 {
		m.Variance = sse / float64(count-p-q-1)
	} else {
		m.Variance = sse / float64(count)
	}

	return nil
}

// startIdx is the first index of the differenced series with a full
// conditioning window.
func (m *Model) startIdx() int {
	return max(m.Order.P, m.Order.Q)
}

// conditionalResiduals fills residuals from startIdx on and returns their SSE.
func (m *Model) conditionalResiduals(y, residuals []float64, startIdx int) float64 {
	sse := 0.0
	for t := startIdx; t < len(y); t++ {
		residuals[t] = y[t] - m.onestep(y, residuals, t)
		sse += residuals[t] * residuals[t]
	}
	return sse
}

// onestep is the one-step-ahead prediction of y[t] from its past.
func (m *Model) onestep(y, residuals []float64, t int) float64 {
	pred := m.Intercept
	for i := 0; i < m.Order.P && t-i-1 >= 0; i++ {
		pred += m.ARCoeffs[i] * (y[t-i-1] - m.Intercept)
	}
	for i := 0; i < m.Order.Q && t-i-1 >= 0; i++ {
		pred += m.MACoeffs[i] * residuals[t-i-1]
	}
	return pred
}

// clampCoeff keeps a coefficient inside the stationary/invertible region.
func clampCoeff(c float64) float64 {
	return math.Max(-0.99, math.Min(0.99, c))
}

func (m *Model) finiteParams() bool {
	return stats.AllFinite(m.ARCoeffs) &&
		stats.AllFinite(m.MACoeffs) &&
		stats.AllFinite([]float64{m.Intercept, m.Variance})
}

// calculateIC calculates AIC, AICc, and BIC from the conditional residuals,
// the same sample Variance is estimated on. Residuals before max(P,Q) are
// deviations from the intercept and do not enter the likelihood.
func (m *Model) calculateIC() {
	cond := m.residuals[m.startIdx():]
	n := len(cond)
	k := m.Order.P + m.Order.Q + 1 // number of parameters (AR + MA + intercept)

	sse := floats.Dot(cond, cond)

	ic := stats.CalculateIC(stats.GaussianLogLik(n, sse, m.Variance), n, k)
	m.LogLik = ic.LogLik
	m.AIC = ic.AIC
	m.AICc = ic.AICc
	m.BIC = ic.BIC
}

// Criterion returns the named information criterion ("aic", "aicc" or
// "bic"); unknown names return AIC.
func (m *Model) Criterion(name string) float64 {
	ic := stats.InformationCriteria{AIC: m.AIC, AICc: m.AICc, BIC: m.BIC, LogLik: m.LogLik}
	return ic.Get(name)
}

// Predict generates forecasts for the specified number of steps ahead.
// Values may be non-finite for degenerate fits; callers decide how to treat
// them.
func (m *Model) Predict(steps int) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}

	if steps < 1 {
		return nil, ErrInvalidSteps
	}

	y := m.diffData.Values
	n := len(y)

	extY := make([]float64, n+steps)
	copy(extY, y)

	// Future residuals are 0 in expectation.
	extResiduals := make([]float64, n+steps)
	copy(extResiduals, m.residuals)

	for h := 0; h < steps; h++ {
		t := n + h
		extY[t] = m.onestep(extY, extResiduals, t)
	}

	forecasts := make([]float64, steps)
	copy(forecasts, extY[n:])

	if m.Order.D > 0 {
		forecasts = m.integrate(forecasts)
	}

	return forecasts, nil
}

// integrate undoes differencing to return forecasts on original scale.
func (m *Model) integrate(forecasts []float64) []float64 {
	result := make([]float64, len(forecasts))
	copy(result, forecasts)

	// Undo the innermost difference first.
	for level := m.Order.D - 1; level >= 0; level-- {
		prev := m.lastLevels[level]
		for j := range result {
			result[j] += prev
			prev = result[j]
		}
	}

	return result
}

// Residuals returns the model residuals.
func (m *Model) Residuals() []float64 {
	if !m.fitted {
		return nil
	}
	result := make([]float64, len(m.residuals))
	copy(result, m.residuals)
	return result
}

// FittedValues returns the fitted values on the differenced scale.
func (m *Model) FittedValues() []float64 {
	if !m.fitted {
		return nil
	}
	result := make([]float64, len(m.fittedVals))
	copy(result, m.fittedVals)
	return result
}

// Summary describes a fitted model's parameters and diagnostics.
type Summary struct {
	Order        Order
	ARCoeffs     []float64
	MACoeffs     []float64
	Intercept    float64
	Variance     float64
	AIC          float64
	AICc         float64 // Corrected AIC
	BIC          float64
	LogLik       float64
	NObs         int
	LjungBox     *stats.LjungBoxResult
	DurbinWatson *stats.DurbinWatsonResult
}

// Summary returns a summary of the fitted model.
func (m *Model) Summary() *Summary {
	if !m.fitted {
		return nil
	}

	cond := m.residuals[m.startIdx():]
	residSeries := timeseries.New(append([]float64(nil), cond...))

	return &Summary{
		Order:        m.Order,
		ARCoeffs:     append([]float64(nil), m.ARCoeffs...),
		MACoeffs:     append([]float64(nil), m.MACoeffs...),
		Intercept:    m.Intercept,
		Variance:     m.Variance,
		AIC:          m.AIC,
		AICc:         m.AICc,
		BIC:          m.BIC,
		LogLik:       m.LogLik,
		NObs:         m.data.Len(),
		LjungBox:     stats.LjungBox(residSeries, 10, m.Order.P+m.Order.Q),
		DurbinWatson: stats.DurbinWatson(cond),
	}
}

// yuleWalker estimates AR coefficients using Yule-Walker equations.
func yuleWalker(acf []float64, order int) []float64 {
	if order <= 0 || len(acf) <= order {
		return nil
	}

	phi := make([]float64, order)

	// Simple case for AR(1)
	if order == 1 {
		phi[0] = acf[1]
		return phi
	}

	// Levinson-Durbin recursion
	phi[0] = acf[1]
	v := 1 - phi[0]*phi[0]

	for i := 1; i < order; i++ {
		if v <= 0 {
			break
		}

		lambda := acf[i+1]
		for j := 0; j < i; j++ {
			lambda -= phi[j] * acf[i-j]
		}
		lambda /= v

		newPhi := make([]float64, i+1)
		for j := 0; j < i; j++ {
			newPhi[j] = phi[j] - lambda*phi[i-1-j]
		}
		newPhi[i] = lambda
		copy(phi, newPhi)

		v *= (1 - lambda*lambda)
	}

	return phi
}
