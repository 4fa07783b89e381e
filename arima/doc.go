// Package arima implements AutoRegressive Integrated Moving Average (ARIMA) models.
//
// An ARIMA(p,d,q) model combines:
//   - AR(p): AutoRegressive component with p lags
//   - I(d): Integration (differencing) of order d
//   - MA(q): Moving Average component with q lags
//
// Parameters are estimated by conditional sum of squares, seeded with
// Yule-Walker AR estimates.
//
// # Basic Usage
//
//	model := arima.New(1, 1, 1)
//	if err := model.Fit(series); err != nil {
//	    // errors.Is(err, arima.ErrInsufficientData) for very short series
//	}
//
//	forecasts, _ := model.Predict(3)
//
// # Short Series
//
// Fit accepts any series that keeps at least p+q+1 observations after
// differencing, which lets yearly indicators with a handful of points be
// modelled. Forecasts are not checked for finiteness; callers that need
// numeric guarantees should test them with stats.AllFinite.
//
// # Model Comparison
//
// Criterion returns AIC, AICc or BIC by name; lower is better:
//
//	if m1.Criterion("aic") < m2.Criterion("aic") {
//	    // prefer m1
//	}
//
// Summary exposes the fitted coefficients with Ljung-Box and Durbin-Watson
// residual diagnostics.
package arima
