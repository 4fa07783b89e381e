// Package stats provides the numeric helpers used to fit, diagnose and score
// ARIMA candidates.
//
// # Autocorrelation
//
// ACF seeds the autoregressive coefficients of a fit:
//
//	acf := stats.ACF(series, p)
//
// # Information Criteria
//
// CalculateIC derives AIC, AICc and BIC from a log-likelihood; Get picks one
// by name ("aic", "aicc", "bic"):
//
//	ic := stats.CalculateIC(logLik, nObs, nParams)
//	score := ic.Get(stats.CriterionAIC)
//
// # Forecast Accuracy
//
// MAE scores a held-out forecast; AllFinite guards against NaN or infinite
// predictions before scoring:
//
//	if stats.AllFinite(forecast) {
//	    mae, _ := stats.MAE(test.Values, forecast)
//	}
//
// # Residual Diagnostics
//
//	lb := stats.LjungBox(residuals, 10, p+q)
//	dw := stats.DurbinWatson(residuals.Values)
package stats
