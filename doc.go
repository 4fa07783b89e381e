// Package healthcast forecasts yearly public-health indicators with ARIMA
// models chosen from a fixed catalog.
//
// A run takes the raw observations of one region and metric, drops missing
// years, holds out the years after a cutoff, scores every catalog order on
// the held-out years, refits the winner on the full history and forecasts a
// few years ahead.
//
// # Packages
//
//   - timeseries: the yearly series type, cleaning, splitting and CSV loading
//   - stats: ACF, information criteria, residual diagnostics and MAE
//   - arima: ARIMA(p,d,q) estimation by conditional sum of squares
//   - selection: concurrent catalog evaluation with deterministic tie-breaking
//   - forecast: refit and horizon forecast with finiteness checks
//   - pipeline: the end-to-end run and its report
//   - config, logger, metrics: viper, zerolog and Prometheus wiring
//
// # Quick Start
//
//	points := []timeseries.Point{{Period: 2015, Value: 0.40}, ...}
//	report, err := pipeline.New(nil).Run(ctx, points)
//	if err != nil {
//	    // fatal: too little data or no model could be fitted
//	}
//	if report.Usable() {
//	    for _, p := range report.Forecast.Points() {
//	        fmt.Println(p.Period, p.Value)
//	    }
//	}
//
// The healthcast command in cmd/healthcast runs the same pipeline over a
// long-format CSV file.
package healthcast
