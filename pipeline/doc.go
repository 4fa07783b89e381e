// Package pipeline wires cleaning, splitting, model selection and the final
// forecast into a single run over one region's yearly series.
//
//	p := pipeline.New(cfg, pipeline.WithLogger(log), pipeline.WithRecorder(collector))
//	report, err := p.Run(ctx, points)
//	switch {
//	case err != nil:
//	    // fatal: too little data, bad cutoff, or no model at all
//	case !report.Usable():
//	    // degraded: report.Degraded explains why the forecast is unusable
//	default:
//	    fmt.Println(report.Forecast.Points())
//	}
package pipeline
