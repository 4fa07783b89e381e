// Package timeseries provides the yearly series type and the first two
// stages of the forecasting pipeline.
//
// # Cleaning
//
// Raw observations arrive as period/value pairs in any order. A NaN value
// marks a missing reading:
//
//	raw := []timeseries.Point{
//	    {Period: 2016, Value: 0.38},
//	    {Period: 2015, Value: 0.40},
//	    {Period: 2017, Value: math.NaN()},
//	}
//	series, err := timeseries.Preprocess(raw, timeseries.DefaultMinPoints)
//	if errors.Is(err, timeseries.ErrInsufficientData) {
//	    // fewer than 5 usable years
//	}
//
// Describe summarises what was kept:
//
//	q := timeseries.Describe(raw, series)
//	fmt.Printf("%d-%d, %d dropped\n", q.FirstPeriod, q.LastPeriod, q.Dropped)
//
// # Splitting
//
// Split holds out every period after the cutoff:
//
//	part, err := timeseries.Split(series, 2018)
//	if !part.HasTest() {
//	    // score candidates by information criterion on part.Training()
//	}
//
// # Loading
//
// LoadIndicatorCSV reads a long-format dataset (one row per region, metric
// and year) and keeps the rows for one region and metric:
//
//	opts := timeseries.DefaultCSVOptions()
//	opts.Region = "Kenya"
//	opts.Metric = "Mortality Rate"
//	extract, err := timeseries.LoadIndicatorCSV("indicators.csv", opts)
package timeseries
