/*
Package selection chooses an ARIMA order from a fixed, ordered catalog.

Every catalog entry is fitted on the training data. When a test set exists,
each fitted model forecasts len(test) steps and is scored by mean absolute
error; otherwise it is scored by an information criterion. Lower is better
and only strict improvements replace the running best, so the catalog order
doubles as the tie-break order.

	sel := selection.New(selection.DefaultConfig(), selection.WithLogger(log))
	out, err := sel.Select(ctx, part)
	if errors.Is(err, selection.ErrAllCandidatesFailed) {
	    // not even the fallback order could be fitted
	}
	fmt.Println(out.Best, out.Mode, out.Accepted)

A candidate that fails to fit, forecasts NaN or infinity, or reports a NaN
criterion is recorded in Outcome.Evaluated with its Status and Err and skipped.
If no candidate survives, Config.Fallback is fitted and Outcome.Fallback is set.

Fits run concurrently (Config.Workers), but results are reduced in catalog
order so the outcome does not depend on scheduling.
*/
package selection
