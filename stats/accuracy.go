package stats

import (
	"errors"
	"math"

	mstats "github.com/montanaflynn/stats"
)

// ErrLengthMismatch is returned when actual and predicted differ in length.
var ErrLengthMismatch = errors.New("actual and predicted lengths differ")

// MAE returns the mean absolute error between actual and predicted.
func MAE(actual, predicted []float64) (float64, error) {
	if len(actual) != len(predicted) {
		return 0, ErrLengthMismatch
	}

	abs := make(mstats.Float64Data, len(actual))
	for i := range actual {
		abs[i] = math.Abs(actual[i] - predicted[i])
	}

	return abs.Mean()
}

// AllFinite reports whether no value is NaN or infinite.
func AllFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
