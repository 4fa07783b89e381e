package timeseries

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/montanaflynn/stats"
)

// DefaultMinPoints is the smallest number of clean observations a series
// must keep to be modelled.
const DefaultMinPoints = 5

var (
	// ErrInsufficientData is returned when too few valid observations remain.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrEmptyTrain is returned when the cutoff precedes every observation.
	ErrEmptyTrain = errors.New("cutoff leaves no training data")
)

// Preprocess drops missing (non-finite) values, sorts the remaining points by
// period and returns them as a Series. It fails with ErrInsufficientData when
// fewer than minPoints remain; minPoints <= 0 selects DefaultMinPoints.
//
// Duplicate periods are kept as given; callers must not pass them.
func Preprocess(points []Point, minPoints int) (*Series, error) {
	if minPoints <= 0 {
		minPoints = DefaultMinPoints
	}

	clean := make([]Point, 0, len(points))
	for _, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		clean = append(clean, p)
	}

	if len(clean) < minPoints {
		return nil, fmt.Errorf("%w: %d valid observations, need at least %d",
			ErrInsufficientData, len(clean), minPoints)
	}

	slices.SortStableFunc(clean, func(a, b Point) int {
		return cmp.Compare(a.Period, b.Period)
	})

	periods := make([]int, len(clean))
	values := make([]float64, len(clean))
	for i, p := range clean {
		periods[i] = p.Period
		values[i] = p.Value
	}

	return &Series{
		Periods: periods,
		Values:  values,
	}, nil
}

// Quality summarises a cleaned series against the raw input it came from.
type Quality struct {
	Total       int     `json:"total"`
	Dropped     int     `json:"dropped"`
	FirstPeriod int     `json:"first_period"`
	LastPeriod  int     `json:"last_period"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Mean        float64 `json:"mean"`
}

// Describe reports how many raw points were dropped and the range of the
// cleaned series.
func Describe(raw []Point, series *Series) Quality {
	q := Quality{
		Total:   len(raw),
		Dropped: len(raw) - series.Len(),
	}
	if series.Len() == 0 {
		return q
	}

	q.FirstPeriod = series.FirstPeriod()
	q.LastPeriod = series.LastPeriod()

	data := stats.Float64Data(series.Values)
	q.Min, _ = data.Min()
	q.Max, _ = data.Max()
	q.Mean, _ = data.Mean()

	return q
}
