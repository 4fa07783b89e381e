// Package timeseries provides the yearly indicator series and the stages that
// clean and partition it before modelling.
package timeseries

import (
	"errors"
	"math"
)

// Point is a single yearly observation. A NaN value marks a missing reading.
type Point struct {
	Period int     `json:"period"`
	Value  float64 `json:"value"`
}

// Series represents a time series indexed by integer periods (years).
type Series struct {
	Periods []int
	Values  []float64
	Name    string
}

// New creates a new time series from values, indexed 0..n-1.
func New(values []float64) *Series {
	return NewYearly(0, values)
}

// NewYearly creates a series whose first value belongs to period start and
// whose following values occupy consecutive periods.
func NewYearly(start int, values []float64) *Series {
	periods := make([]int, len(values))
	for i := range periods {
		periods[i] = start + i
	}
	return &Series{
		Periods: periods,
		Values:  values,
	}
}

// NewWithPeriods creates a time series with explicit periods.
func NewWithPeriods(periods []int, values []float64) (*Series, error) {
	if len(periods) != len(values) {
		return nil, errors.New("periods and values must have the same length")
	}
	return &Series{
		Periods: periods,
		Values:  values,
	}, nil
}

// Len returns the length of the series.
func (s *Series) Len() int {
	return len(s.Values)
}

// Mean calculates the arithmetic mean of the series.
func (s *Series) Mean() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s.Values {
		sum += v
	}
	return sum / float64(len(s.Values))
}

// FirstPeriod returns the earliest period, or 0 for an empty series.
func (s *Series) FirstPeriod() int {
	if len(s.Periods) == 0 {
		return 0
	}
	return s.Periods[0]
}

// LastPeriod returns the latest observed period, or 0 for an empty series.
func (s *Series) LastPeriod() int {
	if len(s.Periods) == 0 {
		return 0
	}
	return s.Periods[len(s.Periods)-1]
}

// Points returns the series as period/value pairs.
func (s *Series) Points() []Point {
	points := make([]Point, len(s.Values))
	for i, v := range s.Values {
		points[i] = Point{Period: s.Periods[i], Value: v}
	}
	return points
}

// AllFinite reports whether every value is a finite number.
func (s *Series) AllFinite() bool {
	for _, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Diff calculates the first difference of the series (d=1).
func (s *Series) Diff() *Series {
	return s.DiffN(1)
}

// DiffN calculates the n-th lag difference of the series.
func (s *Series) DiffN(n int) *Series {
	if n <= 0 || len(s.Values) <= n {
		return &Series{Values: []float64{}, Periods: []int{}}
	}

	result := make([]float64, len(s.Values)-n)
	for i := n; i < len(s.Values); i++ {
		result[i-n] = s.Values[i] - s.Values[i-n]
	}

	periods := make([]int, len(result))
	if len(s.Periods) > n {
		copy(periods, s.Periods[n:])
	}

	return &Series{
		Periods: periods,
		Values:  result,
		Name:    s.Name + "_diff",
	}
}

// Slice returns a slice of the series from start to end (exclusive).
func (s *Series) Slice(start, end int) *Series {
	if start < 0 {
		start = 0
	}
	if end > len(s.Values) {
		end = len(s.Values)
	}
	if start >= end {
		return &Series{Values: []float64{}, Periods: []int{}, Name: s.Name}
	}

	values := make([]float64, end-start)
	copy(values, s.Values[start:end])

	periods := make([]int, len(values))
	if len(s.Periods) >= end {
		copy(periods, s.Periods[start:end])
	}

	return &Series{
		Periods: periods,
		Values:  values,
		Name:    s.Name,
	}
}

// Copy creates a deep copy of the series.
func (s *Series) Copy() *Series {
	values := make([]float64, len(s.Values))
	copy(values, s.Values)

	periods := make([]int, len(s.Periods))
	copy(periods, s.Periods)

	return &Series{
		Periods: periods,
		Values:  values,
		Name:    s.Name,
	}
}
