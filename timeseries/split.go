package timeseries

import "fmt"

// Partition is a series divided at a cutoff period.
type Partition struct {
	Full   *Series
	Train  *Series
	Test   *Series
	Cutoff int
}

// HasTest reports whether any observation falls after the cutoff.
func (p *Partition) HasTest() bool {
	return p.Test != nil && p.Test.Len() > 0
}

// Training returns the series model selection should fit on: the prefix up
// to the cutoff, or the whole series when there is nothing to hold out.
func (p *Partition) Training() *Series {
	if !p.HasTest() {
		return p.Full
	}
	return p.Train
}

// Split divides a sorted series into the points at or before cutoff and the
// points after it.
func Split(series *Series, cutoff int) (*Partition, error) {
	idx := 0
	for idx < series.Len() && series.Periods[idx] <= cutoff {
		idx++
	}

	if idx == 0 {
		return nil, fmt.Errorf("%w: cutoff %d is before first period %d",
			ErrEmptyTrain, cutoff, series.FirstPeriod())
	}

	return &Partition{
		Full:   series,
		Train:  series.Slice(0, idx),
		Test:   series.Slice(idx, series.Len()),
		Cutoff: cutoff,
	}, nil
}
