package timeseries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNoMatchingRows is returned when no row matches the region/metric filter.
	ErrNoMatchingRows = errors.New("no rows match region and metric")
	// ErrMissingColumn is returned when a required header is absent.
	ErrMissingColumn = errors.New("missing column")
)

// Combination is one region/metric pair present in a dataset.
type Combination struct {
	Region string
	Metric string
}

// NoMatchError reports a filter that matched no rows, along with the
// region/metric pairs the file does contain, sorted by region then metric.
type NoMatchError struct {
	Region    string
	Metric    string
	Available []Combination
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("%v: region=%q metric=%q (%d combinations available)",
		ErrNoMatchingRows, e.Region, e.Metric, len(e.Available))
}

func (e *NoMatchError) Unwrap() error { return ErrNoMatchingRows }

// Regions returns the distinct regions in the file, sorted.
func (e *NoMatchError) Regions() []string {
	return distinct(e.Available, func(c Combination) string { return c.Region })
}

// Metrics returns the distinct metrics in the file, sorted.
func (e *NoMatchError) Metrics() []string {
	return distinct(e.Available, func(c Combination) string { return c.Metric })
}

func distinct(combos []Combination, key func(Combination) string) []string {
	var out []string
	for _, c := range combos {
		out = append(out, key(c))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// CSVOptions holds options for loading a long-format indicator dataset.
type CSVOptions struct {
	RegionColumn string // Column holding the region name (default: "Name")
	MetricColumn string // Column holding the metric name (default: "Metric")
	PeriodColumn string // Column holding the year (default: "Year")
	ValueColumn  string // Column holding the value (default: "Value")
	UnitsColumn  string // Column holding the unit label (default: "Units", optional)
	Region       string // Region to keep; empty keeps every region
	Metric       string // Metric to keep; empty keeps every metric
	Delimiter    rune   // Field delimiter (default: ',')
}

// DefaultCSVOptions returns default options for CSV loading.
func DefaultCSVOptions() *CSVOptions {
	return &CSVOptions{
		RegionColumn: "Name",
		MetricColumn: "Metric",
		PeriodColumn: "Year",
		ValueColumn:  "Value",
		UnitsColumn:  "Units",
		Delimiter:    ',',
	}
}

// Extract is the raw series for one region/metric pair.
type Extract struct {
	Region string
	Metric string
	Units  string
	Points []Point
}

// LoadIndicatorCSV loads the rows for one region and metric from a CSV file.
func LoadIndicatorCSV(filename string, opts *CSVOptions) (*Extract, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadIndicatorCSVFromReader(file, opts)
}

// LoadIndicatorCSVFromReader loads the rows for one region and metric from r.
// Blank, NA and NaN values are kept as NaN points so that Preprocess can drop
// them; rows whose period cannot be parsed are skipped.
func LoadIndicatorCSVFromReader(r io.Reader, opts *CSVOptions) (*Extract, error) {
	if opts == nil {
		opts = DefaultCSVOptions()
	}

	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	regionIdx, metricIdx, periodIdx, valueIdx, unitsIdx := -1, -1, -1, -1, -1
	for i, h := range header {
		h = strings.TrimSpace(strings.Trim(h, "\""))
		switch h {
		case opts.RegionColumn:
			regionIdx = i
		case opts.MetricColumn:
			metricIdx = i
		case opts.PeriodColumn:
			periodIdx = i
		case opts.ValueColumn:
			valueIdx = i
		case opts.UnitsColumn:
			unitsIdx = i
		}
	}

	if periodIdx == -1 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, opts.PeriodColumn)
	}
	if valueIdx == -1 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, opts.ValueColumn)
	}
	if opts.Region != "" && regionIdx == -1 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, opts.RegionColumn)
	}
	if opts.Metric != "" && metricIdx == -1 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, opts.MetricColumn)
	}

	extract := &Extract{
		Region: opts.Region,
		Metric: opts.Metric,
	}
	seen := make(map[Combination]struct{})

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		seen[Combination{Region: field(record, regionIdx), Metric: field(record, metricIdx)}] = struct{}{}

		if !matches(record, regionIdx, opts.Region) || !matches(record, metricIdx, opts.Metric) {
			continue
		}

		period, ok := parsePeriod(field(record, periodIdx))
		if !ok {
			continue
		}

		if extract.Units == "" {
			extract.Units = field(record, unitsIdx)
		}

		extract.Points = append(extract.Points, Point{
			Period: period,
			Value:  parseValue(field(record, valueIdx)),
		})
	}

	if len(extract.Points) == 0 {
		nomatch := &NoMatchError{Region: opts.Region, Metric: opts.Metric}
		for c := range seen {
			nomatch.Available = append(nomatch.Available, c)
		}
		slices.SortFunc(nomatch.Available, func(a, b Combination) int {
			if c := strings.Compare(a.Region, b.Region); c != 0 {
				return c
			}
			return strings.Compare(a.Metric, b.Metric)
		})
		return nil, nomatch
	}

	return extract, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(strings.Trim(record[idx], "\""))
}

func matches(record []string, idx int, want string) bool {
	if want == "" {
		return true
	}
	return field(record, idx) == want
}

func parseValue(s string) float64 {
	switch s {
	case "", "NA", "NaN", "nan", "null":
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// parsePeriod accepts a bare year or a date in one of the common layouts.
func parsePeriod(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	if year, err := strconv.Atoi(s); err == nil {
		return year, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
		return int(f), true
	}

	formats := []string{
		"2006-01-02",
		"2006-01-02T15:04:05",
		"2006/01/02",
		"01/02/2006",
		"02-Jan-2006",
	}
	for _, layout := range formats {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.Year(), true
		}
	}
	return 0, false
}
