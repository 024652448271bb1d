package analytics

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"bikedash/internal/core"
)

// Dimension is a grouping column of the enriched table.
type Dimension string

const (
	DimSeason  Dimension = "season"
	DimWeather Dimension = "weather"
	DimMonth   Dimension = "month"
)

// Metric is a numeric column that can be averaged.
type Metric string

const MetricTotalRentals Metric = "total_rentals"

// ErrDimensions is returned when Aggregate is asked for zero or more than two dimensions.
var ErrDimensions = errors.New("aggregate needs one or two dimensions")

// ErrUnknownDimension is returned for a dimension outside season, weather and month.
var ErrUnknownDimension = errors.New("unknown dimension")

// ErrUnknownMetric is returned for a metric other than total_rentals.
var ErrUnknownMetric = errors.New("unknown metric")

// AggregateRow is one group of an aggregation: its key tuple, the mean of
// the metric and the number of rows averaged.
type AggregateRow struct {
	Key   []string
	Mean  float64
	Count int
}

func (d Dimension) valid() bool {
	switch d {
	case DimSeason, DimWeather, DimMonth:
		return true
	}
	return false
}

func (d Dimension) value(r core.EnrichedRecord) string {
	switch d {
	case DimSeason:
		return r.SeasonName
	case DimWeather:
		return r.WeatherName
	case DimMonth:
		return r.Month
	}
	return core.Unlabeled
}

func (m Metric) value(r core.EnrichedRecord) float64 {
	return float64(r.TotalRentals)
}

// Aggregate groups view by dims and averages metric per group.
// Groups without rows are absent and an empty view yields no rows.
// Rows are ordered lexically by key component, with the missing label last.
func Aggregate(view View, metric Metric, dims ...Dimension) ([]AggregateRow, error) {
	if len(dims) == 0 || len(dims) > 2 {
		return nil, fmt.Errorf("%w: got %d", ErrDimensions, len(dims))
	}
	for _, d := range dims {
		if !d.valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, string(d))
		}
	}
	if metric != MetricTotalRentals {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, string(metric))
	}

	type acc struct {
		key   []string
		sum   float64
		count int
	}
	groups := make(map[string]*acc)
	for i := 0; i < view.Len(); i++ {
		r := view.Row(i)
		key := make([]string, len(dims))
		for k, d := range dims {
			key[k] = d.value(r)
		}
		id := strings.Join(key, "\x00")
		g, ok := groups[id]
		if !ok {
			g = &acc{key: key}
			groups[id] = g
		}
		g.sum += metric.value(r)
		g.count++
	}

	rows := make([]AggregateRow, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, AggregateRow{Key: g.key, Mean: g.sum / float64(g.count), Count: g.count})
	}
	sort.Slice(rows, func(a, b int) bool { return keyLess(rows[a].Key, rows[b].Key) })
	return rows, nil
}

func keyLess(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return labelLess(a[i], b[i])
		}
	}
	return len(a) < len(b)
}

// labelLess orders labels lexically and puts the missing label last.
func labelLess(a, b string) bool {
	if a == core.Unlabeled {
		return false
	}
	if b == core.Unlabeled {
		return true
	}
	return a < b
}
