package analytics

import (
	"sort"
	"time"

	"bikedash/internal/core"
)

// Filter returns the rows of view matching every condition of c, in view order.
// Single pass; the result shares the snapshot with view.
func Filter(view View, c core.Criteria) View {
	match := c.Matcher()
	indices := make([]int, 0, view.Len())
	for i, j := range view.idx {
		if match(view.Row(i)) {
			indices = append(indices, j)
		}
	}
	return view.sub(indices)
}

// DistinctValues lists the labels of dim present in view, sorted like aggregate keys.
func DistinctValues(view View, dim Dimension) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, 8)
	for i := 0; i < view.Len(); i++ {
		v := dim.value(view.Row(i))
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(a, b int) bool { return labelLess(out[a], out[b]) })
	return out
}

// DateRange returns the earliest and latest dates in view.
// ok is false for an empty view.
func DateRange(view View) (minDate, maxDate time.Time, ok bool) {
	for i := 0; i < view.Len(); i++ {
		d := core.TruncateDay(view.Row(i).Date)
		if !ok || d.Before(minDate) {
			minDate = d
		}
		if !ok || d.After(maxDate) {
			maxDate = d
		}
		ok = true
	}
	return minDate, maxDate, ok
}
