package core

import (
	"fmt"
	"sort"
	"time"
)

// Criteria is the user-supplied predicate applied to the enriched table.
// Start and End are inclusive calendar dates; Start <= End is not enforced.
// An empty season or weather selection matches nothing.
type Criteria struct {
	Start    time.Time
	End      time.Time
	Seasons  []string
	Weathers []string
}

// Matches reports whether r satisfies every condition of the criteria.
func (c Criteria) Matches(r EnrichedRecord) bool {
	return c.Matcher()(r)
}

// Matcher precomputes the membership sets so a scan does not rebuild them per row.
func (c Criteria) Matcher() func(EnrichedRecord) bool {
	start, end := TruncateDay(c.Start), TruncateDay(c.End)
	seasons, weathers := toSet(c.Seasons), toSet(c.Weathers)
	return func(r EnrichedRecord) bool {
		d := TruncateDay(r.Date)
		if d.Before(start) || d.After(end) {
			return false
		}
		_, okSeason := seasons[r.SeasonName]
		if !okSeason {
			return false
		}
		_, okWeather := weathers[r.WeatherName]
		return okWeather
	}
}

// Key returns a canonical representation usable as a cache key.
// Selection order is irrelevant; an empty selection differs from any non-empty one.
func (c Criteria) Key() string {
	return fmt.Sprintf("%s|%s|s=%q|w=%q",
		c.Start.Format("2006-01-02"),
		c.End.Format("2006-01-02"),
		sortedCopy(c.Seasons),
		sortedCopy(c.Weathers))
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func sortedCopy(values []string) []string {
	out := append([]string{}, values...)
	sort.Strings(out)
	return out
}
