// Package http serves the dashboard page and its HTMX partials.
//
// This file turns query parameters into filter criteria.

package http

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"bikedash/internal/core"
	"bikedash/internal/services"
)

// Query parameter names used by the filter form.
const (
	ParamStart   = "start"
	ParamEnd     = "end"
	ParamSeason  = "season"
	ParamWeather = "weather"
	ParamApplied = "applied"
)

// ErrInvalidFilter marks a query that cannot be turned into criteria.
var ErrInvalidFilter = errors.New("invalid filter")

// ParseCriteria reads the filter form from query. Missing dates fall back to the
// dataset bounds. Selections fall back to every option unless the form was
// submitted (applied=1) or names the parameter, in which case an empty list
// selects nothing.
func ParseCriteria(query url.Values, opts services.Options) (core.Criteria, error) {
	c := opts.Defaults()

	start, err := parseDateParam(query, ParamStart, opts.MinDate)
	if err != nil {
		return core.Criteria{}, err
	}
	end, err := parseDateParam(query, ParamEnd, opts.MaxDate)
	if err != nil {
		return core.Criteria{}, err
	}
	c.Start, c.End = start, end

	submitted := query.Get(ParamApplied) == "1"
	if _, ok := query[ParamSeason]; ok || submitted {
		c.Seasons = selection(query[ParamSeason])
	}
	if _, ok := query[ParamWeather]; ok || submitted {
		c.Weathers = selection(query[ParamWeather])
	}
	return c, nil
}

// EncodeCriteria is the inverse of ParseCriteria, used for shareable URLs.
func EncodeCriteria(c core.Criteria) url.Values {
	q := url.Values{}
	q.Set(ParamApplied, "1")
	if !c.Start.IsZero() {
		q.Set(ParamStart, c.Start.Format(time.DateOnly))
	}
	if !c.End.IsZero() {
		q.Set(ParamEnd, c.End.Format(time.DateOnly))
	}
	for _, s := range c.Seasons {
		q.Add(ParamSeason, s)
	}
	for _, w := range c.Weathers {
		q.Add(ParamWeather, w)
	}
	return q
}

func parseDateParam(query url.Values, name string, fallback time.Time) (time.Time, error) {
	v := sanitizeInput(query.Get(name))
	if v == "" {
		return fallback, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %w", ErrInvalidFilter, name, err)
	}
	return d, nil
}

// selection keeps submitted labels in order and drops duplicates. The empty
// value stands for the unlabeled bucket and is kept.
func selection(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(sanitizeInput(v))
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
