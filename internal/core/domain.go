package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Unlabeled is the label assigned to codes missing from a lookup table.
const Unlabeled = ""

type (
	// RentalRecord is one calendar day of rental activity.
	RentalRecord struct {
		Date         time.Time
		Season       int // 1-4 in the source dataset
		Weather      int // weathersit, 1-3 in the source dataset
		TotalRentals int
	}

	// EnrichedRecord is a RentalRecord annotated with display labels.
	EnrichedRecord struct {
		RentalRecord
		SeasonName  string
		WeatherName string
		Month       string // YYYY-MM
	}

	// LabelLookup maps an integer code to its display name.
	LabelLookup map[int]string

	// Lookups groups the two label tables used by the enricher.
	Lookups struct {
		Season  LabelLookup
		Weather LabelLookup
	}
)

var (
	ErrEmptyDate   = errors.New("empty date")
	ErrInvalidDate = errors.New("invalid date")
)

// dateLayouts are tried in order when parsing dataset dates.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
}

// DefaultLookups returns the season and weather tables of the bike sharing dataset.
func DefaultLookups() Lookups {
	return Lookups{
		Season:  LabelLookup{1: "Spring", 2: "Summer", 3: "Fall", 4: "Winter"},
		Weather: LabelLookup{1: "Clear", 2: "Mist", 3: "Light Rain"},
	}
}

// Label returns the name for code, or Unlabeled when the code is unknown.
func (l LabelLookup) Label(code int) string {
	if name, ok := l[code]; ok {
		return name
	}
	return Unlabeled
}

// Names returns the configured names ordered by code.
func (l LabelLookup) Names() []string {
	codes := make([]int, 0, len(l))
	for code := range l {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	out := make([]string, len(codes))
	for i, code := range codes {
		out[i] = l[code]
	}
	return out
}

// DisplayLabel renders a label for humans; the missing label becomes "Unlabeled".
func DisplayLabel(label string) string {
	if label == Unlabeled {
		return "Unlabeled"
	}
	return label
}

// NewDate creates a UTC calendar date.
func NewDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// TruncateDay drops the time of day, keeping the calendar date in UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses an ISO-like date string into a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmptyDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return TruncateDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// MonthBucket truncates a date to year-month granularity as a sortable string.
func MonthBucket(t time.Time) string {
	return t.Format("2006-01")
}

// Enrich annotates records with season name, weather name and month bucket.
// The input slice is not modified.
func Enrich(records []RentalRecord, lk Lookups) []EnrichedRecord {
	out := make([]EnrichedRecord, len(records))
	for i, r := range records {
		out[i] = EnrichedRecord{
			RentalRecord: r,
			SeasonName:   lk.Season.Label(r.Season),
			WeatherName:  lk.Weather.Label(r.Weather),
			Month:        MonthBucket(r.Date),
		}
	}
	return out
}
