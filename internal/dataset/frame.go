package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"bikedash/internal/core"
)

// LoadOptions keeps every column as text so dates and codes are parsed here.
func LoadOptions() []dataframe.LoadOption {
	return []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	}
}

// FromRows builds a frame from a header row followed by data rows.
func FromRows(rows [][]string) dataframe.DataFrame {
	return dataframe.LoadRecords(rows, LoadOptions()...)
}

// FromFrame extracts rental records from a raw dataset frame.
// The count column is renamed to total_rentals before extraction.
// Row numbers in errors are 1-based data rows, header excluded.
func FromFrame(df dataframe.DataFrame) ([]core.RentalRecord, error) {
	if df.Err != nil {
		return nil, fmt.Errorf("read frame: %w", df.Err)
	}
	if err := checkColumns(df.Names()); err != nil {
		return nil, err
	}
	df = df.Rename(ColTotalRentals, ColCount)
	if df.Err != nil {
		return nil, fmt.Errorf("rename %s: %w", ColCount, df.Err)
	}

	dates := df.Col(ColDate).Records()
	seasons := df.Col(ColSeason).Records()
	weathers := df.Col(ColWeather).Records()
	counts := df.Col(ColTotalRentals).Records()

	out := make([]core.RentalRecord, 0, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		r, err := ParseFields(dates[i], seasons[i], weathers[i], counts[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// ParseFields coerces raw column values into a RentalRecord.
func ParseFields(date, season, weather, count string) (core.RentalRecord, error) {
	d, err := core.ParseDate(date)
	if err != nil {
		return core.RentalRecord{}, fmt.Errorf("%s: %w", ColDate, err)
	}
	s, err := parseInt(season)
	if err != nil {
		return core.RentalRecord{}, fmt.Errorf("%s: %w", ColSeason, err)
	}
	w, err := parseInt(weather)
	if err != nil {
		return core.RentalRecord{}, fmt.Errorf("%s: %w", ColWeather, err)
	}
	c, err := parseInt(count)
	if err != nil {
		return core.RentalRecord{}, fmt.Errorf("%s: %w", ColCount, err)
	}
	return core.RentalRecord{Date: d, Season: s, Weather: w, TotalRentals: c}, nil
}

func checkColumns(names []string) error {
	have := make(map[string]struct{}, len(names))
	for _, n := range names {
		have[strings.TrimSpace(n)] = struct{}{}
	}
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := have[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ","))
	}
	return nil
}

// parseInt accepts plain integers and whole-valued decimals such as "985.0".
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	return int(f), nil
}
