package dataset

import (
	"errors"
	"strings"
	"testing"

	"bikedash/internal/core"
)

func TestFromRows(t *testing.T) {
	rows := [][]string{
		{"instant", "dteday", "season", "weathersit", "casual", "cnt"},
		{"1", "2011-01-01", "1", "2", "331", "985"},
		{"2", "2011-01-02", "1", "2", "131", "801.0"},
		{"3", "2011-01-03", "1", "1", "120", "1349"},
	}
	got, err := FromFrame(FromRows(rows))
	if err != nil {
		t.Fatalf("FromFrame: %v", err)
	}
	want := []core.RentalRecord{
		{Date: core.NewDate(2011, 1, 1), Season: 1, Weather: 2, TotalRentals: 985},
		{Date: core.NewDate(2011, 1, 2), Season: 1, Weather: 2, TotalRentals: 801},
		{Date: core.NewDate(2011, 1, 3), Season: 1, Weather: 1, TotalRentals: 1349},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		if !got[i].Date.Equal(want[i].Date) || got[i].Season != want[i].Season ||
			got[i].Weather != want[i].Weather || got[i].TotalRentals != want[i].TotalRentals {
			t.Fatalf("record %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestFromRowsMissingColumn(t *testing.T) {
	rows := [][]string{
		{"dteday", "season", "cnt"},
		{"2011-01-01", "1", "985"},
	}
	_, err := FromFrame(FromRows(rows))
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
	if !strings.Contains(err.Error(), ColWeather) {
		t.Fatalf("error should name the column: %v", err)
	}
}

func TestFromRowsBadValues(t *testing.T) {
	cases := []struct {
		name string
		row  []string
		want error
	}{
		{"bad date", []string{"01/13/2011", "1", "1", "10"}, core.ErrInvalidDate},
		{"bad season", []string{"2011-01-01", "spring", "1", "10"}, ErrInvalidNumber},
		{"fractional count", []string{"2011-01-01", "1", "1", "10.5"}, ErrInvalidNumber},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows := [][]string{{"dteday", "season", "weathersit", "cnt"}, tc.row}
			_, err := FromFrame(FromRows(rows))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !strings.Contains(err.Error(), "row 1") {
				t.Fatalf("error should name the row: %v", err)
			}
		})
	}
}

func TestParseFieldsKeepsUnknownCodes(t *testing.T) {
	r, err := ParseFields("2011-05-05", "7", "4", "0")
	if err != nil {
		t.Fatalf("ParseFields: %v", err)
	}
	if r.Season != 7 || r.Weather != 4 || r.TotalRentals != 0 {
		t.Fatalf("unexpected record %+v", r)
	}
}
