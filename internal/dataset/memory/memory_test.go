package memory

import (
	"context"
	"testing"

	"bikedash/internal/core"
)

func TestReadReturnsCopy(t *testing.T) {
	s := NewSample()
	ctx := context.Background()
	recs, err := s.ReadRecords(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != len(Sample()) {
		t.Fatalf("expected %d records, got %d", len(Sample()), len(recs))
	}
	recs[0].TotalRentals = -1
	again, _ := s.ReadRecords(ctx)
	if again[0].TotalRentals == -1 {
		t.Fatalf("store must not expose its backing slice")
	}
	if s.Reads() != 2 {
		t.Fatalf("expected 2 reads, got %d", s.Reads())
	}
}

func TestReplaceRecords(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	in := []core.RentalRecord{{Date: core.NewDate(2012, 1, 1), Season: 1, Weather: 1, TotalRentals: 2294}}
	if err := s.ReplaceRecords(ctx, in); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _ := s.ReadRecords(ctx)
	if len(got) != 1 || got[0].TotalRentals != 2294 {
		t.Fatalf("unexpected records %+v", got)
	}
}

func TestSampleCoversEverySeason(t *testing.T) {
	seen := map[int]bool{}
	for _, r := range Sample() {
		seen[r.Season] = true
	}
	for code := 1; code <= 4; code++ {
		if !seen[code] {
			t.Fatalf("sample misses season %d", code)
		}
	}
}
