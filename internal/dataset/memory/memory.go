// Package memory is an in-process record store used for demos and tests.
package memory

import (
	"context"
	"sync"

	"bikedash/internal/core"
	"bikedash/internal/dataset"
)

type Store struct {
	mu    sync.Mutex
	items []core.RentalRecord
	reads int
}

var (
	_ dataset.RecordReader = (*Store)(nil)
	_ dataset.RecordWriter = (*Store)(nil)
)

func New(records []core.RentalRecord) *Store {
	return &Store{items: append([]core.RentalRecord(nil), records...)}
}

// NewSample returns a store seeded with the first days of the public dataset.
func NewSample() *Store {
	return New(Sample())
}

// ReadRecords returns a copy of the stored records.
func (s *Store) ReadRecords(ctx context.Context) ([]core.RentalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return append([]core.RentalRecord(nil), s.items...), nil
}

// ReplaceRecords swaps the whole record set.
func (s *Store) ReplaceRecords(_ context.Context, records []core.RentalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]core.RentalRecord(nil), records...)
	return nil
}

// Reads reports how many times ReadRecords was served.
func (s *Store) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Sample is a small slice of day.csv covering every season.
func Sample() []core.RentalRecord {
	return []core.RentalRecord{
		{Date: core.NewDate(2011, 1, 1), Season: 1, Weather: 2, TotalRentals: 985},
		{Date: core.NewDate(2011, 1, 2), Season: 1, Weather: 2, TotalRentals: 801},
		{Date: core.NewDate(2011, 1, 3), Season: 1, Weather: 1, TotalRentals: 1349},
		{Date: core.NewDate(2011, 4, 15), Season: 2, Weather: 3, TotalRentals: 795},
		{Date: core.NewDate(2011, 4, 16), Season: 2, Weather: 1, TotalRentals: 3126},
		{Date: core.NewDate(2011, 7, 4), Season: 3, Weather: 1, TotalRentals: 6043},
		{Date: core.NewDate(2011, 7, 5), Season: 3, Weather: 2, TotalRentals: 5020},
		{Date: core.NewDate(2011, 11, 20), Season: 4, Weather: 1, TotalRentals: 3614},
		{Date: core.NewDate(2011, 11, 21), Season: 4, Weather: 2, TotalRentals: 2914},
	}
}
