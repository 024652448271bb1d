// Package analytics filters and aggregates the enriched rental table.
//
// A Snapshot is loaded once and never mutated. Every filter pass produces a
// View, which is a list of row indices into the snapshot, so concurrent
// requests share the same table without copying or locking.
package analytics

import (
	"time"

	"bikedash/internal/core"
)

// Snapshot is the immutable enriched table every View indexes into.
type Snapshot struct {
	rows     []core.EnrichedRecord
	loadedAt time.Time
}

// NewSnapshot copies records into a new snapshot.
func NewSnapshot(records []core.EnrichedRecord) *Snapshot {
	rows := make([]core.EnrichedRecord, len(records))
	copy(rows, records)
	return &Snapshot{rows: rows, loadedAt: time.Now()}
}

// Len returns the number of rows.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rows)
}

// LoadedAt reports when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// All returns a view over every row in input order.
func (s *Snapshot) All() View {
	n := s.Len()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return View{snap: s, idx: idx}
}

// View is an ordered subset of a snapshot. The zero View is empty.
type View struct {
	snap *Snapshot
	idx  []int
}

// Len returns the number of rows in the view.
func (v View) Len() int { return len(v.idx) }

// Row returns the i-th record of the view.
func (v View) Row(i int) core.EnrichedRecord { return v.snap.rows[v.idx[i]] }

// Indices returns the snapshot row numbers covered by the view.
// The returned slice is a copy.
func (v View) Indices() []int {
	return append([]int(nil), v.idx...)
}

// Records materializes the view.
func (v View) Records() []core.EnrichedRecord {
	out := make([]core.EnrichedRecord, len(v.idx))
	for i, j := range v.idx {
		out[i] = v.snap.rows[j]
	}
	return out
}

func (v View) sub(indices []int) View {
	return View{snap: v.snap, idx: indices}
}
