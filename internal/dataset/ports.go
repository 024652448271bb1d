// Package dataset defines the ports used to load the rental table and the
// shared column handling for tabular sources.
package dataset

import (
	"context"
	"errors"

	"bikedash/internal/core"
)

// Ports for data source adapters.
type (
	// RecordReader loads every rental record of the dataset.
	RecordReader interface {
		ReadRecords(ctx context.Context) ([]core.RentalRecord, error)
	}

	// RecordWriter replaces the stored dataset in one step.
	RecordWriter interface {
		ReplaceRecords(ctx context.Context, records []core.RentalRecord) error
	}
)

// Column names of the raw dataset.
const (
	ColDate         = "dteday"
	ColSeason       = "season"
	ColWeather      = "weathersit"
	ColCount        = "cnt"
	ColTotalRentals = "total_rentals"
)

// RequiredColumns lists the raw columns the dashboard reads.
var RequiredColumns = []string{ColDate, ColSeason, ColWeather, ColCount}

var (
	ErrMissingColumn = errors.New("missing column")
	ErrInvalidNumber = errors.New("invalid number")
)
