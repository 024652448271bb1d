// Package csvfile reads the rental dataset from a CSV file on disk.
package csvfile

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-gota/gota/dataframe"

	"bikedash/internal/core"
	"bikedash/internal/dataset"
)

type Reader struct {
	path string
}

var _ dataset.RecordReader = (*Reader)(nil)

func New(path string) *Reader {
	return &Reader{path: path}
}

// Path returns the file the reader loads.
func (r *Reader) Path() string { return r.path }

// ReadRecords opens the file read-only and parses every row.
func (r *Reader) ReadRecords(ctx context.Context) ([]core.RentalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	recs, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.path, err)
	}
	return recs, nil
}

// Decode parses CSV content with a header row.
func Decode(in io.Reader) ([]core.RentalRecord, error) {
	return dataset.FromFrame(dataframe.ReadCSV(in, dataset.LoadOptions()...))
}
