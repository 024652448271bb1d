package backend

import (
	"context"

	"bikedash/internal/dataset"
)

// Backend is the data source the dashboard loads its snapshot from.
type Backend interface {
	dataset.RecordReader
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function.
// Writer is set for stores that accept imports (sqlite, postgres, memory).
type BackendResult struct {
	Backend Backend
	Writer  dataset.RecordWriter
	Cleanup CleanupFunc
}

// Close runs the cleanup function if there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// csv
	DatasetPath string

	// sqlite
	SQLiteDBPath string

	// postgres
	PostgresDSN string

	// Google Sheets
	GoogleSpreadsheetID string
	GoogleDatasetRange  string
}

// BackendType represents the type of backend
type BackendType string

const (
	CSVBackend      BackendType = "csv"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	SheetsBackend   BackendType = "sheets"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case CSVBackend, SQLiteBackend, PostgresBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Writable reports whether the backend can store an imported dataset.
func (bt BackendType) Writable() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
