// Package storage keeps the rental dataset in SQLite or PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"bikedash/internal/core"
	"bikedash/internal/dataset"

	_ "modernc.org/sqlite"
)

const dayLayout = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ dataset.RecordReader = (*SQLiteRepository)(nil)
	_ dataset.RecordWriter = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "path", dbPath, "version", version)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ReadRecords implements dataset.RecordReader.
func (r *SQLiteRepository) ReadRecords(ctx context.Context) ([]core.RentalRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT day, season, weathersit, total_rentals FROM rentals ORDER BY day`)
	if err != nil {
		return nil, fmt.Errorf("query rentals: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ReplaceRecords implements dataset.RecordWriter. The swap is one transaction.
func (r *SQLiteRepository) ReplaceRecords(ctx context.Context, records []core.RentalRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rentals`); err != nil {
		return fmt.Errorf("clear rentals: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO rentals (day, season, weathersit, total_rentals) VALUES (?, ?, ?, ?)
		 ON CONFLICT(day) DO UPDATE SET season = excluded.season,
		   weathersit = excluded.weathersit, total_rentals = excluded.total_rentals`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	records = latestPerDay(records)
	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.Date.Format(dayLayout), rec.Season, rec.Weather, rec.TotalRentals); err != nil {
			return fmt.Errorf("insert %s: %w", rec.Date.Format(dayLayout), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.InfoContext(ctx, "Rentals replaced in SQLite", "rows", len(records))
	return nil
}

// Count returns the number of stored days.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rentals`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rentals: %w", err)
	}
	return n, nil
}

func scanRecords(rows *sql.Rows) ([]core.RentalRecord, error) {
	var out []core.RentalRecord
	for rows.Next() {
		var (
			day                   string
			season, weather, rent int
		)
		if err := rows.Scan(&day, &season, &weather, &rent); err != nil {
			return nil, fmt.Errorf("scan rental: %w", err)
		}
		d, err := core.ParseDate(day)
		if err != nil {
			return nil, fmt.Errorf("stored day %q: %w", day, err)
		}
		out = append(out, core.RentalRecord{Date: d, Season: season, Weather: weather, TotalRentals: rent})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rentals: %w", err)
	}
	return out, nil
}

// latestPerDay collapses rows sharing a day into the last one seen, keeping
// the position of the first. Both stores key rentals by day.
func latestPerDay(records []core.RentalRecord) []core.RentalRecord {
	pos := make(map[string]int, len(records))
	out := make([]core.RentalRecord, 0, len(records))
	for _, rec := range records {
		day := rec.Date.Format(dayLayout)
		if i, ok := pos[day]; ok {
			out[i] = rec
			continue
		}
		pos[day] = len(out)
		out = append(out, rec)
	}
	if dropped := len(records) - len(out); dropped > 0 {
		slog.Warn("Duplicate days collapsed before storing", "dropped", dropped)
	}
	return out
}
