package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"bikedash/internal/core"
	"bikedash/internal/dataset"
)

const insertBatchSize = 200

// PostgresRepository stores the rental dataset in PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

var (
	_ dataset.RecordReader = (*PostgresRepository)(nil)
	_ dataset.RecordWriter = (*PostgresRepository)(nil)
)

// NewPostgresRepository opens dsn, waits for the server to answer and
// creates the schema when it is missing.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := pingWithRetry(ctx, db, 10, 2*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	repo := &PostgresRepository{db: db}
	if err := repo.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return repo, nil
}

func pingWithRetry(ctx context.Context, db *sql.DB, attempts int, wait time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}

func (r *PostgresRepository) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rentals (
			day           DATE        PRIMARY KEY,
			season        SMALLINT    NOT NULL,
			weathersit    SMALLINT    NOT NULL,
			total_rentals INTEGER     NOT NULL,
			imported_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_rentals_season     ON rentals(season);
		CREATE INDEX IF NOT EXISTS idx_rentals_weathersit ON rentals(weathersit);
	`)
	return err
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// ReadRecords implements dataset.RecordReader.
func (r *PostgresRepository) ReadRecords(ctx context.Context) ([]core.RentalRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT day, season, weathersit, total_rentals FROM rentals ORDER BY day`)
	if err != nil {
		return nil, fmt.Errorf("postgres: query rentals: %w", err)
	}
	defer rows.Close()

	var out []core.RentalRecord
	for rows.Next() {
		var rec core.RentalRecord
		if err := rows.Scan(&rec.Date, &rec.Season, &rec.Weather, &rec.TotalRentals); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		rec.Date = core.TruncateDay(rec.Date)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ReplaceRecords implements dataset.RecordWriter. Old rows are deleted and
// the new ones batch-inserted inside one transaction.
func (r *PostgresRepository) ReplaceRecords(ctx context.Context, records []core.RentalRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rentals`); err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	// A batch may not touch the same day twice under ON CONFLICT.
	records = latestPerDay(records)
	for i := 0; i < len(records); i += insertBatchSize {
		end := i + insertBatchSize
		if end > len(records) {
			end = len(records)
		}
		query, args := insertBatch(records[i:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("postgres: insert batch at %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	slog.InfoContext(ctx, "Rentals replaced in PostgreSQL", "rows", len(records))
	return nil
}

func insertBatch(batch []core.RentalRecord) (string, []interface{}) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*4)
	for idx, rec := range batch {
		base := idx * 4
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d)", base+1, base+2, base+3, base+4))
		valueArgs = append(valueArgs, rec.Date.Format(dayLayout), rec.Season, rec.Weather, rec.TotalRentals)
	}
	query := fmt.Sprintf(`
		INSERT INTO rentals (day, season, weathersit, total_rentals)
		VALUES %s
		ON CONFLICT (day) DO UPDATE SET
			season = EXCLUDED.season,
			weathersit = EXCLUDED.weathersit,
			total_rentals = EXCLUDED.total_rentals
	`, strings.Join(valueStrings, ","))
	return query, valueArgs
}
