// Package google reads the rental dataset from a Google Sheets range.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bikedash/internal/core"
	"bikedash/internal/dataset"
)

// DefaultRange covers the sixteen columns of day.csv on a sheet named "day".
const DefaultRange = "day!A:P"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	rng           string
}

var _ dataset.RecordReader = (*Client)(nil)

// Options configures a Client. Empty credential fields fall back to
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE and finally
// GOOGLE_APPLICATION_CREDENTIALS.
type Options struct {
	SpreadsheetID   string
	Range           string
	CredentialsJSON string
	CredentialsFile string
}

// NewFromEnv creates a client from GOOGLE_SPREADSHEET_ID and GOOGLE_DATASET_RANGE.
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, Options{
		SpreadsheetID: os.Getenv("GOOGLE_SPREADSHEET_ID"),
		Range:         os.Getenv("GOOGLE_DATASET_RANGE"),
	})
}

func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	rng := strings.TrimSpace(opts.Range)
	if rng == "" {
		rng = DefaultRange
	}
	creds, err := credentials(ctx, opts)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, rng: rng}, nil
}

func credentials(ctx context.Context, opts Options) ([]byte, error) {
	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)
	if inline == "" && file == "" {
		inline = strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
		file = strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	}
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		slog.DebugContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// ReadRecords fetches the configured range. The first row must be the header.
func (c *Client) ReadRecords(ctx context.Context) ([]core.RentalRecord, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", c.rng, err)
	}
	return recordsFromValues(resp.Values)
}

func recordsFromValues(values [][]interface{}) ([]core.RentalRecord, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: empty sheet", dataset.ErrMissingColumn)
	}
	header := toStrings(values[0])
	rows := make([][]string, 0, len(values))
	rows = append(rows, header)
	for _, v := range values[1:] {
		row := toStrings(v)
		if isBlank(row) {
			continue
		}
		// Sheets trims trailing empty cells; the frame needs rectangular rows.
		for len(row) < len(header) {
			row = append(row, "")
		}
		rows = append(rows, row[:len(header)])
	}
	return dataset.FromFrame(dataset.FromRows(rows))
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
