// Command bikedash-import loads a day.csv file into the sqlite or postgres
// store and tells running dashboards to reload.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"bikedash/internal/amqp"
	"bikedash/internal/backend"
	"bikedash/internal/cli"
	"bikedash/internal/config"
	"bikedash/internal/dataset/csvfile"
	applog "bikedash/internal/log"
)

// Publisher announces a finished import.
type Publisher interface {
	PublishDatasetImported(ctx context.Context, msg *amqp.DatasetImportedMessage) error
}

type options struct {
	file   string
	target string
	notify bool
}

func parseFlags(args []string, cfg *config.Config, stderr io.Writer) (options, error) {
	defaultTarget := cfg.DataSource
	if !backend.BackendType(defaultTarget).Writable() {
		defaultTarget = string(backend.SQLiteBackend)
	}

	fs := flag.NewFlagSet("bikedash-import", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var o options
	fs.StringVar(&o.file, "file", cfg.DatasetPath, "CSV file to import")
	fs.StringVar(&o.target, "target", defaultTarget, "store to write into: sqlite, postgres or memory")
	fs.BoolVar(&o.notify, "notify", cfg.AMQPEnabled(), "publish a dataset.imported notice over AMQP")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if !backend.BackendType(o.target).Writable() {
		return options{}, fmt.Errorf("target %q cannot store an import", o.target)
	}
	if o.file == "" {
		return options{}, errors.New("no CSV file given")
	}
	return o, nil
}

// run imports o.file into the target store and returns the row count.
func run(ctx context.Context, cfg *config.Config, o options, pub Publisher, logger *applog.Logger) (int, error) {
	records, err := csvfile.New(o.file).ReadRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", o.file, err)
	}

	target := *cfg
	target.DataSource = o.target
	res, err := cli.OpenBackend(ctx, &target, logger)
	if err != nil {
		return 0, err
	}
	defer res.Close()
	if res.Writer == nil {
		return 0, fmt.Errorf("backend %s is read-only", o.target)
	}

	start := time.Now()
	if err := res.Writer.ReplaceRecords(ctx, records); err != nil {
		return 0, fmt.Errorf("write %s: %w", o.target, err)
	}
	logger.Info("Dataset imported",
		applog.FieldOperation, applog.OpImport,
		applog.FieldSource, o.file,
		"target", o.target,
		applog.FieldRows, len(records),
		applog.FieldDuration, time.Since(start).Milliseconds())

	if pub != nil {
		if err := pub.PublishDatasetImported(ctx, amqp.NewDatasetImportedMessage(o.target, len(records))); err != nil {
			return len(records), fmt.Errorf("notify dashboards: %w", err)
		}
	}
	return len(records), nil
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(applog.ComponentImport)
	cfg := config.Load()

	o, err := parseFlags(os.Args[1:], cfg, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Error("Invalid arguments", applog.FieldError, err)
		os.Exit(2)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	var pub Publisher
	if o.notify {
		if !cfg.AMQPEnabled() {
			logger.Error("Notify requested but AMQP_URL is not set")
			os.Exit(2)
		}
		client, err := amqp.NewClient(amqp.Config{
			URL:      cfg.AMQPURL,
			Exchange: cfg.AMQPExchange,
			Queue:    cfg.AMQPQueue,
			Logger:   logger,
		})
		if err != nil {
			logger.Error("Failed to connect to AMQP", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		pub = client
	}

	n, err := run(ctx, cfg, o, pub, logger)
	if err != nil {
		logger.Error("Import failed", applog.FieldError, err, applog.FieldRows, n)
		os.Exit(1)
	}
}
