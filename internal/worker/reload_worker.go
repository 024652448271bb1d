// Package worker runs the background consumer that keeps the dashboard caches
// in step with dataset imports.
package worker

import (
	"context"
	"sync/atomic"

	"bikedash/internal/amqp"
	applog "bikedash/internal/log"
)

// Consumer delivers dataset notices until ctx is cancelled.
type Consumer interface {
	Consume(ctx context.Context, handler amqp.Handler) error
}

// Cache is the part of the dashboard service a reload touches.
type Cache interface {
	Invalidate() int
	Ready(ctx context.Context) error
}

// ReloadWorker drops cached snapshots and dashboards whenever a new dataset
// is imported, then warms the snapshot so the next page view is fast.
type ReloadWorker struct {
	consumer Consumer
	cache    Cache
	logger   *applog.Logger
	reloads  atomic.Int64
}

func NewReloadWorker(consumer Consumer, cache Cache, logger *applog.Logger) *ReloadWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &ReloadWorker{
		consumer: consumer,
		cache:    cache,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// Run blocks consuming notices until ctx is cancelled.
func (w *ReloadWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Reload worker started")
	err := w.consumer.Consume(ctx, w.HandleDatasetImported)
	if ctx.Err() != nil {
		w.logger.InfoContext(ctx, "Reload worker stopped", applog.FieldOperation, applog.OpShutdown)
		return nil
	}
	return err
}

// HandleDatasetImported invalidates the caches. A failed warm-up is logged but
// not returned: the cache is already empty and the next request retries the load.
func (w *ReloadWorker) HandleDatasetImported(ctx context.Context, msg *amqp.DatasetImportedMessage) error {
	purged := w.cache.Invalidate()
	w.reloads.Add(1)

	log := w.logger.With(
		applog.FieldOperation, applog.OpReload,
		applog.FieldMessageID, msg.ID,
		applog.FieldSource, msg.Source)
	log.InfoContext(ctx, "Dataset import received",
		applog.FieldRows, msg.Rows,
		"purged_entries", purged)

	if err := w.cache.Ready(ctx); err != nil {
		log.WarnContext(ctx, "Snapshot warm-up failed", applog.FieldError, err)
	}
	return nil
}

// Reloads reports how many notices were handled.
func (w *ReloadWorker) Reloads() int64 {
	return w.reloads.Load()
}
