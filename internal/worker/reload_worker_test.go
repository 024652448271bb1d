package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"bikedash/internal/amqp"
	"bikedash/internal/core"
	"bikedash/internal/dataset/memory"
	applog "bikedash/internal/log"
	"bikedash/internal/services"
)

func quietLogger() *applog.Logger {
	return applog.NewWriter(io.Discard, slog.LevelDebug, "test")
}

// chanConsumer feeds queued notices to the handler, then waits for ctx.
type chanConsumer struct {
	msgs    []*amqp.DatasetImportedMessage
	errs    []error
	runErr  error
	handled chan struct{}
}

func (c *chanConsumer) Consume(ctx context.Context, handler amqp.Handler) error {
	for _, m := range c.msgs {
		c.errs = append(c.errs, handler(ctx, m))
	}
	close(c.handled)
	if c.runErr != nil {
		return c.runErr
	}
	<-ctx.Done()
	return ctx.Err()
}

type fakeCache struct {
	invalidations int
	readyErr      error
}

func (f *fakeCache) Invalidate() int {
	f.invalidations++
	return 2
}

func (f *fakeCache) Ready(ctx context.Context) error { return f.readyErr }

func TestHandleDatasetImported(t *testing.T) {
	cache := &fakeCache{readyErr: errors.New("store offline")}
	w := NewReloadWorker(nil, cache, quietLogger())

	if err := w.HandleDatasetImported(context.Background(), amqp.NewDatasetImportedMessage("sqlite", 10)); err != nil {
		t.Fatalf("warm-up failure must not requeue the notice: %v", err)
	}
	if cache.invalidations != 1 || w.Reloads() != 1 {
		t.Fatalf("invalidations=%d reloads=%d", cache.invalidations, w.Reloads())
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	consumer := &chanConsumer{
		msgs:    []*amqp.DatasetImportedMessage{amqp.NewDatasetImportedMessage("csv", 1), amqp.NewDatasetImportedMessage("csv", 2)},
		handled: make(chan struct{}),
	}
	cache := &fakeCache{}
	w := NewReloadWorker(consumer, cache, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	<-consumer.handled
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run after cancel = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	if cache.invalidations != 2 {
		t.Fatalf("invalidations = %d, want 2", cache.invalidations)
	}
}

func TestRun_ReturnsConsumerError(t *testing.T) {
	consumer := &chanConsumer{runErr: errors.New("bad credentials"), handled: make(chan struct{})}
	w := NewReloadWorker(consumer, &fakeCache{}, quietLogger())
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("expected consumer error")
	}
}

func TestReload_ServesNewDataset(t *testing.T) {
	store := memory.New([]core.RentalRecord{
		{Date: core.NewDate(2011, 1, 1), Season: 1, Weather: 1, TotalRentals: 100},
	})
	svc := services.NewDashboardService(store, services.DashboardConfig{Logger: quietLogger()})
	ctx := context.Background()

	if err := svc.Ready(ctx); err != nil {
		t.Fatalf("ready: %v", err)
	}
	_ = store.ReplaceRecords(ctx, memory.Sample())

	w := NewReloadWorker(nil, svc, quietLogger())
	if err := w.HandleDatasetImported(ctx, amqp.NewDatasetImportedMessage("memory", len(memory.Sample()))); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := svc.Stats().SnapshotRows; got != len(memory.Sample()) {
		t.Fatalf("snapshot rows = %d, want %d", got, len(memory.Sample()))
	}
}
