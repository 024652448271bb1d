package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"bikedash/internal/amqp"
	"bikedash/internal/cache"
	"bikedash/internal/cli"
	apphttp "bikedash/internal/http"
	applog "bikedash/internal/log"
	"bikedash/internal/middleware/ratelimit"
	"bikedash/internal/services"
	"bikedash/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	res, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize data source", applog.FieldError, err, applog.FieldSource, cfg.DataSource)
		os.Exit(1)
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warn("Data source close failed", applog.FieldError, err)
		}
	}()

	dash := services.NewDashboardService(res.Backend, services.DashboardConfig{
		CacheTTL:  cfg.CacheTTL,
		CacheSize: cfg.CacheSize,
		Logger:    logger,
	})
	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	dash.RegisterCaches(caches)

	srv := apphttp.NewServer(apphttp.Config{
		Addr: ":" + cfg.Port,
		RateLimit: ratelimit.Config{
			Requests: cfg.RateLimit,
			Window:   cfg.RateLimitWindow,
		},
		Logger: logger,
	}, dash)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting bikedash server",
			applog.FieldOperation, applog.OpStartup,
			"port", cfg.Port,
			applog.FieldSource, cfg.DataSource)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return caches.Run(gctx, time.Minute)
	})

	// Warm the snapshot so the first page view does not pay for the load.
	g.Go(func() error {
		if err := dash.Ready(gctx); err != nil {
			logger.Warn("Initial dataset load failed", applog.FieldError, err)
		}
		return nil
	})

	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(amqp.Config{
			URL:      cfg.AMQPURL,
			Exchange: cfg.AMQPExchange,
			Queue:    cfg.AMQPQueue,
			Logger:   logger,
		})
		if err != nil {
			logger.Warn("AMQP unavailable at startup, consumer will keep retrying", applog.FieldError, err)
			client = amqp.NewLazyClient(amqp.Config{
				URL:      cfg.AMQPURL,
				Exchange: cfg.AMQPExchange,
				Queue:    cfg.AMQPQueue,
				Logger:   logger,
			})
		}
		defer client.Close()

		reloader := worker.NewReloadWorker(client, dash, logger)
		g.Go(func() error {
			return reloader.Run(gctx)
		})
	} else {
		logger.Info("AMQP not configured, caches expire by TTL only", "cache_ttl", cfg.CacheTTL.String())
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully", applog.FieldOperation, applog.OpShutdown)
}
