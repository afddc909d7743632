// Command ingester starts the queue-consumer service.
//
// It reads batches from the ingest topic, routes continuation messages back
// through the pagination controller, and for each document message fetches
// the stored envelope, validates and projects it, and writes the index record
// with an idempotent upsert.
//
// Usage:
//
//	go run ./cmd/ingester [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/calmhive/content-archive/internal/ingest/dispatcher"
	"github.com/calmhive/content-archive/internal/ingest/enqueuer"
	"github.com/calmhive/content-archive/internal/ingest/lister"
	"github.com/calmhive/content-archive/internal/ingest/pager"
	"github.com/calmhive/content-archive/internal/ingest/projector"
	"github.com/calmhive/content-archive/internal/ingest/store"
	"github.com/calmhive/content-archive/pkg/config"
	"github.com/calmhive/content-archive/pkg/health"
	"github.com/calmhive/content-archive/pkg/kafka"
	"github.com/calmhive/content-archive/pkg/logger"
	"github.com/calmhive/content-archive/pkg/metrics"
	"github.com/calmhive/content-archive/pkg/objectstore"
	"github.com/calmhive/content-archive/pkg/postgres"
	"github.com/calmhive/content-archive/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingester service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	objects, err := objectstore.NewGCS(ctx, cfg.ObjectStore)
	if err != nil {
		slog.Error("failed to create object store client", "error", err)
		os.Exit(1)
	}
	defer objects.Close()
	slog.Info("object store client initialized", "bucket", cfg.ObjectStore.Bucket)

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.IngestTopic)
	defer producer.Close()

	var guard pager.Guard
	rdb, err := redis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, pagination runs bounded by page depth only", "error", err)
	} else {
		defer rdb.Close()
		guard = pager.NewCursorGuard(rdb, cfg.Redis.GuardTTL)
	}

	m := metrics.New()
	registry := projector.Builtin()
	slog.Info("projector registry loaded", "types", registry.Types())

	ls := lister.New(objects, cfg.ObjectStore.Prefix, cfg.Ingest.PageSize)
	enq := enqueuer.New(producer, cfg.Ingest.BatchSize)
	pg := pager.New(ls, enq, producer, guard, cfg.Ingest.MaxPagesPerRun, m)
	idx := store.New(db.DB, m)
	disp := dispatcher.New(objects, registry, idx, pg, cfg.Ingest.BatchTimeout, m)

	consumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.IngestTopic,
		cfg.Ingest.BatchSize,
		cfg.Ingest.FlushInterval,
		disp.HandleBatch,
	)
	defer consumer.Close()

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if rdb == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not connected"}
		}
		if err := rdb.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("GET /health/live", checker.LiveHandler())
	healthMux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: healthMux,
	}
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: metrics.Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Start(gctx)
	})
	g.Go(func() error {
		slog.Info("health server listening", "addr", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			slog.Info("metrics server listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("health server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("ingester service error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingester service stopped")
}
