// Command trigger starts the ingestion trigger HTTP service.
//
// POST /ingest/all[?cursor=...] begins or resumes a paginated
// enumerate-and-enqueue run over the archive bucket; POST /ingest/{objectKey}
// enqueues exactly one document. Both require bearer-token authentication.
//
// Usage:
//
//	go run ./cmd/trigger [-config configs/development.yaml]
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

	"github.com/calmhive/content-archive/internal/ingest/enqueuer"
	"github.com/calmhive/content-archive/internal/ingest/lister"
	"github.com/calmhive/content-archive/internal/ingest/pager"
	"github.com/calmhive/content-archive/internal/trigger/handler"
	triggermw "github.com/calmhive/content-archive/internal/trigger/middleware"
	"github.com/calmhive/content-archive/pkg/config"
	"github.com/calmhive/content-archive/pkg/health"
	"github.com/calmhive/content-archive/pkg/kafka"
	"github.com/calmhive/content-archive/pkg/logger"
	"github.com/calmhive/content-archive/pkg/metrics"
	"github.com/calmhive/content-archive/pkg/middleware"
	"github.com/calmhive/content-archive/pkg/objectstore"
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
	slog.Info("starting trigger service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	objects, err := objectstore.NewGCS(ctx, cfg.ObjectStore)
	if err != nil {
		slog.Error("failed to create object store client", "error", err)
		os.Exit(1)
	}
	defer objects.Close()
	slog.Info("object store client initialized", "bucket", cfg.ObjectStore.Bucket)

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.IngestTopic)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.IngestTopic)

	var guard pager.Guard
	rdb, err := redis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, pagination runs bounded by page depth only", "error", err)
	} else {
		defer rdb.Close()
		guard = pager.NewCursorGuard(rdb, cfg.Redis.GuardTTL)
	}

	m := metrics.New()
	ls := lister.New(objects, cfg.ObjectStore.Prefix, cfg.Ingest.PageSize)
	enq := enqueuer.New(producer, cfg.Ingest.BatchSize)
	pg := pager.New(ls, enq, producer, guard, cfg.Ingest.MaxPagesPerRun, m)
	h := handler.New(pg, producer)

	checker := health.NewChecker()
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if rdb == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not connected"}
		}
		if err := rdb.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /ingest/all", h.IngestAll)
	mux.HandleFunc("POST /ingest/{objectKey...}", h.IngestOne)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	// Middleware chain, applied inside-out:
	// request → RequestID → Metrics → Bearer → mux
	var chain http.Handler = mux
	chain = triggermw.Bearer(cfg.Auth.Token)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: metrics.Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("trigger service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("trigger service error", "error", err)
		os.Exit(1)
	}
	slog.Info("trigger service stopped")
}
