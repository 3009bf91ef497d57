package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/care-api/internal/config"
	"github.com/jwalitptl/care-api/internal/repository/postgres"
	"github.com/jwalitptl/care-api/pkg/circuitbreaker"
	"github.com/jwalitptl/care-api/pkg/logger"
	"github.com/jwalitptl/care-api/pkg/messaging"
	"github.com/jwalitptl/care-api/pkg/messaging/redis"
	"github.com/jwalitptl/care-api/pkg/metrics"
	"github.com/jwalitptl/care-api/pkg/worker"
)

const cleanupInterval = time.Hour

func setupHealthCheck(addr string, registry *prometheus.Registry, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "Health check server failed")
		}
	}()
	return srv
}

func main() {
	healthAddr := flag.String("health-addr", ":8081", "address for health and metrics endpoints")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	}).With("outbox_worker")

	if err := run(cfg, *healthAddr, log); err != nil {
		log.Fatal(err, "Worker stopped")
	}
}

func run(cfg *config.Config, healthAddr string, log *logger.Logger) error {
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("the outbox worker requires the postgres driver, got %q", cfg.Database.Driver)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := redis.NewClient(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	if err != nil {
		return err
	}
	broker := circuitbreaker.NewBroker(
		redis.NewRedisBroker(client, log.Zerolog()),
		circuitbreaker.DefaultSettings("redis-broker"),
		log,
	)
	defer broker.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(cfg.Metrics.Namespace, registry)

	outboxRepo := postgres.NewOutboxRepository(postgres.NewBaseRepository(db))

	processor, err := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		Channel:       messaging.EventsChannel,
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
	}, log, m)
	if err != nil {
		return err
	}

	cleanup := worker.NewOutboxCleanup(outboxRepo, cfg.Outbox.Retention, cleanupInterval, log, m)
	if err := cleanup.Start(ctx); err != nil {
		return err
	}
	defer cleanup.Stop()

	healthSrv := setupHealthCheck(healthAddr, registry, log)
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = healthSrv.Shutdown(shutdownCtx)
	}()

	processor.Start(ctx)
	return nil
}
