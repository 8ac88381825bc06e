package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/exchange-api/internal/config"
	"github.com/jwalitptl/exchange-api/internal/repository/postgres"
	"github.com/jwalitptl/exchange-api/internal/service/accessrequest"
	auditService "github.com/jwalitptl/exchange-api/internal/service/audit"
	internalworker "github.com/jwalitptl/exchange-api/internal/worker"
	"github.com/jwalitptl/exchange-api/pkg/logger"
	"github.com/jwalitptl/exchange-api/pkg/messaging/redis"
	"github.com/jwalitptl/exchange-api/pkg/metrics"
	"github.com/jwalitptl/exchange-api/pkg/worker"
)

func setupHealthCheck(appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			appLogger.Fatal(err, "Health check server failed")
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, appLogger)
	if err != nil {
		appLogger.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	base := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(base)
	requestRepo := postgres.NewAccessRequestRepository(base)
	auditRepo := postgres.NewAuditRepository(base)

	m := metrics.NewMetrics("exchange_worker")
	auditSvc := auditService.NewService(auditRepo)
	requestSvc := accessrequest.NewService(requestRepo, outboxRepo, auditSvc, m, appLogger, cfg.Workflow.RequestTTL)

	processor := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		worker.OutboxProcessorConfig{
			BatchSize:    cfg.Outbox.BatchSize,
			PollInterval: cfg.Outbox.PollInterval,
			MaxRetries:   cfg.Outbox.MaxRetries,
		},
		appLogger,
		m,
	)

	expiry := internalworker.NewRequestExpiryWorker(
		requestSvc,
		cfg.Workflow.SweepInterval,
		cfg.Workflow.SweepBatchSize,
		appLogger,
	)

	cleanup := internalworker.NewCleanupWorker(
		auditSvc,
		outboxRepo,
		cfg.Audit.RetentionDays,
		cfg.Workflow.SweepInterval,
		appLogger,
	)

	setupHealthCheck(appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.Info("Shutting down...")
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		expiry.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()
	wg.Wait()
}
