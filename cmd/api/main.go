package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/exchange-api/internal/config"
	"github.com/jwalitptl/exchange-api/internal/handler"
	accessHandler "github.com/jwalitptl/exchange-api/internal/handler/access"
	auditHandler "github.com/jwalitptl/exchange-api/internal/handler/audit"
	authHandler "github.com/jwalitptl/exchange-api/internal/handler/auth"
	clinicHandler "github.com/jwalitptl/exchange-api/internal/handler/clinic"
	documentHandler "github.com/jwalitptl/exchange-api/internal/handler/document"
	"github.com/jwalitptl/exchange-api/internal/handler/policyadmin"
	requestHandler "github.com/jwalitptl/exchange-api/internal/handler/request"
	"github.com/jwalitptl/exchange-api/internal/middleware"
	"github.com/jwalitptl/exchange-api/internal/repository/postgres"
	"github.com/jwalitptl/exchange-api/internal/router"
	"github.com/jwalitptl/exchange-api/internal/service/accessrequest"
	auditService "github.com/jwalitptl/exchange-api/internal/service/audit"
	"github.com/jwalitptl/exchange-api/internal/service/directory"
	policyService "github.com/jwalitptl/exchange-api/internal/service/policy"
	"github.com/jwalitptl/exchange-api/internal/service/retrieval"
	"github.com/jwalitptl/exchange-api/pkg/auth"
	"github.com/jwalitptl/exchange-api/pkg/logger"
	"github.com/jwalitptl/exchange-api/pkg/metrics"
	"github.com/jwalitptl/exchange-api/pkg/resilient"
	"github.com/jwalitptl/exchange-api/pkg/security"
	"github.com/jwalitptl/exchange-api/pkg/validator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	validator.RegisterCustomValidations()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	var encryptor security.Encryptor
	if cfg.Security.EncryptionKey != "" {
		encryptor, err = security.NewAESEncryptor([]byte(cfg.Security.EncryptionKey))
		if err != nil {
			log.Fatal().Err(err).Msg("invalid credential encryption key")
		}
	}

	// Repositories
	base := postgres.NewBaseRepository(db)
	policyRepo := postgres.NewPolicyRepository(base)
	requestRepo := postgres.NewAccessRequestRepository(base)
	clinicRepo := postgres.NewClinicRepository(base, encryptor)
	documentRepo := postgres.NewDocumentRepository(base)
	auditRepo := postgres.NewAuditRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)

	m := metrics.NewMetrics("exchange")

	// Audit sink; decisions are audited asynchronously unless configured
	// otherwise.
	auditSvc := auditService.NewService(auditRepo)
	var sink auditService.Sink = auditSvc
	if cfg.Audit.Async {
		sink = auditService.NewAsyncSink(auditSvc, appLogger)
	}

	resilientCfg := resilient.Config{
		MaxAttempts:      cfg.Retrieval.MaxAttempts,
		BackoffDelays:    cfg.Retrieval.ResilientDelays(),
		FailureThreshold: cfg.Retrieval.FailureThreshold,
		ResetTimeout:     cfg.Retrieval.ResetTimeout,
		ConnectTimeout:   cfg.Retrieval.ConnectTimeout,
		ResponseTimeout:  cfg.Retrieval.ResponseTimeout,
	}

	// Services
	engine := policyService.NewEngine(policyRepo, requestRepo, sink, m, cfg.Workflow.DenialLookback)
	policySvc := policyService.NewService(policyRepo, sink)
	requestSvc := accessrequest.NewService(requestRepo, outboxRepo, sink, m, appLogger, cfg.Workflow.RequestTTL)
	directorySvc := directory.NewService(clinicRepo, cfg.Identity.BaseURL, resilientCfg, appLogger)
	retrievalSvc := retrieval.NewService(documentRepo, directorySvc, sink, m, appLogger, resilientCfg)

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryHours)
	authMiddleware := middleware.NewAuthMiddleware(jwtSvc)

	// Handlers
	h := handler.NewHandler(db)
	authH := authHandler.NewHandler(jwtSvc, directorySvc)
	accessH := accessHandler.NewHandler(engine, requestSvc)
	requestH := requestHandler.NewHandler(requestSvc)
	policyH := policyadmin.NewHandler(policySvc)
	documentH := documentHandler.NewHandler(documentRepo, engine, retrievalSvc)
	clinicH := clinicHandler.NewHandler(clinicRepo, directorySvc)
	auditH := auditHandler.NewHandler(auditSvc)

	r := router.NewRouter(
		authMiddleware,
		authH,
		accessH,
		requestH,
		policyH,
		documentH,
		clinicH,
		auditH,
		h,
		router.RouterConfig{
			RateLimit:     100,
			RateBurst:     200,
			MetricsPrefix: "exchange_api",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("exchange api started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
