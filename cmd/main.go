package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/escrow-service/escrow_service/internal/api/routes"
	"github.com/escrow-service/escrow_service/internal/domain/services/funding"
	"github.com/escrow-service/escrow_service/internal/domain/services/settlement"
	"github.com/escrow-service/escrow_service/internal/domain/services/stats"
	"github.com/escrow-service/escrow_service/internal/infrastructure/aptos"
	"github.com/escrow-service/escrow_service/internal/infrastructure/cache"
	"github.com/escrow-service/escrow_service/internal/infrastructure/config"
	"github.com/escrow-service/escrow_service/internal/infrastructure/database"
	"github.com/escrow-service/escrow_service/internal/infrastructure/lock"
	"github.com/escrow-service/escrow_service/internal/infrastructure/repositories"
	"github.com/escrow-service/escrow_service/internal/workers/funding_monitor"
	"github.com/escrow-service/escrow_service/internal/workers/reconciliation"
	"github.com/escrow-service/escrow_service/pkg/graceful"
	"github.com/escrow-service/escrow_service/pkg/logger"
	"github.com/escrow-service/escrow_service/pkg/metrics"
	"github.com/escrow-service/escrow_service/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	log.Info("Starting escrow settlement service",
		"environment", cfg.Environment,
		"network", cfg.Aptos.Network)

	// Tracing
	shutdownTracer, err := tracing.InitTracer(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
	}, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}

	// Database
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}

	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	// Redis cache + per-wallet settlement locks
	redisClient, err := cache.NewRedisClient(&cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to connect to redis", "error", err)
	}

	locker, err := lock.NewRedisLocker(
		fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		cfg.Redis.Password,
		cfg.Redis.DB,
		time.Duration(cfg.Settlement.WalletLockTTL)*time.Second,
	)
	if err != nil {
		log.Fatal("Failed to create wallet locker", "error", err)
	}

	// Escrow signer and fullnode client
	signer, err := aptos.NewSigner(cfg.Escrow.PrivateKeyHex, cfg.Escrow.Address)
	if err != nil {
		log.Fatal("Failed to initialize escrow signer", "error", err)
	}

	chainClient := aptos.NewClient(cfg.Aptos, signer, log.Zap())

	// Repositories
	playerRepo := repositories.NewPlayerRepository(db)
	transactionRepo := repositories.NewTransactionRepository(db)
	settlementRepo := repositories.NewSettlementRepository(db, playerRepo, transactionRepo)

	// Services
	settlementService := settlement.NewService(
		settlementRepo,
		chainClient,
		locker,
		time.Duration(cfg.Aptos.ConfirmationTimeout)*time.Second,
		log,
	)
	fundingService := funding.NewService(
		chainClient,
		redisClient,
		cfg.Escrow,
		time.Duration(cfg.Settlement.FundingSnapshotTTL)*time.Second,
		log,
	)
	statsService := stats.NewService(playerRepo, transactionRepo, log)

	// Workers
	fundingMonitor := funding_monitor.NewWorker(
		fundingService,
		time.Duration(cfg.Settlement.FundingPollInterval)*time.Second,
		log.Zap(),
	)
	fundingMonitor.Start()

	reconciler := reconciliation.NewWorker(settlementService, cfg.Settlement, log.Zap())
	if err := reconciler.Start(); err != nil {
		log.Fatal("Failed to start reconciliation worker", "error", err)
	}

	// Connection pool gauges
	poolGaugeStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-poolGaugeStop:
				return
			case <-ticker.C:
				poolStats := db.Stats()
				metrics.DatabaseConnectionsGauge.WithLabelValues("open").Set(float64(poolStats.OpenConnections))
				metrics.DatabaseConnectionsGauge.WithLabelValues("idle").Set(float64(poolStats.Idle))
				metrics.DatabaseConnectionsGauge.WithLabelValues("in_use").Set(float64(poolStats.InUse))
			}
		}
	}()

	// HTTP server
	router := routes.SetupRoutes(&routes.Deps{
		Config:     cfg,
		Logger:     log,
		DB:         db,
		Redis:      redisClient,
		Settlement: settlementService,
		Funding:    fundingService,
		Stats:      statsService,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", "error", err)
		}
	}()

	sm := graceful.NewShutdownManager(server, db.DB, log)
	sm.Register(shutdownFunc(func(timeout time.Duration) error {
		fundingMonitor.Stop()
		reconciler.Stop()
		close(poolGaugeStop)

		if err := locker.Close(); err != nil {
			log.Warn("Wallet locker close error", "error", err)
		}
		if err := redisClient.Close(); err != nil {
			log.Warn("Redis close error", "error", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return shutdownTracer(ctx)
	}))

	sm.WaitForShutdown()
}

type shutdownFunc func(timeout time.Duration) error

func (f shutdownFunc) Shutdown(timeout time.Duration) error {
	return f(timeout)
}
