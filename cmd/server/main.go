package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/lumapay/payment-core/internal/adapters/cardlink"
	"github.com/lumapay/payment-core/internal/adapters/hostedpay"
	"github.com/lumapay/payment-core/internal/adapters/postgres"
	"github.com/lumapay/payment-core/internal/config"
	"github.com/lumapay/payment-core/internal/logging"
	"github.com/lumapay/payment-core/internal/registry"
	contractService "github.com/lumapay/payment-core/internal/services/contracts"
	"github.com/lumapay/payment-core/internal/services/orchestrator"
	"github.com/lumapay/payment-core/pkg/observability"
	"github.com/lumapay/payment-core/pkg/resilience"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logger)
	defer logger.Sync()

	logger.Info("Starting payment core",
		zap.String("version", "0.1.0"),
		zap.String("secrets_backend", cfg.Secrets.Backend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies", zap.Error(err))
	}
	defer deps.db.Close()

	// Reconciliation sweep runs for the lifetime of the process
	go deps.reconciler.Run(ctx)

	// Metrics and health endpoints
	httpMux := http.NewServeMux()
	httpMux.Handle("/metrics", promhttp.Handler())
	httpMux.HandleFunc("/healthz", deps.health.HealthHandler())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler: httpMux,
	}

	go func() {
		logger.Info("Metrics server listening",
			zap.Int("port", cfg.Server.MetricsPort),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("Stopped")
}

// Dependencies holds the composed service graph. Payments and Contracts are
// the operation entry points; the request surface lives outside this module,
// so this binary drives only the reconciler and the metrics server.
type Dependencies struct {
	db         *postgres.Adapter
	Payments   *orchestrator.Service
	Contracts  *contractService.Service
	reconciler *orchestrator.Reconciler
	health     *observability.HealthChecker
}

// initDependencies initializes all adapters and services with dependency injection
func initDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	dbCfg := postgres.DefaultConfig(cfg.Database.ConnectionString())
	dbCfg.MaxConns = cfg.Database.MaxConns
	dbCfg.MinConns = cfg.Database.MinConns

	db, err := postgres.NewAdapter(initCtx, dbCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	if err := db.Migrate(initCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	secretManager, err := initSecretManager(initCtx, &cfg.Secrets, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize secret manager: %w", err)
	}

	ledger := postgres.NewTransactionRepository()
	contractRepo := postgres.NewContractRepository()
	tenantStore := postgres.NewTenantConfigRepository(db, secretManager)

	providers := registry.New()
	providers.Register(cardlink.NewAdapter(logger))
	providers.Register(hostedpay.NewAdapter(logger))
	logger.Info("Payment providers registered",
		zap.Strings("providers", providers.Names()),
	)

	svcLogger := logging.NewZapLogger(logger)
	timeouts := resilience.DefaultTimeoutConfig()

	payments := orchestrator.NewService(db, ledger, contractRepo, providers, tenantStore, svcLogger, timeouts)
	contracts := contractService.NewService(db, contractRepo, providers, tenantStore, svcLogger, timeouts)

	reconciler := orchestrator.NewReconciler(db, ledger, providers, tenantStore, svcLogger, timeouts, orchestrator.ReconcilerConfig{
		Interval:    cfg.Reconciler.Interval,
		StuckAfter:  cfg.Reconciler.StuckAfter,
		BatchSize:   cfg.Reconciler.BatchSize,
		MaxAttempts: cfg.Reconciler.MaxAttempts,
		PollRate:    rate.Limit(cfg.Reconciler.PollRate),
	})

	return &Dependencies{
		db:         db,
		Payments:   payments,
		Contracts:  contracts,
		reconciler: reconciler,
		health:     observability.NewHealthChecker(db.GetDB()),
	}, nil
}

// initLogger initializes the logger
func initLogger(cfg config.LoggerConfig) *zap.Logger {
	var level zapcore.Level
	if err := level.Set(cfg.Level); err != nil {
		level = zapcore.InfoLevel
	}

	if cfg.Development {
		zapCfg := zap.NewDevelopmentConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(level)
		logger, _ := zapCfg.Build()
		return logger
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	logger, _ := zapCfg.Build()
	return logger
}
