// Server runs the identity service: AuthService over gRPC and the JSON HTTP API, health and metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"identity-service/backend/internal/config"
	"identity-service/backend/internal/db"
	"identity-service/backend/internal/db/migrate"
	"identity-service/backend/internal/events"
	"identity-service/backend/internal/identity/service"
	"identity-service/backend/internal/logging"
	policyengine "identity-service/backend/internal/policy/engine"
	"identity-service/backend/internal/security"
	"identity-service/backend/internal/server"
	"identity-service/backend/internal/store"
	telemetryotel "identity-service/backend/internal/telemetry/otel"
)

const shutdownTimeout = 15 * time.Second

type unitOfWork interface {
	service.UnitOfWork
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Dev: cfg.LogDev})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logging.LogError(logger, "server exited", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName,
		Insecure:    cfg.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	if cfg.AutoMigrate {
		if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied")
	}

	uow, closeDB, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer closeDB()

	var policy *policyengine.OPAEvaluator
	if cfg.SocialPolicyFile != "" {
		policy, err = policyengine.NewOPAEvaluatorFromFile(ctx, cfg.SocialPolicyFile, cfg.SocialProvidersList())
	} else {
		policy, err = policyengine.NewOPAEvaluator(ctx, "", cfg.SocialProvidersList())
	}
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	producers := events.Multi{events.NewOTelProducer(providers.LoggerProvider)}
	if kp := events.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.EventsKafkaTopic); kp != nil {
		producers = append(producers, kp)
		logger.Info("publishing account events to kafka", zap.String("topic", cfg.EventsKafkaTopic))
	}
	defer func() { _ = producers.Close() }()

	auth := service.NewAuthService(
		uow,
		security.NewHasher(cfg.PBKDF2Iterations),
		security.NewTokenProvider([]byte(cfg.SecretKey), cfg.JWTExpiresDays),
		service.WithPolicy(policy),
		service.WithProducer(producers),
		service.WithLogger(logger),
		service.WithMeter(otel.GetMeterProvider().Meter("identity-service/auth")),
		service.WithDefaultPhoto(cfg.DefaultPhotoURL),
	)

	deps := server.Deps{
		Auth:                auth,
		HealthPinger:        uow,
		HealthPolicyChecker: policy,
		Logger:              logger,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	grpcServer := server.NewGRPCServer(deps)

	var httpServer *http.Server
	if cfg.HTTPAddr != "" {
		httpServer = server.NewHTTPServer(cfg.HTTPAddr, server.NewHTTPHandler(deps, server.NewRegistry()))
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		errCh <- grpcServer.Serve(lis)
	}()
	if httpServer != nil {
		go func() {
			logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
	}

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown", zap.Error(err))
		}
		cancel()
	}
	grpcServer.GracefulStop()

	// Let in-flight async publishes finish before the producers close.
	time.Sleep(events.ShutdownDrainDuration)
	logger.Info("stopped")
	return serveErr
}

// openStore connects to the database named by DATABASE_URL and returns the unit of work over it.
func openStore(ctx context.Context, cfg *config.Config) (unitOfWork, func(), error) {
	driver, err := cfg.DatabaseDriver()
	if err != nil {
		return nil, nil, err
	}
	switch driver {
	case db.DriverPostgres:
		pool, err := db.OpenPostgres(ctx, cfg.DatabaseURL, cfg.DBConnectRetries)
		if err != nil {
			return nil, nil, err
		}
		return store.NewPostgres(pool), pool.Close, nil
	default:
		sqlDB, err := db.OpenSQLite(db.SQLitePath(cfg.DatabaseURL))
		if err != nil {
			return nil, nil, err
		}
		return store.NewSQLite(sqlDB), func() { _ = sqlDB.Close() }, nil
	}
}
