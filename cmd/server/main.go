package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appbilling "github.com/antaeus/billing/internal/application/billing"
	"github.com/antaeus/billing/internal/infrastructure/auth"
	"github.com/antaeus/billing/internal/infrastructure/cache"
	"github.com/antaeus/billing/internal/infrastructure/config"
	"github.com/antaeus/billing/internal/infrastructure/event"
	"github.com/antaeus/billing/internal/infrastructure/logger"
	"github.com/antaeus/billing/internal/infrastructure/payment"
	"github.com/antaeus/billing/internal/infrastructure/persistence"
	"github.com/antaeus/billing/internal/infrastructure/scheduler"
	"github.com/antaeus/billing/internal/infrastructure/storage"
	"github.com/antaeus/billing/internal/infrastructure/telemetry"
	"github.com/antaeus/billing/internal/interfaces/http/middleware"
	"github.com/antaeus/billing/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//	@title			Billing Admin API
//	@version		1.0
//	@description	Monthly invoice charging with an admin API for manual runs and inspection

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	baseLog, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(1)
	}

	if err := run(cfg, baseLog); err != nil {
		baseLog.Error("Billing server stopped with error", zap.Error(err))
		_ = baseLog.Sync()
		os.Exit(1)
	}
	_ = baseLog.Sync()
}

// run wires the billing engine and serves the admin API until SIGINT/SIGTERM.
func run(cfg *config.Config, baseLog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, log, err := setupTelemetry(ctx, cfg, baseLog)
	if err != nil {
		return err
	}
	defer tel.shutdown(log)

	log.Info("Starting billing server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.HTTP.Port),
	)

	dbOpts := []persistence.Option{persistence.WithLogger(log)}
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbOpts = append(dbOpts, persistence.WithTracing(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		}))
	}
	db, err := persistence.NewDatabase(&cfg.Database, dbOpts...)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	var billingMetrics *telemetry.BillingMetrics
	if tel.meters.IsEnabled() {
		dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, tel.meters.Meter("billing.db"), telemetry.DefaultDBMetricsConfig(), log)
		if err != nil {
			return fmt.Errorf("register database metrics: %w", err)
		}
		if dbMetrics != nil {
			dbMetrics.StartPoolStatsCollection(ctx)
			defer dbMetrics.Stop()
		}

		billingMetrics, err = telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{
			Meter:  tel.meters.Meter("billing"),
			Logger: log,
			Stats:  telemetry.NewGormInvoiceStatsProvider(db.DB),
		})
		if err != nil {
			return fmt.Errorf("create billing metrics: %w", err)
		}
		billingMetrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)
		defer billingMetrics.Stop()
	}

	var redisClient *redis.Client
	if needsRedis(cfg) {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = redisClient.Close() }()
	}

	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	eventLog := persistence.NewGormEventLogRepository(db.DB)

	var streams event.StreamClient
	if redisClient != nil {
		streams = redisClient
	}
	bus, err := setupEventBus(cfg, log, eventLog, streams)
	if err != nil {
		return err
	}
	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}
	defer func() { _ = bus.Stop(context.Background()) }()

	provider, err := payment.NewProvider(cfg.Payment, log)
	if err != nil {
		return fmt.Errorf("create payment provider: %w", err)
	}

	serviceOpts := []appbilling.BillingServiceOption{}
	dispatcherOpts := []appbilling.BatchDispatcherOption{}
	if billingMetrics != nil {
		serviceOpts = append(serviceOpts, appbilling.WithChargeMetrics(billingMetrics))
		dispatcherOpts = append(dispatcherOpts, appbilling.WithBatchMetrics(billingMetrics))
	}

	locker, err := cache.NewInvoiceLockerFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).Create(cfg.Billing.LockBackend)
	if err != nil {
		return fmt.Errorf("create invoice locker: %w", err)
	}
	if locker != nil {
		defer func() { _ = locker.Close() }()
		serviceOpts = append(serviceOpts, appbilling.WithInvoiceLocker(locker))
	}

	billingService := appbilling.NewBillingService(invoiceRepo, customerRepo, provider, bus, log, appbilling.BillingServiceConfig{
		Retry: appbilling.RetryPolicy{
			MaxAttempts: cfg.Billing.MaxAttempts,
			Interval:    cfg.Billing.RetryInterval,
			Exponential: cfg.Billing.ExponentialBackoff,
			MaxInterval: cfg.Billing.MaxRetryInterval,
		},
		LockTTL: cfg.Billing.LockTTL,
	}, serviceOpts...)

	invoiceService := appbilling.NewInvoiceService(invoiceRepo, log)
	customerService := appbilling.NewCustomerService(customerRepo)

	if cfg.Storage.Enabled {
		archive, err := storage.NewS3ReportArchive(ctx, cfg.Storage, storage.WithLogger(log.Named("reports")))
		if err != nil {
			return fmt.Errorf("create report archive: %w", err)
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			log.Warn("Report bucket check failed, reports may not be archived", zap.Error(err))
		}
		dispatcherOpts = append(dispatcherOpts, appbilling.WithBatchReporter(archive))
	}

	dispatcher := appbilling.NewBatchDispatcher(invoiceService, billingService, log, appbilling.BatchDispatcherConfig{
		MaxConcurrency: cfg.Billing.MaxConcurrency,
	}, dispatcherOpts...)

	registry := scheduler.NewCronRegistry(cfg.Billing.Location(), log)
	trigger := scheduler.NewTriggerScheduler(scheduler.TriggerConfig{MonthlySpec: cfg.Billing.MonthlyCron}, registry, dispatcher, log)

	if cfg.Billing.SchedulerEnabled {
		if err := trigger.StartScheduled(ctx); err != nil {
			return fmt.Errorf("start billing scheduler: %w", err)
		}
	} else if cfg.Billing.RunOnStart {
		if _, err := trigger.StartNow(ctx); err != nil {
			return fmt.Errorf("start billing run: %w", err)
		}
	}

	tokens := auth.NewTokenService(cfg.HTTP.AdminSecret, cfg.HTTP.TokenIssuer, cfg.HTTP.TokenTTL)
	if !tokens.Enabled() {
		log.Warn("No admin secret configured, the admin API is unauthenticated")
	}
	var revocations auth.Revocations = auth.NewMemoryRevocations()
	if cfg.HTTP.RevocationBackend == "redis" && redisClient != nil {
		revocations = auth.NewRedisRevocations(redisClient, "")
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	routerCfg := router.Config{
		ServiceName:     cfg.Telemetry.ServiceName,
		TracingEnabled:  cfg.Telemetry.Enabled,
		ProfileRequests: cfg.HTTP.ProfileRequests && cfg.Telemetry.ProfilingEnabled,
		MaxBodyBytes:    middleware.DefaultMaxBodyBytes,
		TokenRatePerMin: 10,
		TokenRateBurst:  5,
	}
	if tel.meters.IsEnabled() {
		routerCfg.MeterProvider = tel.meters
	}
	engine := router.New(routerCfg, router.Dependencies{
		Invoices:    invoiceService,
		Charger:     billingService,
		Events:      eventLog,
		Customers:   customerService,
		Scheduler:   trigger,
		Batches:     dispatcher,
		Database:    db,
		Tokens:      tokens,
		Revocations: revocations,
		Logger:      log,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.HTTP.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Admin API listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("admin API: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Admin API shutdown failed", zap.Error(err))
	}
	if err := trigger.Stop(shutdownCtx); err != nil {
		log.Error("Billing scheduler did not stop cleanly", zap.Error(err))
	}
	log.Info("Billing server stopped")
	return nil
}

func needsRedis(cfg *config.Config) bool {
	return cfg.Events.StreamEnabled || cfg.HTTP.RevocationBackend == "redis"
}

func setupEventBus(cfg *config.Config, log *zap.Logger, store event.EventStore, streams event.StreamClient) (*event.InMemoryEventBus, error) {
	bus := event.NewInMemoryEventBus(log.Named("events"))
	serializer := event.NewBillingEventSerializer()

	if cfg.Events.LogEnabled {
		bus.Subscribe(event.NewLoggingEventHandler(log))
	}
	if cfg.Events.StoreEnabled {
		bus.Subscribe(event.NewEventLogHandler(store, serializer))
	}
	if cfg.Events.StreamEnabled {
		if streams == nil {
			return nil, errors.New("event stream enabled but Redis is not configured")
		}
		bus.Subscribe(event.NewStreamHandler(streams, cfg.Events.StreamName, cfg.Events.StreamMaxLen, serializer))
	}
	return bus, nil
}

// telemetryStack owns every OpenTelemetry and Pyroscope component
type telemetryStack struct {
	tracer   *telemetry.TracerProvider
	meters   *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
}

// setupTelemetry starts tracing, metrics, log export and profiling, and returns
// the application logger bridged to the OTEL log pipeline.
func setupTelemetry(ctx context.Context, cfg *config.Config, baseLog *zap.Logger) (*telemetryStack, *zap.Logger, error) {
	t := cfg.Telemetry
	stack := &telemetryStack{}

	var err error
	stack.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           t.Enabled,
		CollectorEndpoint: t.CollectorEndpoint,
		SamplingRatio:     t.SamplingRatio,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, baseLog)
	if err != nil {
		return nil, nil, fmt.Errorf("init tracing: %w", err)
	}

	stack.meters, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           t.Enabled && t.MetricsEnabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ExportInterval:    t.MetricsInterval,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, baseLog)
	if err != nil {
		return nil, nil, fmt.Errorf("init metrics: %w", err)
	}

	stack.logs, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           t.Enabled && t.LogsEnabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, baseLog)
	if err != nil {
		return nil, nil, fmt.Errorf("init log export: %w", err)
	}

	log := telemetry.NewBridgedLogger(baseLog, telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
		ServiceName:    t.ServiceName,
		LoggerProvider: stack.logs,
		Level:          logger.ParseLevel(cfg.Log.Level),
	}))

	stack.profiler, err = telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         t.ProfilingEnabled,
		ServerAddress:   t.PyroscopeEndpoint,
		ApplicationName: t.ServiceName,
		Tags:            map[string]string{"env": cfg.App.Env},
	}, log)
	if err != nil {
		log.Warn("Continuous profiling disabled", zap.Error(err))
		stack.profiler = nil
	} else if stack.profiler.IsEnabled() && stack.tracer.IsEnabled() {
		if err := stack.tracer.EnableSpanProfiles(); err != nil {
			log.Warn("Span profiles unavailable", zap.Error(err))
		}
	}

	return stack, log, nil
}

func (s *telemetryStack) shutdown(log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.profiler != nil {
		if err := s.profiler.Stop(); err != nil {
			log.Warn("Profiler stop failed", zap.Error(err))
		}
	}
	if err := s.tracer.Shutdown(ctx); err != nil {
		log.Warn("Tracer shutdown failed", zap.Error(err))
	}
	if err := s.meters.Shutdown(ctx); err != nil {
		log.Warn("Meter shutdown failed", zap.Error(err))
	}
	if err := s.logs.Shutdown(ctx); err != nil {
		log.Warn("Log exporter shutdown failed", zap.Error(err))
	}
}
