// Command server runs the invoice ledger HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	invoiceapp "github.com/invoiceledger/backend/internal/application/invoicing"
	"github.com/invoiceledger/backend/internal/domain/invoicing"
	"github.com/invoiceledger/backend/internal/domain/shared"
	"github.com/invoiceledger/backend/internal/infrastructure/auth"
	"github.com/invoiceledger/backend/internal/infrastructure/cache"
	"github.com/invoiceledger/backend/internal/infrastructure/config"
	"github.com/invoiceledger/backend/internal/infrastructure/event"
	"github.com/invoiceledger/backend/internal/infrastructure/logger"
	"github.com/invoiceledger/backend/internal/infrastructure/migration"
	"github.com/invoiceledger/backend/internal/infrastructure/notification"
	"github.com/invoiceledger/backend/internal/infrastructure/persistence"
	"github.com/invoiceledger/backend/internal/infrastructure/printing"
	"github.com/invoiceledger/backend/internal/infrastructure/storage"
	"github.com/invoiceledger/backend/internal/infrastructure/telemetry"
	"github.com/invoiceledger/backend/internal/interfaces/http/handler"
	"github.com/invoiceledger/backend/internal/interfaces/http/middleware"
	"github.com/invoiceledger/backend/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
		Env:     cfg.App.Env,
		Version: cfg.App.Version,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

// closer is run on shutdown, in reverse order of registration
type closer struct {
	name string
	fn   func(ctx context.Context) error
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting invoice ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
		zap.String("port", cfg.App.Port),
		zap.String("ledger_store", cfg.Ledger.Store),
	)

	var closers []closer
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].fn(shutdownCtx); err != nil {
				log.Warn("Shutdown step failed", zap.String("component", closers[i].name), zap.Error(err))
			}
		}
	}()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	closers = append(closers, closer{"tracer", tp.Shutdown})

	metrics := telemetry.NewLedgerMetrics(cfg.Metrics.Namespace)
	checks := map[string]handler.HealthCheck{}

	// Ledger storage
	var repo invoicing.InvoiceRepository
	switch cfg.Ledger.Store {
	case config.StoreMemory:
		log.Warn("Using in-memory ledger store, invoices are lost on restart")
		repo = persistence.NewInvoiceArena()
	default:
		if cfg.Database.AutoMigrate {
			if err := migrateSchema(cfg.Database.DSN(), log); err != nil {
				return err
			}
		}
		db, err := persistence.NewDatabase(&cfg.Database, persistence.DatabaseOptions{
			Logger:   log,
			LogLevel: gormLogLevel(cfg.Log.Level),
			Tracing: telemetry.DBTracingConfig{
				Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
				LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
				SlowQueryThresh: cfg.Database.SlowThreshold,
				DBName:          cfg.Database.DBName,
			},
		})
		if err != nil {
			return err
		}
		closers = append(closers, closer{"database", func(context.Context) error { return db.Close() }})
		checks["database"] = db.Ping
		if sqlDB, err := db.SQL(); err == nil {
			if err := metrics.RegisterDB(sqlDB, cfg.Database.DBName); err != nil {
				log.Warn("Database pool metrics not registered", zap.Error(err))
			}
		}
		repo = persistence.NewGormInvoiceRepository(db.DB)
		log.Info("Database connected")
	}

	// Redis backs idempotency and notification delivery when enabled
	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		redisClient = client
		closers = append(closers, closer{"redis", func(context.Context) error { return client.Close() }})
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}
	idempotency := cache.NewIdempotencyStore(redisClient, cache.DefaultKeyPrefix, log)
	closers = append(closers, closer{"idempotency", func(context.Context) error { return idempotency.Close() }})

	// Document storage and rendering
	var store invoicing.DocumentStore
	if cfg.Storage.Enabled {
		s3Store, err := storage.NewS3DocumentStore(ctx, cfg.Storage, log)
		if err != nil {
			return err
		}
		if err := s3Store.EnsureBucket(ctx); err != nil {
			return err
		}
		store = s3Store
	}

	var generator invoicing.DocumentGenerator
	if cfg.Document.Enabled {
		engine, err := printing.NewTemplateEngine(cfg.Document.Locale)
		if err != nil {
			return err
		}
		renderer := printing.NewChromedpRenderer(printing.ChromedpConfig{
			ExecPath:       cfg.Document.ChromePath,
			RemoteURL:      cfg.Document.RemoteURL,
			NoSandbox:      cfg.Document.NoSandbox,
			DefaultTimeout: cfg.Document.Timeout,
		}, log)
		closers = append(closers, closer{"chrome", func(context.Context) error { return renderer.Close() }})
		generator = printing.NewInvoiceDocumentGenerator(engine, renderer, printing.Issuer{
			Name:  cfg.Document.IssuerName,
			Email: cfg.Document.IssuerEmail,
		}, log)
	}

	sender, err := notification.NewSender(cfg.Notification, redisClient, log)
	if err != nil {
		return err
	}

	// Side effects run on the bus after the ledger change is saved
	bus := event.NewInMemoryEventBus(log, event.BusConfig{
		Workers:   cfg.Event.Workers,
		QueueSize: cfg.Event.QueueSize,
	}, event.WithBusObserver(metrics))
	idempotencyConfig := shared.IdempotencyConfig{
		Enabled: cfg.Event.IdempotencyEnabled,
		TTL:     cfg.Event.IdempotencyTTL,
	}
	documents := invoiceapp.NewDocumentService(repo, generator, store, metrics, log)
	delivery := invoiceapp.NewDeliveryHandler(repo, sender, store, metrics, log)
	for name, h := range map[string]shared.EventHandler{"documents": documents, "delivery": delivery} {
		wrapped := event.NewIdempotentHandler(h, idempotency, log,
			event.WithIdempotencyConfig(idempotencyConfig),
			event.WithHandlerName(name),
			event.WithDeliveryObserver(metrics),
		)
		bus.Subscribe(wrapped, wrapped.EventTypes()...)
	}
	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	closers = append(closers, closer{"event bus", bus.Stop})

	opts := []invoiceapp.Option{
		invoiceapp.WithEventPublisher(bus),
		invoiceapp.WithMetrics(metrics),
		invoiceapp.WithLogger(log),
	}
	invoices := invoiceapp.NewInvoiceService(repo, opts...)
	recorder := invoiceapp.NewPaymentRecorder(repo, opts...)

	var jwtService *auth.JWTService
	if cfg.JWT.Enabled {
		jwtService = auth.NewJWTService(cfg.JWT)
	} else {
		log.Warn("JWT authentication disabled, tenants are taken from the " + middleware.TenantHeader + " header")
	}

	handlers := router.Handlers{
		Invoice: handler.NewInvoiceHandler(invoices, documents),
		Payment: handler.NewPaymentHandler(recorder, handler.PaymentHandlerConfig{
			ConflictRetries: cfg.Ledger.ConflictRetries,
			Idempotency:     idempotency,
			IdempotencyTTL:  cfg.Ledger.IdempotencyTTL,
		}),
		Health: handler.NewHealthHandler(cfg.App.Version, checks),
	}
	var httpMetrics middleware.HTTPMetricsRecorder
	if cfg.Metrics.Enabled {
		handlers.Metrics = gin.WrapH(metrics.Handler())
		httpMetrics = metrics
	}

	engine, err := router.NewEngine(router.Options{
		Config:      cfg,
		Logger:      log,
		Handlers:    handlers,
		JWTService:  jwtService,
		HTTPMetrics: httpMetrics,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited gracefully")
	return nil
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}

// migrateSchema brings the schema to the version compiled into the binary
func migrateSchema(dsn string, log *zap.Logger) error {
	m, err := migration.NewEmbedded(dsn, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()
	return m.Up()
}
