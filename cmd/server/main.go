package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	stocktakingapp "github.com/wms/stocktaking/internal/application/stocktaking"
	"github.com/wms/stocktaking/internal/infrastructure/auth"
	"github.com/wms/stocktaking/internal/infrastructure/cache"
	"github.com/wms/stocktaking/internal/infrastructure/config"
	"github.com/wms/stocktaking/internal/infrastructure/event"
	"github.com/wms/stocktaking/internal/infrastructure/idgen"
	"github.com/wms/stocktaking/internal/infrastructure/logger"
	"github.com/wms/stocktaking/internal/infrastructure/migration"
	"github.com/wms/stocktaking/internal/infrastructure/notify"
	"github.com/wms/stocktaking/internal/infrastructure/persistence"
	"github.com/wms/stocktaking/internal/infrastructure/report"
	"github.com/wms/stocktaking/internal/infrastructure/storage"
	"github.com/wms/stocktaking/internal/infrastructure/telemetry"
	"github.com/wms/stocktaking/internal/interfaces/http/handler"
	"github.com/wms/stocktaking/internal/interfaces/http/middleware"
	"github.com/wms/stocktaking/internal/interfaces/http/router"
	"github.com/wms/stocktaking/internal/interfaces/ws"
	"go.uber.org/zap"
)

// version is stamped at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting stocktaking service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Database
	if cfg.Database.AutoMigrate {
		if err := runMigrations(cfg, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), 200*time.Millisecond)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:    cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL: cfg.Telemetry.DBLogFullSQL,
		DBName:     cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Redis is optional; every consumer has an in-process fallback
	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer client.Close()
		redisClient = client
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	idempotency := cache.NewIdempotencyStore(redisClient, log)
	defer idempotency.Close()

	var blacklist auth.TokenBlacklist = auth.NewInMemoryTokenBlacklist()
	if redisClient != nil {
		blacklist = auth.NewRedisTokenBlacklist(redisClient)
	}
	jwtService := auth.NewJWTService(cfg.JWT)

	// Notifications
	hub := ws.NewHub(log)
	defer hub.Close()

	notifiers := notify.Fanout{notify.NewLogNotifier(log)}
	switch {
	case redisClient != nil && cfg.Notify.RedisChannel != "":
		redisNotifier := notify.NewRedisNotifier(redisClient, cfg.Notify.RedisChannel, log)
		notifiers = append(notifiers, redisNotifier)
		if cfg.Notify.WebSocket {
			// every instance relays the shared channel into its own sockets
			go func() {
				if err := redisNotifier.Relay(ctx, hub); err != nil {
					log.Error("Notification relay stopped", zap.Error(err))
				}
			}()
		}
	case cfg.Notify.WebSocket:
		notifiers = append(notifiers, hub)
	}

	eventBus := event.NewInMemoryEventBus(log, event.WithAsyncDispatch())
	notificationHandler := event.NewIdempotentHandler(
		stocktakingapp.NewNotificationHandler(notifiers),
		idempotency,
		cfg.Stocktaking.IdempotencyTTL,
		log,
	)
	eventBus.Subscribe(notificationHandler)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()
	log.Info("Event handlers registered", zap.Strings("notification_events", notificationHandler.EventTypes()))

	// Report storage
	var objects stocktakingapp.ObjectStorage
	var files *handler.FileHandler
	if cfg.Storage.Enabled {
		s3Storage, err := storage.NewS3ObjectStorage(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize object storage", zap.Error(err))
		}
		if err := s3Storage.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to prepare report bucket", zap.Error(err))
		}
		objects = s3Storage
		log.Info("Reports stored in S3", zap.String("bucket", s3Storage.Bucket()))
	} else {
		memory := storage.NewMemoryObjectStorage("http://localhost:" + cfg.App.Port + "/files")
		objects = memory
		files = handler.NewFileHandler(memory)
		log.Warn("Object storage disabled, reports are kept in memory")
	}

	codes, err := idgen.NewSnowflakeCodes(cfg.App.NodeID)
	if err != nil {
		log.Fatal("Failed to initialize sheet code generator", zap.Error(err))
	}

	// Repositories and services
	sheetRepo := persistence.NewGormSheetRepository(db.DB)
	locationRepo := persistence.NewGormLocationRepository(db.DB)
	directory := persistence.NewGormWarehouseDirectory(db.DB)

	sheetService := stocktakingapp.NewSheetService(sheetRepo, locationRepo, directory, directory, codes, eventBus, log)
	assignmentService := stocktakingapp.NewAssignmentService(sheetRepo, directory, directory, sheetService, eventBus, log)
	scanService := stocktakingapp.NewScanService(sheetRepo, locationRepo, directory, eventBus, log,
		stocktakingapp.WithConfirmConcurrency(cfg.Stocktaking.ConfirmConcurrency))
	rejectionService := stocktakingapp.NewRejectionService(sheetRepo, locationRepo, eventBus, log)
	reportService := stocktakingapp.NewReportService(sheetRepo, locationRepo,
		report.NewXLSXWriter(time.Local), objects, cfg.Stocktaking.ReportURLExpiry, log)

	// HTTP
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitRequests > 0 {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer limiter.Stop()
	}

	scanSocket := ws.NewHandler(hub, scanService, ws.Config{
		Debounce:       cfg.Stocktaking.ScanDebounce,
		AllowedOrigins: cfg.HTTP.CORSAllowOrigins,
	}, log)

	engine, err := router.NewEngine(router.EngineConfig{
		Logger: log,
		JWT: middleware.JWTMiddlewareConfig{
			JWTService:     jwtService,
			TokenBlacklist: blacklist,
			Logger:         log,
		},
		CORS: middleware.CORSConfig{
			AllowOrigins: cfg.HTTP.CORSAllowOrigins,
			AllowMethods: cfg.HTTP.CORSAllowMethods,
			AllowHeaders: cfg.HTTP.CORSAllowHeaders,
			MaxAge:       12 * time.Hour,
		},
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		RateLimiter:    limiter,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, router.Handlers{
		Health:     handler.NewHealthHandler(db, version),
		Files:      files,
		ScanSocket: scanSocket.Serve,
		Stocktaking: router.StocktakingHandlers{
			Sheets:      handler.NewSheetHandler(sheetService),
			Assignments: handler.NewAssignmentHandler(assignmentService),
			Scans:       handler.NewScanHandler(scanService),
			Rejections:  handler.NewRejectionHandler(rejectionService),
			Reports:     handler.NewReportHandler(reportService),
		},
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, done := context.WithTimeout(context.Background(), 30*time.Second)
	defer done()

	// hijacked websocket connections are not tracked by Shutdown
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	cancel()

	log.Info("Server exited gracefully")
}

// runMigrations applies pending migrations on a dedicated connection, since
// closing the migrator closes the database it was given.
func runMigrations(cfg *config.Config, log *zap.Logger) error {
	sqlDB, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, cfg.Database.MigrationsPath, log)
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	defer m.Close()
	return m.Up()
}
