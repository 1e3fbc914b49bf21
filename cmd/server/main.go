package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	loyaltyapp "github.com/erp/backoffice/internal/application/loyalty"
	orgapp "github.com/erp/backoffice/internal/application/organization"
	"github.com/erp/backoffice/internal/infrastructure/cache"
	"github.com/erp/backoffice/internal/infrastructure/config"
	"github.com/erp/backoffice/internal/infrastructure/event"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/erp/backoffice/internal/infrastructure/persistence"
	"github.com/erp/backoffice/internal/infrastructure/search"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"github.com/erp/backoffice/internal/interfaces/http/handler"
	"github.com/erp/backoffice/internal/interfaces/http/middleware"
	"github.com/erp/backoffice/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	baseLog, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(rootCtx, cfg.Telemetry, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log := telemetry.BridgeLogger(baseLog, providers.Logs)
	defer func() { _ = log.Sync() }()

	log.Info("Starting back-office API",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Database with zap-backed GORM logging and query tracing
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Telemetry.DBTraceEnabled {
		plugin, err := telemetry.NewDBTracingPlugin(
			telemetry.DBTracingConfigFrom(cfg.Telemetry),
			providers.Meter.Meter("backoffice/gorm"),
			log,
		)
		if err != nil {
			log.Fatal("Failed to create database tracing plugin", zap.Error(err))
		}
		if err := plugin.Register(db.DB); err != nil {
			log.Fatal("Failed to register database tracing plugin", zap.Error(err))
		}
	}
	log.Info("Database connected successfully")

	// Cache: Redis, optionally fronted by an in-process layer
	appCache, closeCache := newCache(rootCtx, cfg, log)
	defer closeCache()

	// Search index
	index := search.NewCustomerIndex(cfg.Search, log)
	if err := index.EnsureSettings(rootCtx); err != nil {
		// The store fallback keeps lookups working until the index recovers.
		log.Warn("Search index settings not applied", zap.Error(err))
	}

	// Repositories
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	ledgerRepo := persistence.NewGormPointsLedgerRepository(db.DB)
	orgRepo := persistence.NewGormOrganizationRepository(db.DB)

	// Event bus keeps the index in step with ledger writes
	bus := event.NewInMemoryEventBus(log)
	indexSync := loyaltyapp.NewIndexSyncHandler(customerRepo, index)
	bus.Subscribe(indexSync)
	if err := bus.Start(rootCtx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	loyaltyMetrics, err := telemetry.NewLoyaltyMetrics(providers.Meter.Meter("backoffice/loyalty"))
	if err != nil {
		log.Fatal("Failed to create loyalty metrics", zap.Error(err))
	}

	// Application services
	invalidator := cache.NewInvalidator(appCache, log)
	lookupService := loyaltyapp.NewCustomerLookupService(loyaltyapp.LookupServiceConfig{
		Customers:        customerRepo,
		Ledger:           ledgerRepo,
		Index:            index,
		Cache:            cache.NewReadThrough(appCache, log),
		Invalidator:      invalidator,
		EventPublisher:   bus,
		Metrics:          loyaltyMetrics,
		Logger:           log,
		MinQueryLength:   cfg.Loyalty.MinSearchQuery,
		SearchLimit:      cfg.Search.ResultLimit,
		SearchTTL:        cfg.Cache.SearchTTL,
		SnapshotTTL:      cfg.Cache.SnapshotTTL,
		ReindexBatchSize: cfg.Loyalty.ReindexBatchSize,
	})
	ledgerService := loyaltyapp.NewLedgerService(loyaltyapp.LedgerServiceConfig{
		Ledger:             ledgerRepo,
		Customers:          customerRepo,
		Invalidator:        invalidator,
		EventPublisher:     bus,
		Metrics:            loyaltyMetrics,
		Logger:             log,
		MaxHistoryPageSize: cfg.Loyalty.MaxHistoryPage,
	})
	discountService := loyaltyapp.NewDiscountService(lookupService, cfg.Loyalty.PointsPerKES)
	resolver := orgapp.NewResolver(orgRepo,
		orgapp.NewSlugCache(cfg.Organization.SlugCacheCapacity, cfg.Organization.SlugCacheTTL), log)

	// Handlers
	loyaltyHandler := handler.NewLoyaltyHandler(lookupService, ledgerService, discountService)
	cacheHandler := handler.NewCacheHandler(invalidator)
	healthHandler := handler.NewHealthHandler(cfg.App.Name, version).
		AddCheck("database", func(context.Context) error { return db.Ping() })
	if pinger, ok := appCache.(cache.Pinger); ok {
		healthHandler.AddCheck("cache", pinger.Ping)
	}

	// Gin engine
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies", zap.Error(err))
	}

	// Middleware chain (order matters):
	// 1. RequestID - Generate/propagate request ID
	// 2. Logger - Log requests with a request-scoped logger
	// 3. Recovery - Catch panics
	// 4. Tracing - Server span per request
	// 5. CORS, security headers and body limit
	// 6. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORS(corsConfig))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer rateLimiter.Stop()
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	r := router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithAPIMiddleware(
			middleware.OrganizationContext(resolver),
			middleware.SpanAttributes(),
		),
	)
	r.RegisterPublic(healthHandler)
	r.Register(loyaltyHandler, cacheHandler)
	r.Setup()
	log.Debug("Routes registered", zap.Strings("routes", r.Routes()))

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

	<-rootCtx.Done()
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := bus.Stop(ctx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	if err := providers.Shutdown(ctx); err != nil {
		log.Error("Error shutting down telemetry", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

// newCache builds the shared cache. Redis backs it when enabled; with
// L1Enabled an in-process layer fronts Redis and peers' evictions arrive
// over pub/sub. Without Redis the process falls back to memory only.
func newCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (cache.Cache, func()) {
	if !cfg.Redis.Enabled {
		log.Warn("Redis disabled, using an in-process cache")
		mem := cache.NewMemoryCache()
		return mem, func() { _ = mem.Close() }
	}

	client, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	l2 := cache.NewRedisCacheWithClient(client, cache.WithRedisLogger(log))
	if !cfg.Cache.L1Enabled {
		return l2, func() { _ = client.Close() }
	}

	l1 := cache.NewMemoryCache()
	broadcaster := cache.NewRedisBroadcaster(client,
		cache.WithChannel(cfg.Cache.PubSubChannel),
		cache.WithOrigin(uuid.NewString()),
		cache.WithBroadcastLogger(log),
	)
	tiered := cache.NewTieredCache(l1, l2,
		cache.WithL1TTL(cfg.Cache.L1TTL),
		cache.WithBroadcaster(broadcaster),
		cache.WithTieredLogger(log),
	)
	go func() {
		if err := tiered.SyncEvictions(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("Cache eviction sync stopped", zap.Error(err))
		}
	}()
	return tiered, func() {
		_ = broadcaster.Close()
		_ = l1.Close()
		_ = client.Close()
	}
}
