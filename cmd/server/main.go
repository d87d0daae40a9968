package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ulule/limiter/v3"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/mamadbah2/materialbot/internal/cache"
	"github.com/mamadbah2/materialbot/internal/config"
	"github.com/mamadbah2/materialbot/internal/repository/mongodb"
	redisrepo "github.com/mamadbah2/materialbot/internal/repository/redis"
	"github.com/mamadbah2/materialbot/internal/repository/sheets"
	"github.com/mamadbah2/materialbot/internal/scheduler"
	"github.com/mamadbah2/materialbot/internal/server/handlers"
	"github.com/mamadbah2/materialbot/internal/server/router"
	"github.com/mamadbah2/materialbot/internal/service/dialogue"
	"github.com/mamadbah2/materialbot/internal/service/identity"
	"github.com/mamadbah2/materialbot/internal/service/ledger"
	reportingsvc "github.com/mamadbah2/materialbot/internal/service/reporting"
	"github.com/mamadbah2/materialbot/internal/service/session"
	whatsappsvc "github.com/mamadbah2/materialbot/internal/service/whatsapp"
	whatsappclient "github.com/mamadbah2/materialbot/pkg/clients/whatsapp"
	"github.com/mamadbah2/materialbot/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
	if err != nil {
		baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
	}

	catalog := config.NewCatalog()
	if cfg.Messages.File != "" {
		if err := catalog.LoadFile(cfg.Messages.File); err != nil {
			baseLogger.Fatal("failed to load messages file", zap.String("file", cfg.Messages.File), zap.Error(err))
		}
	}
	if n, err := catalog.LoadSheet(ctx, sheetsRepo, cfg.Sheets.ConfigSheet); err != nil {
		baseLogger.Warn("config sheet unavailable, using defaults", zap.String("sheet", cfg.Sheets.ConfigSheet), zap.Error(err))
	} else {
		baseLogger.Info("config sheet loaded", zap.Int("entries", n))
	}

	loc, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		baseLogger.Warn("unknown timezone, using UTC", zap.String("timezone", cfg.Reporting.Timezone), zap.Error(err))
		loc = time.UTC
	}

	rate, err := limiter.NewRateFromFormatted(cfg.Server.RateLimit)
	if err != nil {
		baseLogger.Fatal("invalid webhook rate limit", zap.String("rate", cfg.Server.RateLimit), zap.Error(err))
	}

	var (
		sharedCache  cache.Cache
		sessionStore session.Store
		limiterStore limiter.Store
		managerOpts  = []session.Option{session.WithLogger(baseLogger.Named("svc.session"))}
	)
	if cfg.Redis.Addr != "" {
		redisClient, err := redisrepo.NewClient(ctx, cfg.Redis)
		if err != nil {
			baseLogger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				baseLogger.Error("failed to close redis connection", zap.Error(err))
			}
		}()

		sharedCache = redisrepo.NewCache(redisClient, cfg.Redis.Prefix)
		sessionStore = redisrepo.NewSessionStore(redisClient, redisrepo.WithPrefix(cfg.Redis.Prefix))
		managerOpts = append(managerOpts, session.WithLocker(redisrepo.NewLocker(redisClient, cfg.Redis.Prefix)))
		limiterStore, err = redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{
			Prefix: cfg.Redis.Prefix + "ratelimit",
		})
		if err != nil {
			baseLogger.Fatal("failed to init rate limit store", zap.Error(err))
		}
		baseLogger.Info("redis backend enabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		sharedCache = cache.NewMemory()
		sessionStore = session.NewMemoryStore()
		limiterStore = memorystore.NewStore()
		baseLogger.Warn("redis not configured, sessions and cache kept in process")
	}

	ledgerSvc := ledger.NewService(sheetsRepo, sharedCache, ledger.OptionsFromCatalog(catalog, loc), baseLogger.Named("svc.ledger"))
	resolver := identity.NewResolver(sheetsRepo, sharedCache, identity.OptionsFromCatalog(catalog), baseLogger.Named("svc.identity"))
	sessions := session.NewManager(sessionStore, managerOpts...)
	dialogueEngine := dialogue.NewEngine(ledgerSvc, sessions, resolver, catalog, baseLogger.Named("svc.dialogue"))

	whatsClient := whatsappclient.NewClient(cfg.WhatsApp)
	messagingSvc := whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, whatsClient, dialogueEngine, sharedCache, catalog, baseLogger.Named("svc.whatsapp"))

	// Interfaces stay nil when the archive is disabled.
	var (
		snapshotStore  reportingsvc.SnapshotStore
		snapshotReader handlers.SnapshotReader
	)
	if cfg.MongoDB.URI != "" {
		mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		snapshotStore = mongoRepo
		snapshotReader = mongoRepo
	} else {
		baseLogger.Warn("mongodb not configured, snapshot archive disabled")
	}

	reportingSvc := reportingsvc.NewService(ledgerSvc, snapshotStore, catalog, cfg.Reporting.LowStockThreshold, loc, baseLogger.Named("svc.reporting"))

	webhookHandler := handlers.NewWebhookHandler(messagingSvc, baseLogger.Named("handlers.whatsapp"))
	inventoryHandler := handlers.NewInventoryHandler(reportingSvc, snapshotReader, cfg.Server.ExportToken, baseLogger.Named("handlers.inventory"))
	engine := router.New(webhookHandler, inventoryHandler, limiter.New(limiterStore, rate), baseLogger.Named("router"))

	sched := scheduler.NewScheduler(*cfg, reportingSvc, messagingSvc, baseLogger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
