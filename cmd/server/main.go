package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/sellerdesk/api/handler"
	"github.com/fastygo/sellerdesk/internal/config"
	"github.com/fastygo/sellerdesk/internal/infrastructure/buffer"
	"github.com/fastygo/sellerdesk/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/sellerdesk/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/sellerdesk/internal/infrastructure/redis"
	"github.com/fastygo/sellerdesk/internal/marketplace"
	"github.com/fastygo/sellerdesk/internal/middleware"
	"github.com/fastygo/sellerdesk/internal/oauth"
	"github.com/fastygo/sellerdesk/internal/router"
	"github.com/fastygo/sellerdesk/internal/services"
	"github.com/fastygo/sellerdesk/internal/services/lifecycle"
	"github.com/fastygo/sellerdesk/pkg/httpcontext"
	"github.com/fastygo/sellerdesk/pkg/logger"
	"github.com/fastygo/sellerdesk/repository"
	"github.com/fastygo/sellerdesk/repository/bolt"
	"github.com/fastygo/sellerdesk/repository/postgres"
	redisRepo "github.com/fastygo/sellerdesk/repository/redis"
	adminUC "github.com/fastygo/sellerdesk/usecase/admin"
	"github.com/fastygo/sellerdesk/usecase/audit"
	authUC "github.com/fastygo/sellerdesk/usecase/auth"
	"github.com/fastygo/sellerdesk/usecase/catalog"
	settingsUC "github.com/fastygo/sellerdesk/usecase/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Service:  cfg.AppName,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx, stop := manager.SignalContext(context.Background())
	defer stop()

	store, err := openStore(appCtx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("store unavailable", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	manager.RegisterCloser("store", store)

	redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis, zapLogger.Named("redis"))
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.RegisterCloser("redis", redisClient)

	if err := ensureDir(cfg.Buffer.Path); err != nil {
		zapLogger.Fatal("buffer directory unavailable", zap.Error(err))
	}
	bufferStore, err := buffer.Open(cfg.Buffer.Path, "buffer")
	if err != nil {
		zapLogger.Fatal("failed to open buffer store", zap.Error(err))
	}
	manager.RegisterCloser("buffer", bufferStore)

	mon := monitor.New(store, redisClient, bufferStore, 10*time.Second, zapLogger.Named("monitor"))
	mon.Check(appCtx)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	bufferProcessor := services.NewBufferProcessor(
		bufferStore,
		mon,
		store.Activity(),
		store.Cache(),
		zapLogger.Named("buffer"),
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  50,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		},
	)
	bufferProcessor.Start()
	manager.Register("buffer_processor", func(ctx context.Context) error {
		bufferProcessor.Stop(ctx)
		return nil
	})
	bufferBridge := services.NewBufferBridge(bufferProcessor)

	sessionRepo := redisRepo.NewSessionRepository(redisClient, cfg.JWT.SessionTTL)
	stateRepo := redisRepo.NewOAuthStateRepository(redisClient)
	recorder := audit.NewRecorder(store.Activity(), bufferBridge, zapLogger.Named("audit"))

	authUseCase := authUC.New(store.Users(), sessionRepo, recorder, authUC.Config{
		OwnerDiscordID: cfg.Discord.OwnerID,
		SessionTTL:     cfg.JWT.SessionTTL,
	}, zapLogger.Named("auth"))
	tokens := authUC.NewTokens(cfg.JWT.Secret, cfg.JWT.Issuer)

	provider := marketplace.NewSettingsProvider(store.Settings(), cfg.Marketplace.Timeout)
	coordinator := catalog.New(provider, store.Cache(), bufferBridge, zapLogger)
	adminUseCase := adminUC.New(store.Users(), recorder, authUseCase, zapLogger.Named("admin"))
	settingsUseCase := settingsUC.New(store.Settings(), provider, authUseCase, cfg.Marketplace.BaseURL, zapLogger.Named("settings"))

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth: apiHandler.NewAuthHandler(authUseCase, oauth.NewDiscord(cfg.Discord, stateRepo), tokens,
			cfg.FrontendURL, cfg.HTTP.SecureCookie, ctxAdapter, zapLogger),
		Admin:    apiHandler.NewAdminHandler(adminUseCase, ctxAdapter, zapLogger),
		Catalog:  apiHandler.NewCatalogHandler(coordinator, ctxAdapter, zapLogger),
		Settings: apiHandler.NewSettingsHandler(settingsUseCase, coordinator, ctxAdapter, zapLogger),
		Health:   apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}
	authMiddleware := middleware.NewAuth(authUseCase, tokens, cfg.Context.RequestTimeout, zapLogger.Named("middleware"))

	server := &fasthttp.Server{
		Handler:      router.New(handlers, authMiddleware),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("store_backend", cfg.Store.Backend))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

// openStore opens the configured persistent backend, running migrations first for Postgres.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendBolt:
		if err := ensureDir(cfg.Store.BoltPath); err != nil {
			return nil, err
		}
		st, err := bolt.Open(cfg.Store.BoltPath)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		if cfg.Migrations.Enabled {
			if err := pgInfra.RunMigrations(cfg, log); err != nil {
				return nil, err
			}
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		return postgres.NewStore(pool), nil
	}
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
