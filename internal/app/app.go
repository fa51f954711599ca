package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/charge/internal/config"
	"github.com/MrSnakeDoc/charge/internal/httpserver"
	"github.com/MrSnakeDoc/charge/internal/httpserver/deps"
	"github.com/MrSnakeDoc/charge/internal/keystone"
	"github.com/MrSnakeDoc/charge/internal/logger"
	"github.com/MrSnakeDoc/charge/internal/redis"
	"github.com/MrSnakeDoc/charge/internal/scheduler"
	"github.com/MrSnakeDoc/charge/internal/sources/catalog"
	redisstore "github.com/MrSnakeDoc/charge/internal/store/redis"
	"github.com/MrSnakeDoc/charge/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	syncer      *scheduler.EndpointSyncer
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// The service description is required before anything talks to Keystone
	desired, err := catalog.NewLoader(cfg.CatalogFile).Load()
	if err != nil {
		loggerClient.Errorf("Failed to load service description: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("service description loaded",
		logger.String("service", desired.Name),
		logger.String("type", desired.Type),
		logger.Int("regions", len(desired.Endpoints)))

	// Initialize Redis early - fail fast if unavailable
	redisClient, err := redis.New(context.Background(), redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}

	tokenStore := redisstore.NewTokenStore(redisClient)

	identity := keystone.NewClient(cfg.KeystoneURL, &http.Client{Timeout: cfg.KeystoneTimeout}, loggerClient)

	tokens := keystone.NewTokenProvider(identity, tokenStore, loggerClient, keystone.TokenProviderOptions{
		Credentials: keystone.PasswordCredentials{
			UserID:    cfg.KeystoneUserID,
			Password:  cfg.KeystonePassword,
			ProjectID: cfg.KeystoneProjectID,
		},
		CacheKey: cfg.TokenCacheKey,
	})

	reconciler := keystone.NewReconciler(tokens, identity, desired, loggerClient)

	// Create manual reconcile trigger channel
	reconcileTrigger := make(chan struct{}, 1)

	syncer := scheduler.NewEndpointSyncer(reconciler, loggerClient, cfg.ReconcileInterval, reconcileTrigger)

	d := deps.Deps{
		Logger:           loggerClient,
		StartTime:        time.Now(),
		Version:          version.Version,
		Commit:           version.Commit,
		BuildDate:        version.BuildDate,
		GoVersion:        version.GoVersion,
		TimeNow:          time.Now,
		AllowedCIDRS:     cfg.AllowedCIDRS,
		TrustProxy:       cfg.TrustProxy,
		TokenCache:       tokenStore,
		Tokens:           tokens,
		Desired:          reconciler.Desired(),
		Sync:             syncer,
		ReconcileTrigger: reconcileTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		syncer:      syncer,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Charge v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Charge %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Registers the endpoints once, then keeps them converged
	if err := a.syncer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start endpoint syncer: %w", err)
	}
	a.logger.Info("endpoint syncer started",
		logger.Duration("interval", a.cfg.ReconcileInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		a.syncer.Stop()
		return err
	}

	a.syncer.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ Charge stopped cleanly")
	_ = a.logger.Sync()
	return nil
}
