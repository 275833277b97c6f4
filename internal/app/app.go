package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/asksite/internal/config"
	"github.com/MrSnakeDoc/asksite/internal/gateway"
	"github.com/MrSnakeDoc/asksite/internal/httpserver"
	"github.com/MrSnakeDoc/asksite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/asksite/internal/logger"
	"github.com/MrSnakeDoc/asksite/internal/redis"
	"github.com/MrSnakeDoc/asksite/internal/registry"
	"github.com/MrSnakeDoc/asksite/internal/scheduler"
	"github.com/MrSnakeDoc/asksite/internal/session"
	"github.com/MrSnakeDoc/asksite/internal/sources/watchlist"
	redisstore "github.com/MrSnakeDoc/asksite/internal/store/redis"
	"github.com/MrSnakeDoc/asksite/internal/version"
)

type App struct {
	cfg       *config.Config
	logger    logger.Logger
	server    *httpserver.Server
	store     *redisstore.Store
	registry  *registry.Registry
	syncer    *scheduler.SiteSyncer
	reloader  *scheduler.SiteReloader
	monitor   *scheduler.CrawlMonitor
	watchSync *scheduler.WatchlistSyncer
	watcher   *watchlist.Watcher
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	gw := gateway.New(gateway.Options{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.RequestTimeout,
	}, loggerClient)

	// Redis is optional: without it there is no warm start and no history fallback.
	var store *redisstore.Store
	if cfg.RedisEnabled() {
		client, err := redis.Connect(context.Background(), redis.ConnectOptions{
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
			loggerClient.Warn("running without snapshot cache", logger.Error(err))
		} else {
			store = redisstore.NewStore(client, cfg.SnapshotTTL)
		}
	} else {
		loggerClient.Info("redis not configured, snapshot cache disabled")
	}

	// A nil *Store must not end up inside a non-nil interface.
	var snapshot registry.Snapshotter
	var historyCache session.HistoryCache
	if store != nil {
		snapshot = store
		historyCache = store
	}

	reg := registry.New(gw, snapshot, loggerClient)

	ctrl := session.New(gw, reg, historyCache, session.Options{
		UserID:         cfg.UserID,
		MinPagesToChat: cfg.MinPagesToChat,
	}, loggerClient)

	var syncer *scheduler.SiteSyncer
	if store != nil {
		syncer = scheduler.NewSiteSyncer(store, reg, loggerClient)
	}

	reloadTrigger := make(chan struct{}, 1)
	reloader := scheduler.NewSiteReloader(reg, loggerClient, cfg.ReloadInterval, reloadTrigger)
	monitor := scheduler.NewCrawlMonitor(reg, loggerClient, cfg.CrawlPollInterval, cfg.CrawlStaleAfter)

	a := &App{
		cfg:      cfg,
		logger:   loggerClient,
		store:    store,
		registry: reg,
		syncer:   syncer,
		reloader: reloader,
		monitor:  monitor,
	}

	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		AllowedHosts:   cfg.AllowedHosts,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		TrustProxy:     cfg.TrustProxy,
		AllowedOrigins: cfg.AllowedOrigins,
		RateBurst:      cfg.RateBurst,
		RatePerMin:     cfg.RatePerMin,
		RequestTimeout: cfg.RequestTimeout,
		MinPagesToChat: cfg.MinPagesToChat,
		Session:        ctrl,
		Registry:       reg,
		Gateway:        gw,
		Store:          store,
		ReloadTrigger:  reloadTrigger,
	}

	a.server = httpserver.New(cfg, loggerClient, d)
	return a
}

// startWatchlist reads the watch-list once and, when the file can be
// watched, again on every change.
func (a *App) startWatchlist(ctx context.Context) error {
	if a.cfg.WatchlistFile == "" {
		return nil
	}

	var changes <-chan struct{}
	w, err := watchlist.NewWatcher(a.cfg.WatchlistFile, 0, a.logger)
	if err == nil {
		changes, err = w.Watch(ctx)
		if err != nil {
			_ = w.Stop()
		} else {
			a.watcher = w
		}
	}
	if err != nil {
		a.logger.Warn("watch-list changes will not be picked up", logger.Error(err))
	}

	a.watchSync = scheduler.NewWatchlistSyncer(a.cfg.WatchlistFile, a.registry, a.logger, changes)
	return a.watchSync.Start(ctx)
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting asksite v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("asksite %s (commit=%s, built=%s, go=%s, backend=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion, a.cfg.BackendURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Warm start from the snapshot, then let the reloader replace it with live data.
	if a.syncer != nil {
		if err := a.syncer.Sync(ctx); err != nil {
			a.logger.Warn("failed to sync from redis on startup, will load from backend",
				logger.Error(err))
		}
	}

	if err := a.reloader.Start(ctx); err != nil {
		return fmt.Errorf("failed to start site reloader: %w", err)
	}
	a.logger.Info("site reloader started",
		logger.Duration("interval", a.cfg.ReloadInterval))

	if err := a.monitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start crawl monitor: %w", err)
	}
	a.logger.Info("crawl monitor started",
		logger.Duration("interval", a.cfg.CrawlPollInterval))

	if err := a.startWatchlist(ctx); err != nil {
		a.logger.Error("watch-list disabled", logger.Error(err))
	} else if a.watchSync != nil {
		a.logger.Info("watch-list syncer started",
			logger.String("file", a.cfg.WatchlistFile))
	}

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
		return err
	}

	a.reloader.Stop()
	a.monitor.Stop()
	if a.watchSync != nil {
		a.watchSync.Stop()
	}
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("failed to stop watch-list watcher", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ asksite stopped cleanly")
	return nil
}
