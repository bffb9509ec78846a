package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/glasscast/glasscast/internal/app"
	"github.com/glasscast/glasscast/internal/auth"
	"github.com/glasscast/glasscast/internal/bus"
	"github.com/glasscast/glasscast/internal/cache"
	"github.com/glasscast/glasscast/internal/config"
	"github.com/glasscast/glasscast/internal/httpapi"
	"github.com/glasscast/glasscast/internal/lifecycle"
	"github.com/glasscast/glasscast/internal/location"
	"github.com/glasscast/glasscast/internal/observability"
	"github.com/glasscast/glasscast/internal/search"
	"github.com/glasscast/glasscast/internal/store"
	"github.com/glasscast/glasscast/internal/weather"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	healthConfig := &httpapi.HealthConfig{StartTime: time.Now()}

	var cacheSvc cache.Cache
	var cacheCloser interface{ Close() error }
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		cacheSvc = mc
		cacheCloser = mc
		healthConfig.CachePing = mc.Ping
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	case "redis":
		rc, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("redis cache", zap.Error(err))
		}
		cacheSvc = rc
		cacheCloser = rc
		healthConfig.CachePing = rc.Ping
		logger.Info("cache backend: redis", zap.String("addr", cfg.RedisAddr))
	default:
		cacheSvc = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.StorePath), 0o755); err != nil {
		logger.Fatal("store directory", zap.Error(err))
	}
	kv, err := store.Open(cfg.StorePath)
	if err != nil {
		logger.Fatal("local state store", zap.Error(err))
	}
	healthConfig.StorePing = kv.Ping

	weatherClient, err := weather.New(
		cfg.WeatherAPIKey,
		cfg.WeatherAPIURL,
		cfg.WeatherAPITimeout,
		cacheSvc,
		cfg.CacheTTL,
		cfg.CacheBackend,
		logger.Named("weather"),
	)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	geoClient, err := search.NewGeoClient(cfg.WeatherAPIKey, cfg.GeocodingURL, cfg.GeocodingTimeout)
	if err != nil {
		logger.Fatal("geocoding client", zap.Error(err))
	}

	authGateway, err := auth.New(cfg.AuthURL, cfg.AuthAnonKey, cfg.AuthTimeout, logger.Named("auth"))
	if err != nil {
		logger.Fatal("auth gateway", zap.Error(err))
	}

	events := bus.New()
	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	searchSvc := search.NewService(geoClient, weatherClient, logger.Named("search"))
	typeahead := search.NewDebouncer(searchSvc, cfg.DebounceDelay, logger.Named("typeahead"))
	recents := search.NewRecentList(runCtx, kv, logger.Named("recent"))

	settings := app.NewSettings(runCtx, kv, events, logger.Named("settings"))
	controller := app.NewController(weatherClient, events, settings, logger.Named("controller"))
	coordinator := app.NewCoordinator(authGateway, recents, events, app.CoordinatorConfig{
		SettleDelay: cfg.SettleDelay,
		RetryDelay:  cfg.RetryDelay,
	}, logger.Named("coordinator"))

	go coordinator.Run(runCtx)
	go controller.Run(runCtx)

	// Show something before the first search: resolve a starting position
	// (fallback London) and kick off the initial fetch.
	resolver := location.NewResolver(nil, cfg.LocationTimeout, logger.Named("location"))
	controller.Refresh(resolver.Resolve(runCtx))

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	handler := httpapi.NewHandler(
		controller,
		weatherClient,
		searchSvc,
		typeahead,
		recents,
		authGateway,
		coordinator,
		settings,
		events,
		healthConfig,
		logger,
	)
	router := handler.Router(limiter, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	stopRun()

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if cacheCloser != nil {
		if err := cacheCloser.Close(); err != nil {
			logger.Error("cache close", zap.Error(err))
		}
	}
	if err := kv.Close(); err != nil {
		logger.Error("store close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
