package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"device-layout/config"
	"device-layout/internal/application"
	"device-layout/internal/infra"
	"device-layout/internal/infra/cache"
	"device-layout/internal/infra/httpapi"
	"device-layout/internal/infra/metrics"
	"device-layout/internal/infra/presetapi"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	presetCache, closeCache := createCache(ctx, cfg.Cache, logger)
	defer closeCache()

	retry := infra.DefaultRetryConfig()
	retry.MaxAttempts = cfg.API.RetryAttempts
	client := presetapi.NewClient(cfg.API.BaseURL,
		presetapi.WithTimeout(duration(cfg.API.Timeout, 10*time.Second, "api.timeout", logger)),
		presetapi.WithRetry(retry),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	sessions := application.NewSessionManager(
		client,
		client,
		presetCache,
		m,
		m,
		application.SessionConfig{
			Icon:          application.IconSize{Width: cfg.Canvas.IconWidth, Height: cfg.Canvas.IconHeight},
			ToastDuration: duration(cfg.Canvas.ToastDuration, application.DefaultToastDuration, "canvas.toast_duration", logger),
		},
		logger,
	)
	defer sessions.CloseAll()

	janitorInterval := duration(cfg.Server.JanitorInterval, time.Minute, "server.janitor_interval", logger)
	sessionTTL := duration(cfg.Server.SessionTTL, 30*time.Minute, "server.session_ttl", logger)
	if janitorInterval > 0 {
		sessions.StartJanitor(ctx, janitorInterval, sessionTTL)
	}

	limiter := httpapi.NewRateLimiter(cfg.Server.RateLimit, duration(cfg.Server.RateWindow, time.Minute, "server.rate_window", logger))
	go pruneLimiter(ctx, limiter, janitorInterval)

	serverCfg := httpapi.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		Limiter:      limiter,
	}
	if *cfg.Server.MetricsEnabled {
		serverCfg.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	server := httpapi.NewServer(sessions, serverCfg, logger)

	logger.Info("starting device layout service",
		"api", cfg.API.BaseURL,
		"cache", application.CacheName(presetCache),
		"addr", cfg.Server.Addr,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("http server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("http server shutdown", "error", err)
		}
	}
}

func createCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (application.PresetCache, func()) {
	noop := func() {}

	switch cfg.Backend {
	case "file":
		return cache.NewFileCache(cfg.Path), noop
	case "sqlite":
		db, err := cache.OpenSQLite(cfg.Path)
		if err == nil {
			var c *cache.SQLiteCache
			if c, err = cache.NewSQLiteCache(ctx, db, cfg.Key); err == nil {
				return c, func() { db.Close() }
			}
			db.Close()
		}
		logger.Warn("sqlite cache unavailable, using file cache", "error", err, "path", cfg.Path, "fallback", cfg.FallbackPath)
		return cache.NewFileCache(cfg.FallbackPath), noop
	case "redis":
		client, err := cache.NewRedisConnection(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("redis cache unavailable, using file cache", "error", err, "addr", cfg.RedisAddr, "fallback", cfg.FallbackPath)
			return cache.NewFileCache(cfg.FallbackPath), noop
		}
		return cache.NewRedisCache(client, cfg.Key), func() { client.Close() }
	case "none":
		return application.NoopCache{}, noop
	default:
		logger.Warn("unknown cache backend, using file", "backend", cfg.Backend)
		return cache.NewFileCache(cfg.Path), noop
	}
}

func pruneLimiter(ctx context.Context, limiter *httpapi.RateLimiter, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Prune()
		}
	}
}

func duration(value string, fallback time.Duration, name string, logger *slog.Logger) time.Duration {
	d, err := config.Duration(value, fallback)
	if err != nil {
		logger.Warn("invalid duration, using default", "setting", name, "error", err, "value", value)
	}
	return d
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
