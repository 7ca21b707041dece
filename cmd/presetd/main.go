package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"device-layout/config"
	"device-layout/internal/presetserver"
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := presetserver.Open(cfg.Backend.Driver, cfg.Backend.DSN)
	if err != nil {
		logger.Error("opening preset database", "error", err, "driver", cfg.Backend.Driver)
		os.Exit(1)
	}
	defer db.Close()

	repo := presetserver.NewRepository(db, cfg.Backend.Driver)
	if err := repo.Migrate(ctx); err != nil {
		logger.Error("migrating preset database", "error", err)
		os.Exit(1)
	}

	server := presetserver.NewServer(repo, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(cfg.Backend.Addr)
	}()

	logger.Info("starting preset service", "addr", cfg.Backend.Addr, "driver", cfg.Backend.Driver)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("http server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown", "error", err)
		}
	}
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
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
