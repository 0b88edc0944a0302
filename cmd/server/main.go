package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/innunfold/hall-feeds/internal/config"
	"github.com/innunfold/hall-feeds/internal/domain"
	"github.com/innunfold/hall-feeds/internal/httpserver"
	"github.com/innunfold/hall-feeds/internal/postgres"
	"github.com/innunfold/hall-feeds/internal/rediscache"
	"github.com/innunfold/hall-feeds/internal/stream"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up repository (implements the post, hall and cursor ports)
	repo, err := postgres.NewRepository(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("connected to database")

	feedService := domain.NewFeedService(repo, repo, repo, logger)

	if cfg.RedisAddr != "" {
		cache, err := rediscache.New(cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("create feed cache: %w", err)
		}
		defer cache.Close()
		feedService = feedService.WithCache(cache)
		logger.Info("feed cache enabled", "addr", cfg.RedisAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start the chain stream subscriber in the background
	subscriber := stream.NewSubscriber(cfg.StreamURL, feedService, logger)
	go func() {
		if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("stream subscriber exited with error", "error", err)
		}
	}()

	// Start the periodic archive-admission sweep
	go feedService.StartSweepJob(ctx, cfg.SweepInterval)

	// Start the HTTP server
	server := httpserver.NewServer(cfg, feedService, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port, "sweep_interval", cfg.SweepInterval)

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
