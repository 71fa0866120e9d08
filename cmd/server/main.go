package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"shortlink/internal/analytics"
	"shortlink/internal/bot"
	"shortlink/internal/cache"
	"shortlink/internal/clicks"
	"shortlink/internal/config"
	"shortlink/internal/database"
	"shortlink/internal/service"
	"shortlink/internal/shortcode"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		return
	}
	slog.Info("Starting shortlink service...", "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg.PostgresURL)
	if err != nil {
		slog.Error("Could not connect to Postgres", "error", err)
		return
	}
	defer db.Close()

	cacheDB, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		slog.Error("Could not connect to Redis", "error", err)
		return
	}
	defer cacheDB.Close()

	events, err := database.ConnectClickHouse(
		cfg.ClickHouseAddr, cfg.ClickHouseUser, cfg.ClickHousePassword,
		cfg.ClickHouseDB, cfg.GeoIPPath)
	if err != nil {
		slog.Error("Could not connect to ClickHouse", "error", err)
		return
	}
	defer events.Close()

	recorder := clicks.NewRecorder(events, db, clicks.Options{
		BufferSize:    cfg.BufferSize,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		FlushRetries:  cfg.FlushRetries,
		DropOldest:    cfg.DropOldest,
		OverflowWait:  cfg.OverflowWait,
	})
	defer recorder.Close()

	generator := shortcode.NewGenerator(cfg.CodeLength)
	shortener := service.NewShortener(db, cacheDB, generator, cfg.MaxAttempts, cfg.CacheTTL)
	resolver := service.NewResolver(db, cacheDB, recorder, cfg.CacheTTL)
	aggregator := analytics.NewAggregator(events, db)

	botErr := make(chan error, 1)
	if cfg.TelegramToken != "" {
		tgBot, err := bot.NewTelegramBot(cfg.TelegramToken, cfg.BaseURL, shortener, aggregator)
		if err != nil {
			slog.Error("Could not initialize bot", "error", err)
			return
		}
		go func() { botErr <- tgBot.Start(ctx) }()
	}

	server := service.NewServer(cfg.Port, cfg.BaseURL, resolver, shortener, aggregator, db)
	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start(ctx) }()

	slog.Info("Service is up and running!")

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			slog.Error("Server stopped with error", "error", err)
			stop()
		}
	case err := <-botErr:
		if err != nil {
			slog.Error("Bot stopped with error", "error", err)
			stop()
		}
	}

	slog.Info("Shutting down gracefully...")
}
