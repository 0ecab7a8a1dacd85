package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillm/ads-engine/internal/adplatform"
	"github.com/kirillm/ads-engine/internal/api"
	"github.com/kirillm/ads-engine/internal/config"
	"github.com/kirillm/ads-engine/internal/orchestrator"
	"github.com/kirillm/ads-engine/internal/storage"
	"github.com/kirillm/ads-engine/internal/strategy"
	"github.com/kirillm/ads-engine/internal/telegram"
	"github.com/kirillm/ads-engine/pkg/utils"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		utils.LogError("Failed to load config: " + err.Error())
		return 1
	}

	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info("🚀 Starting Ads Orchestration Engine...")

	db, err := storage.NewPostgresStorage(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		logger.Error("Failed to connect to database: %v", err)
		return 1
	}
	defer db.Close()
	logger.Info("✅ Database connected")

	// WARN и ERROR дублируются в таблицу logs
	logger.SetSink(func(level, message string) {
		if err := db.SaveLog(level, message, ""); err != nil {
			// Сюда нельзя логировать через logger: получим рекурсию
			utils.LogDebug("log sink write failed: " + err.Error())
		}
	})

	modes, err := strategy.LoadModes(cfg.Engine.ModesPath)
	if err != nil {
		logger.Error("Failed to load mode profiles: %v", err)
		return 1
	}
	logger.Info("✅ Mode profiles loaded")

	platform := adplatform.NewClient(adplatform.Options{
		BaseURL:        cfg.AdPlatform.BaseURL,
		RequestTimeout: cfg.AdPlatform.RequestTimeout,
		MaxAttempts:    cfg.AdPlatform.MaxAttempts,
		RetryBaseDelay: cfg.AdPlatform.RetryBaseDelay,
		RateLimitRPS:   cfg.AdPlatform.RateLimitRPS,
	})

	var notifier orchestrator.Notifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != 0 {
		tg, err := telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
		if err != nil {
			logger.Error("Failed to create telegram notifier: %v", err)
			return 1
		}
		tg.NotifyStartup()
		notifier = tg
	} else {
		logger.Warn("⚠️ Telegram notifier disabled (no token or chat id)")
	}

	killSwitch := orchestrator.NewKillSwitch()
	engine := orchestrator.New(db, platform, notifier, killSwitch, logger, orchestrator.Options{
		Thresholds: strategy.Thresholds{
			MinSpend:       cfg.Engine.MinSpend,
			MinImpressions: cfg.Engine.MinImpressions,
			ImprovementPct: cfg.Engine.ImprovementPct,
		},
		Modes:          modes,
		DefaultMode:    cfg.Engine.DefaultMode,
		LookbackWindow: cfg.Engine.LookbackWindow,
		AutoPause:      cfg.Engine.AutoPause,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Scheduler.Enabled {
		scheduler := orchestrator.NewScheduler(engine, db, logger, cfg.Scheduler.Interval)
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("Failed to start scheduler: %v", err)
			return 1
		}
		defer scheduler.Stop()
	} else {
		logger.Warn("⚠️ Scheduler disabled, runs are triggered via API only")
	}

	server := api.NewServer(logger, engine, db, killSwitch, cfg.API.Port)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("🛑 Received signal %v, shutting down...", sig)
	case err := <-serverErr:
		logger.Error("HTTP server stopped: %v", err)
		return 1
	}

	logger.Info("✅ Shutdown complete")
	return 0
}
