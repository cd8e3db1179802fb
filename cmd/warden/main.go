package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"warden/internal/appeals"
	"warden/internal/automod"
	"warden/internal/bot"
	"warden/internal/config"
	"warden/internal/dashboard"
	"warden/internal/metrics"
	"warden/internal/moderation"
	"warden/internal/reports"
	"warden/internal/responder"
	"warden/internal/staff"
	"warden/internal/stats"
	"warden/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	metricSet := metrics.New()
	staffSvc := staff.New(store, cfg.FullAccessUsers)
	statsSvc := stats.New(store, logger)
	actions := moderation.NewService(store, staffSvc, metricSet, logger, moderation.Config{
		LogChannelID:    cfg.Moderation.LogChannel,
		DMOnAction:      cfg.Moderation.DMOnAction,
		AppealsEnabled:  cfg.Moderation.AppealsEnabled,
		CustomAppealURL: cfg.Moderation.CustomAppealURL,
		BaseURL:         cfg.BaseURL,
	})

	phishing := automod.NewPhishingDetector(cfg.Phishing.FeedURL, logger)
	evaluator := automod.NewEvaluator(store, phishing, actions, staffSvc, metricSet, logger)
	responderSvc := responder.New(store, logger, cfg.CommandPrefix)
	reportsSvc := reports.New(store, staffSvc, actions, metricSet, logger)
	appealsSvc := appeals.New(store, metricSet, logger)

	botSvc, err := bot.New(cfg, logger, store, evaluator, actions, responderSvc, reportsSvc, staffSvc, statsSvc, metricSet)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	stop := make(chan struct{})
	phishing.Start(time.Duration(cfg.Phishing.RefreshIntervalMinutes)*time.Minute, stop)

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started", zap.String("guild", cfg.GuildID))

	var server *dashboard.Server
	if cfg.Dashboard.Enabled {
		server = dashboard.New(cfg.Dashboard, cfg.GuildID, store, statsSvc, appealsSvc, evaluator, responderSvc, staffSvc, metricSet, botSvc.Session(), logger)
		if err := server.Start(); err != nil {
			logger.Fatal("dashboard start failed", zap.Error(err))
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	close(stop)
	if server != nil {
		server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
}
