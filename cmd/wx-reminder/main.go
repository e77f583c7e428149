package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-telegram/bot"
	"github.com/smith3v/wx-reminder/pkg/config"
	"github.com/smith3v/wx-reminder/pkg/db"
	"github.com/smith3v/wx-reminder/pkg/logger"
	"github.com/smith3v/wx-reminder/pkg/push"
	"github.com/smith3v/wx-reminder/pkg/reminder"
	"github.com/smith3v/wx-reminder/pkg/scheduler"
	"github.com/smith3v/wx-reminder/pkg/server"
	"github.com/smith3v/wx-reminder/pkg/token"
)

func main() {
	configPath := "config.json"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	if err := config.LoadConfig(configPath); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := logger.Configure(logger.Options{
		Level: config.AppConfig.Logging.Level,
		File:  config.AppConfig.Logging.File,
	}); err != nil {
		logger.Error("failed to configure logger", "error", err)
	}

	if err := db.InitDB(config.AppConfig.Database); err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	sendTimeout := time.Duration(config.AppConfig.Push.SendTimeoutSec) * time.Second
	grace := time.Duration(config.AppConfig.Scheduler.GraceSec) * time.Second

	var sender push.Sender
	var wechat *push.WeChatSender
	switch config.AppConfig.Push.Channel {
	case "telegram":
		b, err := bot.New(config.AppConfig.Telegram.Token)
		if err != nil {
			logger.Error("failed to create telegram bot", "error", err)
			os.Exit(1)
		}
		sender = push.NewTelegramSender(b)
	default:
		wechat = push.NewWeChatSender(config.AppConfig.WeChat, sendTimeout, nil)
		sender = wechat
	}

	sched := scheduler.New(grace, nil)
	defer sched.Stop()

	tokens := token.NewManager(
		config.AppConfig.Server.JWTSecret,
		time.Duration(config.AppConfig.Server.SessionTTLHours)*time.Hour,
		nil,
	)
	svc := reminder.NewService(sched, sender, tokens, sendTimeout, grace, nil)

	if err := svc.RearmPending(); err != nil {
		logger.Error("failed to re-arm pending reminders", "error", err)
	}

	retention := time.Duration(config.AppConfig.Scheduler.LogRetentionDays) * 24 * time.Hour
	go db.StartDeliveryLogCleanup(ctx, db.DeliveryLogCleanupInterval, retention)

	srv := &http.Server{
		Addr:    config.AppConfig.Server.Addr,
		Handler: server.New(svc, tokens, wechat).Handler(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("starting wx-reminder", "addr", srv.Addr, "channel", config.AppConfig.Push.Channel)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
