package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/driphype/shopbot/internal/api"
	"github.com/driphype/shopbot/internal/bot"
	"github.com/driphype/shopbot/internal/config"
	"github.com/driphype/shopbot/internal/logger"
	"github.com/driphype/shopbot/internal/session"
	"github.com/driphype/shopbot/internal/storage"
	"github.com/driphype/shopbot/internal/webhookmon"
	"github.com/driphype/shopbot/internal/wizard"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := run(); err != nil {
		log.Fatalf("shopbot: %v", err)
	}
}

func run() error {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg); err != nil {
		return err
	}
	appLog := logger.Component("app")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			appLog.Warn("store close failed", slog.String("err", err.Error()))
		}
	}()

	sessions := session.NewManager()
	engine := wizard.New(sessions, store)

	b, err := bot.New(cfg, store, engine)
	if err != nil {
		return err
	}

	regClient := webhookmon.NewClient(cfg.Telegram.APIBase, cfg.Telegram.Token)
	monitor := webhookmon.NewMonitor(webhookmon.Options{
		Client:     regClient,
		DesiredURL: cfg.WebhookURL(),
	})

	server := api.NewServer(cfg, store, monitor, b.Poller())

	// Register the webhook up front so updates flow before the first
	// monitor tick. Failure is not fatal: the monitor converges later.
	regCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	if err := regClient.SetWebhook(regCtx, cfg.WebhookURL()); err != nil {
		appLog.Warn("initial webhook registration failed",
			slog.String("event", "webhook.register"),
			slog.String("err", err.Error()),
		)
	} else {
		appLog.Info("webhook registered",
			slog.String("event", "webhook.register"),
			slog.String("url", cfg.WebhookURL()),
		)
	}
	cancel()

	startedAt := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return b.Run(gctx) })
	g.Go(func() error { return monitor.Run(gctx) })

	appLog.Info("app ready",
		slog.String("event", "ready"),
		slog.String("addr", cfg.ListenAddr()),
		slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
	)

	err = g.Wait()
	appLog.Info("shutting down", slog.String("event", "shutdown"))
	return err
}
