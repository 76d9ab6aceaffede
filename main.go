package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"labelflow/internal/app"
	"labelflow/internal/config"
	"labelflow/internal/logger"
)

func main() {
	// Initialize structured logger
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("app exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer deps.Close()

	a, err := app.New(cfg, deps.DB, deps.Redis, deps.NSQProducer, logger, nil)
	if err != nil {
		return fmt.Errorf("app init: %w", err)
	}
	defer a.Close()

	// Worker (Assignment Consumer)
	if cfg.EnableAssignmentWorker {
		consumer, err := startAssignmentConsumer(cfg, a)
		if err != nil {
			return err
		}
		defer consumer.Stop()
	}

	if !cfg.EnableAPI {
		go a.Sessions.Run(ctx, cfg.SessionSweepInterval)
		<-ctx.Done()
		return nil
	}
	return a.Run(ctx)
}

func startAssignmentConsumer(cfg *config.Config, a *app.App) (*nsq.Consumer, error) {
	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = max(cfg.AssignmentConcurrency, 1)
	// Zero disables the nsq cap; AssignmentConsumer parks exhausted messages.
	nsqCfg.MaxAttempts = 0

	consumer, err := nsq.NewConsumer(config.TopicTaskAssign, config.ChannelAssignmentWorker, nsqCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create NSQ consumer for assignments: %w", err)
	}
	consumer.SetLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn), nsq.LogLevelWarning)
	consumer.AddConcurrentHandlers(a.AssignmentConsumer, max(cfg.AssignmentConcurrency, 1))

	if cfg.NSQLookupd != "" {
		err = consumer.ConnectToNSQLookupd(cfg.NSQLookupd)
	} else {
		err = consumer.ConnectToNSQD(cfg.NSQDHost)
	}
	if err != nil {
		consumer.Stop()
		return nil, fmt.Errorf("failed to connect assignment consumer: %w", err)
	}
	slog.Info("NSQ assignment consumer connected", "topic", config.TopicTaskAssign, "channel", config.ChannelAssignmentWorker)
	return consumer, nil
}
