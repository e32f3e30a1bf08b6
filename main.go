package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"flowkit/internal/app"
	"flowkit/internal/config"
	"flowkit/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("application exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	defer deps.Close()

	application, err := app.New(cfg, deps.DB, deps.NSQProducer, log)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Warn("failed to release embedding clients", "error", err)
		}
	}()

	if application.IngestConsumer != nil {
		nsqCfg := nsq.NewConfig()
		nsqCfg.MaxInFlight = 4
		// Exhausted payloads are moved to failed jobs by the handler.
		nsqCfg.MaxAttempts = 0
		consumer, err := nsq.NewConsumer(config.TopicVectorIngest, config.ChannelIngest, nsqCfg)
		if err != nil {
			return fmt.Errorf("failed to create ingest consumer: %w", err)
		}
		consumer.AddHandler(application.IngestConsumer)
		if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
			return fmt.Errorf("failed to connect ingest consumer: %w", err)
		}
		defer consumer.Stop()
		log.Info("ingest worker started", "topic", config.TopicVectorIngest, "channel", config.ChannelIngest)
	}

	return application.Run(ctx)
}
