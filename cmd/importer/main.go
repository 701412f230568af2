package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/zaja/magazin-importer/internal/api"
	"github.com/zaja/magazin-importer/internal/config"
	"github.com/zaja/magazin-importer/internal/extractor"
	"github.com/zaja/magazin-importer/internal/images"
	"github.com/zaja/magazin-importer/internal/monitor"
	"github.com/zaja/magazin-importer/internal/poller"
	"github.com/zaja/magazin-importer/internal/processor"
	"github.com/zaja/magazin-importer/internal/publisher"
	"github.com/zaja/magazin-importer/internal/ratelimit"
	"github.com/zaja/magazin-importer/internal/scheduler"
	"github.com/zaja/magazin-importer/internal/storage/postgres"
	"github.com/zaja/magazin-importer/internal/translator"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Stores
	feedStore := postgres.NewFeedStore(db)
	importStore := postgres.NewImportStore(db)
	postStore := postgres.NewPostStore(db)
	mediaStore := postgres.NewMediaStore(db)
	txManager := postgres.NewTransactionManager(db)

	// Events are optional: without a broker the pipeline still runs.
	var events processor.EventPublisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		events = rabbitMQ
	}

	// Translation
	aiClient := translator.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	if !aiClient.Ready() {
		logger.Warn("openai api key not set, translation disabled")
	}
	trans := translator.New(aiClient, translator.Config{
		MaxTokens:      cfg.OpenAI.MaxTokens,
		TargetLanguage: cfg.OpenAI.TargetLanguage,
	}, logger)

	limiter := ratelimit.New(cfg.RateLimit.MaxConcurrent, cfg.RateLimit.MinInterval)
	defer limiter.Clear()

	extract := extractor.New(extractor.Config{
		Timeout:   cfg.Extractor.Timeout,
		UserAgent: cfg.Extractor.UserAgent,
	}, logger)

	optimizer := images.New(images.Config{
		Timeout:     cfg.Images.Timeout,
		UserAgent:   cfg.Extractor.UserAgent,
		MaxWidth:    cfg.Images.MaxWidth,
		JPEGQuality: cfg.Images.JPEGQuality,
	})

	feedPoller := poller.New(
		feedStore,
		importStore,
		poller.NewRSSFetcher(cfg.Extractor.Timeout, cfg.Extractor.UserAgent),
		poller.Config{
			FeedDelayMin: cfg.Poller.FeedDelayMin,
			FeedDelayMax: cfg.Poller.FeedDelayMax,
		},
		logger,
	)

	proc := processor.New(processor.Deps{
		Imports:    importStore,
		Feeds:      feedStore,
		Posts:      postStore,
		Media:      mediaStore,
		Tx:         txManager,
		Extractor:  extract,
		Translator: trans,
		Images:     optimizer,
		Limiter:    limiter,
		Events:     events,
		Logger:     logger,
	}, processor.Config{
		LockTimeout:      cfg.Processing.LockTimeout,
		MaxRetries:       cfg.Processing.MaxRetries,
		ScheduleMinDelay: cfg.Processing.ScheduleMinDelay,
		ScheduleMaxDelay: cfg.Processing.ScheduleMaxDelay,
	})

	sched := scheduler.NewScheduler(feedPoller, proc, scheduler.Config{
		PollInterval:    cfg.Poller.Interval,
		ProcessInterval: cfg.Processing.Interval,
		BatchSize:       cfg.Processing.BatchSize,
	}, logger)

	mon := monitor.New(importStore, aiClient)
	srv := api.NewServer(feedPoller, proc, importStore, mon, logger)
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: srv.Router(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	logger.Info("starting importer",
		"poll_interval", cfg.Poller.Interval,
		"process_interval", cfg.Processing.Interval,
		"batch_size", cfg.Processing.BatchSize,
	)

	err = sched.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
