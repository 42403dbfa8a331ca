package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/kiwi/graphsum/internal/config"
	"github.com/OFFIS-RIT/kiwi/graphsum/internal/pipeline"
	"github.com/OFFIS-RIT/kiwi/graphsum/internal/queue"
	"github.com/OFFIS-RIT/kiwi/graphsum/internal/storage"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/leaselock"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/loader/auto"
	loaders3 "github.com/OFFIS-RIT/kiwi/graphsum/pkg/loader/s3"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger/console"
	pgxstore "github.com/OFFIS-RIT/kiwi/graphsum/pkg/store/pgx"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{}))
		logger.Fatal("Invalid configuration", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  cfg.Log.Debug,
		JSON:   cfg.Log.JSON,
		Prefix: "worker",
	})
	logger.Init(consoleLogger)

	if cfg.Queue.URL == "" {
		logger.Fatal("RABBITMQ_URL or RABBITMQ_HOST must be set for the worker")
	}

	// job store and pipeline
	jobs, closeStore, err := config.NewJobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open job store", "err", err)
	}
	defer closeStore()

	pipe, err := pipeline.FromConfig(cfg, jobs)
	if err != nil {
		logger.Fatal("Failed to build pipeline", "err", err)
	}

	// loaders and export storage
	routerParams := auto.NewRouterParams{}
	exporter, err := storage.FromConfig(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to create S3 client", "err", err)
	}
	if cfg.Storage.Bucket != "" {
		s3Loader, err := loaders3.NewS3Loader(ctx, loaders3.NewS3LoaderParams{
			Bucket:    cfg.Storage.Bucket,
			Endpoint:  cfg.Storage.Endpoint,
			Region:    cfg.Storage.Region,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
		})
		if err != nil {
			logger.Fatal("Failed to create S3 loader", "err", err)
		}
		routerParams.S3 = s3Loader
	}

	// rabbitmq
	conn, err := queue.Dial(ctx, cfg.Queue.URL)
	if err != nil {
		logger.Fatal("Failed to connect to queue", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{cfg.Queue.Queue}, cfg.Queue.ResultQueue); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	// Deliveries are consumed on their own channel.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	params := queue.NewWorkerParams{
		Pipeline:    pipe,
		Loader:      auto.NewRouter(routerParams),
		Store:       jobs,
		Publisher:   queue.NewChannelPublisher(ch),
		Queue:       cfg.Queue.Queue,
		ResultQueue: cfg.Queue.ResultQueue,
		MaxRetries:  cfg.Queue.MaxRetries,
		Concurrency: cfg.LLM.MaxConcurrentRequests,
	}
	if exporter != nil {
		params.Exporter = exporter
	}
	if cfg.Database.URL != "" {
		pool, err := pgxstore.Connect(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect lease pool", "err", err)
		}
		defer pool.Close()
		holder, _ := os.Hostname()
		params.Locker = leaselock.New(pool, holder, leaselock.Options{})
	}
	worker := queue.NewWorker(params)

	if err := worker.Run(ctx, consumerCh); err != nil && ctx.Err() == nil {
		logger.Fatal("Worker stopped", "err", err)
	}
	logger.Info("Shutdown signal received, exiting...")
}
