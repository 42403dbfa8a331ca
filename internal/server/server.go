package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/kiwi/graphsum/internal/config"
	"github.com/OFFIS-RIT/kiwi/graphsum/internal/pipeline"
	"github.com/OFFIS-RIT/kiwi/graphsum/internal/queue"
	mid "github.com/OFFIS-RIT/kiwi/graphsum/internal/server/middleware"
	"github.com/OFFIS-RIT/kiwi/graphsum/internal/storage"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/loader/auto"
	loaders3 "github.com/OFFIS-RIT/kiwi/graphsum/pkg/loader/s3"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// New returns an echo instance serving app with the standard middleware
// stack and all routes registered.
func New(app *mid.App, bodyLimit string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	if bodyLimit == "" {
		bodyLimit = "20M"
	}
	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(bodyLimit))

	RegisterRoutes(e)
	return e
}

// Init wires the pipeline, job store, queue and export storage from cfg
// and serves the API until SIGINT or SIGTERM.
func Init(cfg *config.Config) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobs, closeStore, err := config.NewJobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open job store", "err", err)
	}
	defer closeStore()

	pipe, err := pipeline.FromConfig(cfg, jobs)
	if err != nil {
		logger.Fatal("Failed to build pipeline", "err", err)
	}

	exporter, err := storage.FromConfig(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to create S3 client", "err", err)
	}

	routerParams := auto.NewRouterParams{}
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
	router := auto.NewRouter(routerParams)

	app := &mid.App{
		Pipeline:       pipe,
		Loader:         router,
		Store:          jobs,
		Queue:          cfg.Queue.Queue,
		PublicEndpoint: cfg.Storage.PublicEndpoint,
		APIKey:         cfg.Server.APIKey,
	}
	if exporter != nil {
		app.Downloader = exporter
	}

	if cfg.Server.AuthURL != "" {
		k, err := keyfunc.NewDefaultCtx(ctx, []string{cfg.Server.AuthURL + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		app.Key = k.Keyfunc
	}

	if cfg.Queue.URL != "" {
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
		app.Publisher = queue.NewChannelPublisher(ch)
	} else {
		params := queue.NewWorkerParams{
			Pipeline: pipe,
			Loader:   router,
			Store:    jobs,
		}
		if exporter != nil {
			params.Exporter = exporter
		}
		app.Runner = queue.NewWorker(params)
		logger.Info("No queue configured, running jobs in process")
	}

	e := New(app, cfg.Server.BodyLimit)

	go func() {
		port := cfg.Server.Port
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
