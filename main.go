package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/IliaW/page-capture/config"
	"github.com/IliaW/page-capture/internal/aws_s3"
	"github.com/IliaW/page-capture/internal/broker"
	"github.com/IliaW/page-capture/internal/browser"
	"github.com/IliaW/page-capture/internal/capture"
	"github.com/IliaW/page-capture/internal/handler"
	"github.com/IliaW/page-capture/internal/model"
	"github.com/IliaW/page-capture/internal/telemetry"
	"github.com/IliaW/page-capture/internal/worker"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

var cfg *config.Config

func main() {
	rootCmd := &cobra.Command{
		Use:   "page-capture",
		Short: "Headless browser screenshots and page archives stored on S3",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.MustLoad()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogger(os.Stdout)
			return serve()
		},
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newCaptureCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := telemetry.SetupMetrics(context.Background(), cfg)
	defer metrics.Close()
	db, metadataRepo := setupDatabase()
	defer closeDatabase(db)
	s3 := aws_s3.NewS3BucketClient(cfg)
	cache := setupCache()
	defer cache.Close()
	pool := browser.NewPool(cfg.BrowserSettings)
	if err := pool.Start(); err != nil {
		slog.Error("failed to start browser.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	svc := &capture.CaptureService{
		Cfg:     cfg,
		S3:      s3,
		Browser: pool,
		Cache:   cache,
		Db:      metadataRepo,
		Metrics: metrics.AppMetrics,
	}

	workerWg := &sync.WaitGroup{}
	kafkaWg := &sync.WaitGroup{}
	var eventChan chan *model.CaptureEvent
	if cfg.KafkaSettings.Enabled {
		threadNum := parallelWorkers()
		eventChan = make(chan *model.CaptureEvent, threadNum*2)
		taskChan := make(chan []byte, threadNum*2)
		svc.Events = eventChan

		kafkaDLQ := broker.NewKafkaDLQ(cfg.ServiceName, cfg.KafkaSettings.Producer)
		defer kafkaDLQ.Close()

		kafkaWg.Add(1)
		kafkaConsumer := broker.NewKafkaConsumer(taskChan, metrics.KafkaConsumerMetrics,
			cfg.KafkaSettings.Consumer, kafkaWg)
		go kafkaConsumer.Run(ctx)

		captureWorker := &worker.CaptureWorker{
			TaskChan: taskChan,
			Service:  svc,
			KafkaDLQ: kafkaDLQ,
			Wg:       workerWg,
		}
		for i := 0; i < threadNum; i++ {
			workerWg.Add(1)
			go captureWorker.Run()
		}

		kafkaWg.Add(1)
		kafkaProducer := broker.NewKafkaProducer(eventChan, metrics.KafkaProducerMetrics,
			cfg.KafkaSettings.Producer, kafkaWg)
		go kafkaProducer.Run()
	}

	e := newHttpServer(svc)
	go func() {
		slog.Info("starting application on port "+cfg.Port, slog.String("env", cfg.Env),
			slog.Bool("kafka", cfg.KafkaSettings.Enabled))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", slog.String("err", err.Error()))
			stop()
		}
	}()

	// Graceful shutdown.
	// 1. Stop the http server. In-flight captures finish.
	// 2. Kafka consumer stops by the same signal and closes taskChan.
	// 3. Wait till all workers processed taskChan. Close eventChan. Handlers
	//    still running after a shutdown timeout drop their events.
	// 4. Wait till the producer wrote all events to Kafka.
	// 5. Deferred: close browser, memcached, database, metrics.
	<-ctx.Done()
	slog.Info("stopping server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HttpServerSettings.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to stop http server.", slog.String("err", err.Error()))
	}
	workerWg.Wait()
	if eventChan != nil {
		svc.CloseEvents()
		slog.Info("close eventChan.")
	}
	kafkaWg.Wait()
	slog.Info("server stopped.")

	return nil
}

func newHttpServer(svc capture.Service) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.HttpServerSettings.ReadTimeout
	e.Server.WriteTimeout = cfg.HttpServerSettings.WriteTimeout
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("request.", slog.String("method", v.Method), slog.String("uri", v.URI),
				slog.Int("status", v.Status))
			return nil
		},
	}))
	handler.RegisterRoutes(e, handler.NewCaptureHandler(svc))

	return e
}
