package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cimars/catalog/internal/api"
	"cimars/catalog/internal/api/middleware"
	"cimars/catalog/internal/cache"
	"cimars/catalog/internal/config"
	"cimars/catalog/internal/db"
	"cimars/catalog/internal/email"
	"cimars/catalog/internal/events"
	"cimars/catalog/internal/logging"
	"cimars/catalog/internal/services"
	"cimars/catalog/internal/storage"
	"cimars/catalog/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default)")

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		fatal("failed to load configuration", "error", err)
	}
	logging.Setup(logging.Options{Level: cfg.LogLevel, JSON: cfg.LogFormat == "json"})

	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		fatal("failed to connect to database", "error", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			slog.Error("error disconnecting from MongoDB", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.EnsureIndexes(ctx, mongoDb); err != nil {
		fatal("failed to ensure indexes", "error", err)
	}

	redisClient, err := cache.ConnectRedis(cfg)
	if err != nil {
		fatal("failed to connect to Redis", "error", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			slog.Error("error disconnecting from Redis", "error", err)
		}
	}()

	counters, err := services.NewCounterStore(cfg, mongoDb, redisClient)
	if err != nil {
		fatal("failed to initialize counter store", "error", err)
	}

	publisher, err := events.NewPublisher(events.PublisherConfig{
		URL:          cfg.RabbitMQURL,
		ExchangeName: cfg.EventsExchange,
	})
	if err != nil {
		fatal("failed to initialize event publisher", "error", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.Error("error closing event publisher", "error", err)
		}
	}()

	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()

	emailTemplateService := services.NewEmailTemplateService(mongoDb)
	mailService := services.NewMailService(cfg, tasks.NewEmailQueue(taskClient), emailTemplateService)
	listingService := services.NewListingService(mongoDb, cfg, services.NewCodeGenerator(counters), publisher, mailService)
	enquiryService := services.NewEnquiryService(mongoDb, listingService, mailService)

	var wg sync.WaitGroup
	shutdownChan := make(chan struct{}, 1)

	// The service API runs in every mode.
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(redisClient, counters, shutdownChan),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("service API listening", "port", cfg.ServiceApiPort)
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal("service API ListenAndServe error", "error", err)
		}
		slog.Info("service API server stopped")
	}()

	var mainApiSrv *http.Server

	slog.Info("starting application", "mode", cfg.RunMode)

	apiMode := func() {
		mediaStore, err := storage.NewS3MediaStore(ctx, cfg)
		if err != nil {
			fatal("failed to initialize media store", "error", err)
		}
		router := api.SetupRouter(cfg, api.Dependencies{
			Listings:    listingService,
			Mail:        mailService,
			Enquiries:   enquiryService,
			Media:       mediaStore,
			RateLimiter: middleware.NewRateLimiter(ctx),
		})
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: router,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			slog.Info("main API listening", "port", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fatal("main API ListenAndServe error", "error", err)
			}
			slog.Info("main API server stopped")
		}()
	}

	bgMode := func() {
		processor := tasks.NewTaskProcessor(cfg, email.NewSenderFromConfig(cfg, redisClient), emailTemplateService)
		srv, mux := tasks.NewServer(redisClient, processor)
		wg.Add(1)
		go func() {
			defer wg.Done()
			slog.Info("background task server starting")
			if err := tasks.RunServer(ctx, srv, mux); err != nil {
				fatal("background task server error", "error", err)
			}
			slog.Info("background task server stopped")
		}()
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "all":
		apiMode()
		bgMode()
	default:
		fatal("invalid run mode", "mode", cfg.RunMode)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received signal, shutting down", "signal", sig.String())
	case <-shutdownChan:
		slog.Info("shutdown requested via service API")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		slog.Error("service API server shutdown error", "error", err)
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			slog.Error("main API server shutdown error", "error", err)
		}
	}
	// stops the task server and the rate limiter janitor
	cancel()

	wg.Wait()
	slog.Info("server gracefully stopped")
}
