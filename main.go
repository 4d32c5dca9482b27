package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentflow/config"
	"rentflow/cron"
	"rentflow/database"
	ledgerRepo "rentflow/database/repository/ledger"
	"rentflow/handlers"
	"rentflow/routes"
	"rentflow/services/ledger"
	"rentflow/services/notification"
	"rentflow/services/render"
	"rentflow/services/storage"
	"rentflow/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger := utils.GetLogger()
	defer logger.Sync()

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.JWTSecret == "" {
		logger.Fatal("main: JWT_SECRET must be set")
	}

	database.InitDB()
	repo := ledgerRepo.NewMongoLedgerRepo()
	{
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Fatal("main: failed to ensure ledger indexes", zap.Error(err))
		}
		cancel()
	}

	if err := utils.InitCache(); err != nil {
		logger.Fatal("main: redis unavailable", zap.Error(err))
	}

	rootCtx, stopMonitors := context.WithCancel(context.Background())
	defer stopMonitors()
	utils.StartHealthMonitor(rootCtx, 30*time.Second, utils.CacheClient, database.MongoClient)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisQueueDB,
	}
	queue := asynq.NewClient(redisOpt)
	defer queue.Close()

	notifier, err := notification.NewQueueNotifier(queue, cfg.ChannelTimeout, logger)
	if err != nil {
		logger.Fatal("main: failed to initialize notifier", zap.Error(err))
	}

	deliverers := []notification.Deliverer{notification.NewLogDeliverer(logger)}
	if cfg.FirebaseCredentials != "" {
		fcm, err := utils.NewFCMClient(rootCtx, cfg.FirebaseCredentials)
		if err != nil {
			logger.Warn("main: push notifications disabled", zap.Error(err))
		} else {
			deliverers = append(deliverers, notification.NewFCMDeliverer(fcm))
		}
	}
	dispatcher := notification.NewDispatcher(logger, deliverers...)

	// Services.
	svc := ledger.NewLedgerService(repo, notifier, render.NewInvoicePDF("", ""), nil, logger, ledger.Settings{
		Location:           cfg.Location(),
		InvoicePrefix:      cfg.InvoicePrefix,
		DefaultMonthsAhead: cfg.DefaultMonthsAhead,
		ReminderCooldown:   cfg.ReminderCooldown,
		ReminderWindows:    cfg.ReminderWindowDays(),
		ChannelTimeout:     cfg.ChannelTimeout,
	})
	if cfg.CloudinaryURL != "" {
		store, err := storage.NewInvoiceStore(cfg.CloudinaryURL, cfg.CloudinaryFolder, logger)
		if err != nil {
			logger.Warn("main: invoice storage disabled", zap.Error(err))
		} else {
			svc.Artifacts = store
		}
	}

	daily := cron.NewDailyJob(svc, cron.RedisLocker{Client: utils.CacheClient}, logger)
	worker, err := cron.NewWorker(cron.WorkerConfig{
		Redis:     redisOpt,
		Location:  cfg.Location(),
		SweepCron: cfg.SweepCron,
	}, daily, dispatcher, logger)
	if err != nil {
		logger.Fatal("main: failed to build worker", zap.Error(err))
	}
	if err := worker.Start(); err != nil {
		logger.Fatal("main: failed to start worker", zap.Error(err))
	}

	// Create the Gin router.
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxyList()); err != nil {
		logger.Fatal("main: invalid TRUSTED_PROXIES", zap.Error(err))
	}
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	ledgerHandler := handlers.NewLedgerHandler(svc, daily)
	handlerBundle := handlers.NewHandlerBundle(ledgerHandler, handlers.HealthHandler, []byte(cfg.JWTSecret), cfg.MaxRequestsPerMin)
	routes.RegisterRoutes(router, handlerBundle)

	// Start the HTTP server.
	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("main: server forced to shutdown", zap.Error(err))
	}

	// Let queued side effects land before the queue client and DB go away.
	svc.Drain()
	worker.Shutdown()
	stopMonitors()
	if err := database.CloseDB(ctx); err != nil {
		logger.Error("main: failed to close MongoDB", zap.Error(err))
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
