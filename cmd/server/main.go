package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appnotification "github.com/pesaflow/backend/internal/application/notification"
	apppayment "github.com/pesaflow/backend/internal/application/payment"
	"github.com/pesaflow/backend/internal/domain/integration"
	"github.com/pesaflow/backend/internal/domain/shared"
	"github.com/pesaflow/backend/internal/infrastructure/cache"
	"github.com/pesaflow/backend/internal/infrastructure/config"
	"github.com/pesaflow/backend/internal/infrastructure/logger"
	"github.com/pesaflow/backend/internal/infrastructure/mpesa"
	"github.com/pesaflow/backend/internal/infrastructure/notify"
	"github.com/pesaflow/backend/internal/infrastructure/persistence"
	"github.com/pesaflow/backend/internal/infrastructure/queue"
	"github.com/pesaflow/backend/internal/interfaces/http/handler"
	"github.com/pesaflow/backend/internal/interfaces/http/middleware"
	"github.com/pesaflow/backend/internal/interfaces/http/router"

	"github.com/pesaflow/backend/internal/domain/notification"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting pesaflow backend",
		zap.String("environment", cfg.Environment),
		zap.Int("port", cfg.Server.Port),
	)

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("error closing database", zap.Error(err))
		}
	}()
	log.Info("database connected")

	// Repositories
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	planRepo := persistence.NewGormPaymentPlanRepository(db.DB)
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	integrationRepo := persistence.NewGormIntegrationRepository(db.DB)
	apiLogRepo := persistence.NewGormAPILogRepository(db.DB)
	notificationRepo := persistence.NewGormNotificationRepository(db.DB)
	preferenceRepo := persistence.NewGormPreferenceRepository(db.DB)
	sequences := persistence.NewGormSequenceAllocator(db.DB)
	scope := persistence.NewGormSettlementScope(db.DB)

	// Callback idempotency store
	var processed shared.IdempotencyStore
	if cfg.Redis.Enabled {
		processed, err = cache.NewRedisIdempotencyStore(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("failed to connect to Redis", zap.Error(err))
		}
		log.Info("redis idempotency store connected")
	} else {
		processed = cache.NewInMemoryIdempotencyStore()
	}
	defer func() { _ = processed.Close() }()

	// Provider adapters
	daraja := mpesa.NewDarajaAdapter(log)

	// Application services
	settlements := apppayment.NewSettlementService(
		scope, paymentRepo, customerRepo, integrationRepo, apiLogRepo, sequences,
		[]integration.MoneyMovementProvider{daraja}, processed, log,
	)
	ledger := apppayment.NewLedgerService(scope, invoiceRepo, planRepo, sequences, log)

	senders := notify.NewDevelopmentSenders(log)
	senderList := make([]notification.ChannelSender, 0, len(senders))
	for _, s := range senders {
		senderList = append(senderList, s)
	}
	dispatch := appnotification.NewDispatchService(notificationRepo, preferenceRepo, customerRepo, senderList, log)

	// Notification dispatch worker
	worker := queue.NewDispatchWorker(notificationRepo, dispatch, queue.Config{
		PollInterval: time.Duration(cfg.Worker.PollInterval) * time.Second,
		BatchSize:    cfg.Worker.BatchSize,
		Workers:      cfg.Worker.Workers,
	}, log)
	worker.Start(context.Background())
	defer worker.Stop()

	// HTTP
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()
	engine := gin.New()
	engine.Use(gin.Recovery())

	r := router.NewRouter(engine)
	r.Register(handler.NewPaymentHandler(settlements))
	r.Register(handler.NewInvoiceHandler(ledger))
	r.Register(handler.NewNotificationHandler(dispatch))
	r.RegisterWebhooks(handler.NewWebhookHandler(settlements, log))
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}
