package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iliyamo/property-rental-api/internal/app"
	"github.com/iliyamo/property-rental-api/internal/config"
	"github.com/iliyamo/property-rental-api/internal/database"
	"github.com/iliyamo/property-rental-api/internal/handler"
	"github.com/iliyamo/property-rental-api/internal/logging"
	"github.com/iliyamo/property-rental-api/internal/middleware"
	"github.com/iliyamo/property-rental-api/internal/queue"
	"github.com/iliyamo/property-rental-api/internal/router"
	"github.com/iliyamo/property-rental-api/internal/scheduler"
)

func main() {
	_ = godotenv.Load() // .env is optional; real environment wins
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("database unavailable", zap.Error(err))
	}
	defer db.Close()

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		logger.Warn("redis unavailable; rate limiting, response cache and job lock are off")
	} else {
		defer rdb.Close()
	}

	svc := app.Build(cfg, db, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Queue consumers ----
	consumer := queue.NewConsumer(cfg.AMQPURL, logger)
	if cfg.AMQPURL != "" {
		consumer.Start(ctx, queue.PaymentInitiatedQueue, queue.PaymentAuditLog("logs"))
		consumer.Start(ctx, queue.NotificationRequestedQueue, queue.NotificationHandler(
			func(ctx context.Context, ev queue.NotificationRequestedEvent) error {
				_, err := svc.Dispatcher.SendInvoice(ctx, ev.InvoiceID, ev.Channel)
				return err
			}))
	}

	// ---- Reminder job ----
	sched := scheduler.New(rdb, cfg.Reminder.LockTTL, logger)
	if cfg.Reminder.Enabled {
		if err := sched.Add(cfg.Reminder.Cron, app.ReminderJob, svc.RemindJob(logger)); err != nil {
			logger.Fatal("reminder schedule", zap.Error(err))
		}
		sched.Start()
	}

	// ---- HTTP ----
	e := router.New(logger, cfg.CORSOrigins)
	limit := middleware.RateLimit(config.LoadRateLimitConfig(), rdb, logger)
	cache := middleware.ResponseCache(config.LoadCacheConfig(), rdb, logger)
	t := cfg.RequestTimeout

	router.RegisterRoutes(e, handler.NewHealthHandler(db, rdb))
	router.RegisterAuth(e, handler.NewAuthHandler(svc.Verifier, svc.Tokens, svc.Partners, t, logger), svc.Tokens, limit)
	router.RegisterPartner(e, handler.NewPartnerHandler(svc.Partners, t, logger), limit)
	router.RegisterPayments(e,
		handler.NewPaymentHandler(svc.Payments, cfg.WebhookSecret, t, logger),
		handler.NewBillingHandler(svc.Invoices, t),
		handler.NewConfigHandler(svc.Params, t),
		cache)
	router.RegisterRent(e, handler.NewRentHandler(handler.RentDeps{
		Catalog:   svc.Catalog,
		Contracts: svc.Contracts,
		Invoices:  svc.Invoices,
		Partners:  svc.Partners,
	}, t, logger), cfg.ServiceJWTSecret, cache)

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown", zap.Error(err))
	}
	consumer.Wait()
}
