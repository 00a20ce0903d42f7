package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"stock-alert-service/internal/api"
	"stock-alert-service/internal/config"
	"stock-alert-service/internal/db"
	"stock-alert-service/internal/evaluator"
	"stock-alert-service/internal/inventory"
	"stock-alert-service/internal/kafka"
	"stock-alert-service/internal/ledger"
	"stock-alert-service/internal/logging"
	"stock-alert-service/internal/notification"
	"stock-alert-service/internal/providers"
	"stock-alert-service/internal/replenishment"
	"stock-alert-service/internal/services"
	"stock-alert-service/internal/thresholds"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage: Postgres when configured, memory otherwise
	var (
		alertLedger ledger.Ledger            = ledger.NewMemory(nil)
		planRepo    replenishment.Repository = replenishment.NewMemoryRepository()
		deliveries  notification.DeliveryLog = notification.NewMemoryLog()
	)
	if cfg.DB.DSN != "" {
		dbConn, err := db.New(ctx, cfg.DB.DSN)
		if err != nil {
			logger.Errorf("Failed to connect to database: %v", err)
			log.Fatalf("Database connection failed: %v", err)
		}
		defer dbConn.Close()
		if err := dbConn.Migrate(ctx); err != nil {
			log.Fatalf("Database migration failed: %v", err)
		}
		alertLedger = db.NewAlertLedger(dbConn)
		planRepo = db.NewPlanRepository(dbConn)
		deliveries = db.NewNotificationLog(dbConn)
		logger.Info("Using Postgres storage")
	} else {
		logger.Warn("DB_DSN not set, alerts and plans are kept in memory")
	}

	catalog := inventory.NewCatalog(nil)
	store := thresholds.NewStore()

	// Channels
	hub := providers.NewHub(logger)
	senders := []notification.Sender{hub}
	if cfg.Email.SMTPServer != "" {
		senders = append(senders, providers.NewEmail(cfg, logger))
	}
	if cfg.SMS.AccountSID != "" {
		senders = append(senders, providers.NewSMS(cfg, logger))
	}
	if cfg.Telegram.BotToken != "" {
		tg, err := providers.NewTelegram(cfg, logger)
		if err != nil {
			logger.Errorf("Telegram channel disabled: %v", err)
		} else {
			senders = append(senders, tg)
		}
	}

	dispatcher := notification.New(alertLedger, store, catalog, deliveries, logger, notification.Options{
		ChannelTimeout: cfg.Notification.ChannelTimeout,
		Location:       cfg.Notification.DigestLocation,
	}, senders...)

	ev := evaluator.New(store, catalog, alertLedger, logger, nil)
	ev.OnAlert(dispatcher.HandleEvent)

	advisor := replenishment.NewAdvisor(catalog, store, replenishment.AdvisorConfig{
		WindowDays:     cfg.Advisor.WindowDays,
		SafetyDays:     cfg.Advisor.SafetyDays,
		MinSuggestion:  cfg.Advisor.MinSuggestion,
		SmoothingAlpha: cfg.Advisor.SmoothingAlpha,
	}, nil)
	planner := replenishment.NewPlanner(planRepo, catalog, logger, nil)

	svc := services.New(catalog, ev, planner, logger, cfg)
	var wg sync.WaitGroup
	svc.Start(&wg)

	// Kafka stock feed
	var consumer *kafka.Consumer
	if cfg.Kafka.Broker != "" {
		consumer = kafka.NewConsumer([]string{cfg.Kafka.Broker}, cfg.Kafka.Topic, cfg.Kafka.GroupID, svc, logger)
		consumer.Start(ctx, &wg)
		logger.Infof("Kafka consumer initialized with topic: %s", cfg.Kafka.Topic)
	}

	// Digest scheduler
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.Notification.TickInterval)
		defer ticker.Stop()
		dispatcher.Tick(ctx, time.Now())
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				dispatcher.Tick(ctx, now)
			}
		}
	}()

	// API server
	handler := api.NewHandler(api.Deps{
		Stock:      svc,
		Catalog:    catalog,
		Thresholds: store,
		Ledger:     alertLedger,
		Advisor:    advisor,
		Planner:    planner,
		Deliveries: deliveries,
		Hub:        hub,
	}, logger)
	srv := &http.Server{
		Addr:    cfg.API.Port,
		Handler: api.NewRouter(handler, logger, cfg),
	}
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("API server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API shutdown failed: %v", err)
	}
	svc.Stop()
	if consumer != nil {
		consumer.Close()
	}
	wg.Wait()
	logger.Info("Service stopped")
}
