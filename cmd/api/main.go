package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"archi_crm_backend/internal/adapters/storage"
	"archi_crm_backend/internal/appointments"
	appointmentsservice "archi_crm_backend/internal/appointments/service"
	"archi_crm_backend/internal/auth"
	authadapter "archi_crm_backend/internal/auth/adapter"
	"archi_crm_backend/internal/clients"
	clientsrepo "archi_crm_backend/internal/clients/repository"
	"archi_crm_backend/internal/contacts"
	contactsrepo "archi_crm_backend/internal/contacts/repository"
	"archi_crm_backend/internal/email"
	"archi_crm_backend/internal/events"
	apphttp "archi_crm_backend/internal/http"
	"archi_crm_backend/internal/http/router"
	"archi_crm_backend/internal/leads"
	"archi_crm_backend/internal/notification"
	"archi_crm_backend/internal/pipeline"
	"archi_crm_backend/internal/scheduler"
	"archi_crm_backend/internal/search"
	"archi_crm_backend/internal/sms"
	"archi_crm_backend/internal/webhook"
	"archi_crm_backend/internal/whatsapp"
	"archi_crm_backend/platform/config"
	"archi_crm_backend/platform/db"
	"archi_crm_backend/platform/logger"
	"archi_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	queue, closeQueue := initQueue(cfg, log)
	if closeQueue != nil {
		defer closeQueue()
	}

	// Shared validator instance for dependency injection
	val := validator.New()
	if err := pipeline.RegisterValidations(val); err != nil {
		panic("failed to register pipeline validations: " + err.Error())
	}

	docs := initDocumentStore(ctx, cfg, log)

	// ========================================================================
	// Stage Reconciliation Engine
	// ========================================================================

	contactsRepo := contactsrepo.New(pool)
	clientsRepo := clientsrepo.New(pool)
	retrier := db.NewRetrier(cfg, log)
	executor := pipeline.NewExecutor(contactsRepo, clientsRepo, pipeline.NewBusNotifier(eventBus), retrier, log)
	reconciler := pipeline.NewReconciler(contactsRepo, clientsRepo, executor, initLocker(cfg, log), log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	authModule, err := auth.NewModule(pool, cfg, val, log)
	if err != nil {
		log.Error("failed to initialize auth module", "error", err)
		panic("failed to initialize auth module: " + err.Error())
	}

	// Notification module subscribes to domain events
	notificationModule := notification.New(pool, authadapter.NewRecipientDirectory(authModule.Repository()), initChannels(cfg, log), cfg, log)
	notificationModule.RegisterHandlers(eventBus)
	if queue != nil {
		notificationModule.SetQueue(queue)
	}

	leadsModule := leads.NewModule(pool, contactsRepo, executor, retrier, eventBus, val, log)
	contactsModule := contacts.NewModule(contactsRepo, clientsRepo, executor, reconciler, retrier, eventBus, val, log)
	clientsModule := clients.NewModule(clientsRepo, contactsRepo, executor, retrier, docs, val, log)

	var reminders appointmentsservice.ReminderScheduler
	if queue != nil {
		reminders = queue
	}
	appointmentsModule := appointments.NewModule(pool, eventBus, reminders, val, log)
	webhookModule := webhook.NewModule(pool, leadsModule.Service(), val, log)
	searchModule := search.NewModule(pool, val)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			authModule,
			notificationModule,
			leadsModule,
			contactsModule,
			clientsModule,
			appointmentsModule,
			webhookModule,
			searchModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initQueue connects the asynq client used for reminders and notification
// delivery. Without Redis both run inline.
func initQueue(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if !cfg.IsSchedulerEnabled() {
		log.Warn("REDIS_URL not configured; reminders disabled and notifications delivered inline")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func initLocker(cfg config.SchedulerConfig, log *logger.Logger) pipeline.Locker {
	if !cfg.IsSchedulerEnabled() {
		return nil
	}
	client, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize reconcile lock client", "error", err)
		return nil
	}
	return pipeline.NewRedisLocker(client)
}

// initDocumentStore returns nil when MinIO is not configured; devis document
// endpoints then answer 503.
func initDocumentStore(ctx context.Context, cfg *config.Config, log *logger.Logger) storage.DocumentStore {
	if !cfg.IsMinIOEnabled() {
		log.Warn("MinIO not configured; devis documents disabled")
		return nil
	}

	svc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}
	if err := withRetry(ctx, log, "ensure devis bucket", 5, 2*time.Second, func() error {
		return svc.EnsureBucketExists(ctx)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", cfg.GetMinioBucketDevisDocuments())
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
	log.Info("storage service initialized", "devisBucket", cfg.GetMinioBucketDevisDocuments())
	return svc
}

func initChannels(cfg *config.Config, log *logger.Logger) notification.Channels {
	var ch notification.Channels
	if cfg.IsWhatsAppEnabled() {
		ch.WhatsApp = whatsapp.NewClient(cfg, log)
	}
	if cfg.IsSMSEnabled() {
		ch.SMS = sms.NewSender(cfg)
	}
	if cfg.IsEmailEnabled() {
		ch.Email = email.NewSMTPSender(cfg)
	}
	return ch
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
