package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"archi_crm_backend/internal/appointments"
	authadapter "archi_crm_backend/internal/auth/adapter"
	authrepo "archi_crm_backend/internal/auth/repository"
	clientsrepo "archi_crm_backend/internal/clients/repository"
	contactsrepo "archi_crm_backend/internal/contacts/repository"
	"archi_crm_backend/internal/email"
	"archi_crm_backend/internal/events"
	"archi_crm_backend/internal/notification"
	"archi_crm_backend/internal/pipeline"
	"archi_crm_backend/internal/scheduler"
	"archi_crm_backend/internal/sms"
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

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	if !cfg.IsSchedulerEnabled() {
		log.Error("REDIS_URL not configured; scheduler cannot start")
		panic("scheduler requires REDIS_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)

	queue, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = queue.Close() }()

	redisClient, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize reconcile lock client", "error", err)
		panic("failed to initialize reconcile lock client: " + err.Error())
	}
	defer func() { _ = redisClient.Close() }()

	notificationModule := notification.New(pool, authadapter.NewRecipientDirectory(authrepo.New(pool)), initChannels(cfg, log), cfg, log)
	notificationModule.RegisterHandlers(eventBus)
	notificationModule.SetQueue(queue)

	// Worker-side reconcile wiring (no HTTP handlers required).
	contactsRepo := contactsrepo.New(pool)
	clientsRepo := clientsrepo.New(pool)
	executor := pipeline.NewExecutor(contactsRepo, clientsRepo, pipeline.NewBusNotifier(eventBus), db.NewRetrier(cfg, log), log)
	reconciler := pipeline.NewReconciler(contactsRepo, clientsRepo, executor, pipeline.NewRedisLocker(redisClient), log)

	appointmentsModule := appointments.NewModule(pool, eventBus, queue, validator.New(), log)

	sweep := scheduler.NewReconcileSweep(contactsRepo, queue, cfg.GetReconcileSweepCron(), log)
	go func() {
		if err := sweep.Run(ctx); err != nil {
			log.Error("reconcile sweep stopped", "error", err)
		}
	}()

	worker, err := scheduler.NewWorker(cfg, reconciler, notificationModule.Deliverer(), appointmentsModule.Service, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
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
		return errors.New(name + ": invalid retry attempts")
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
