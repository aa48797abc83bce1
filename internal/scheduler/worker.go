package scheduler

import (
	"context"
	"fmt"

	"archi_crm_backend/internal/notification/dispatch"
	"archi_crm_backend/platform/config"
	"archi_crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Reconciler recomputes a contact's derived state.
type Reconciler interface {
	Reconcile(ctx context.Context, contactID uuid.UUID) error
}

// Deliverer sends one notification over every channel.
type Deliverer interface {
	Deliver(ctx context.Context, req dispatch.Request) error
}

// AppointmentReminder notifies the participants of an upcoming appointment.
type AppointmentReminder interface {
	SendReminder(ctx context.Context, appointmentID uuid.UUID) error
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	reconcile Reconciler
	deliver   Deliverer
	reminders AppointmentReminder
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, reconcile Reconciler, deliver Deliverer, reminders AppointmentReminder, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := &Worker{
		server:    server,
		mux:       asynq.NewServeMux(),
		reconcile: reconcile,
		deliver:   deliver,
		reminders: reminders,
		log:       log,
	}
	w.routes()

	return w, nil
}

func (w *Worker) routes() {
	w.mux.HandleFunc(TaskReconcileContact, w.handleReconcileContact)
	w.mux.HandleFunc(TaskNotificationDispatch, w.handleNotificationDispatch)
	w.mux.HandleFunc(TaskAppointmentReminder, w.handleAppointmentReminder)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleReconcileContact(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseReconcileContactPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	contactID, err := uuid.Parse(payload.ContactID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	return w.reconcile.Reconcile(ctx, contactID)
}

func (w *Worker) handleNotificationDispatch(ctx context.Context, task *asynq.Task) error {
	req, err := ParseNotificationDispatchPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return w.deliver.Deliver(ctx, req)
}

func (w *Worker) handleAppointmentReminder(ctx context.Context, task *asynq.Task) error {
	if w.reminders == nil {
		return nil
	}

	payload, err := ParseAppointmentReminderPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	apptID, err := uuid.Parse(payload.AppointmentID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	return w.reminders.SendReminder(ctx, apptID)
}
