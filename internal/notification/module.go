// Package notification turns domain events into user notifications. It owns
// the in-app inbox, the channel dispatcher and the /notifications routes.
package notification

import (
	"context"
	"fmt"
	"time"

	"archi_crm_backend/internal/email"
	"archi_crm_backend/internal/events"
	apphttp "archi_crm_backend/internal/http"
	notifhandler "archi_crm_backend/internal/notification/handler"
	"archi_crm_backend/internal/notification/dispatch"
	"archi_crm_backend/internal/notification/inapp"
	"archi_crm_backend/internal/sms"
	"archi_crm_backend/internal/whatsapp"
	"archi_crm_backend/platform/config"
	"archi_crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Enqueuer hands a delivery to the background worker.
type Enqueuer interface {
	EnqueueNotification(ctx context.Context, req dispatch.Request) error
}

// Deliverer delivers a notification synchronously.
type Deliverer interface {
	Deliver(ctx context.Context, req dispatch.Request) error
}

// Channels groups the optional outbound senders. Nil members are skipped.
type Channels struct {
	WhatsApp *whatsapp.Client
	SMS      *sms.Sender
	Email    email.Sender
}

// Module handles all notification-related event subscriptions.
type Module struct {
	deliverer    Deliverer
	queue        Enqueuer
	inAppService *inapp.Service
	inAppHandler *notifhandler.HTTPHandler
	log          *logger.Logger
}

// New creates a new notification module.
func New(pool *pgxpool.Pool, dir dispatch.Directory, ch Channels, cfg config.NotificationConfig, log *logger.Logger) *Module {
	inAppSvc := inapp.NewService(inapp.NewRepository(pool), log)

	var channels []dispatch.Channel
	if ch.WhatsApp != nil {
		channels = append(channels, dispatch.WhatsApp(ch.WhatsApp))
	}
	if ch.SMS != nil {
		channels = append(channels, dispatch.SMS(ch.SMS))
	}
	if ch.Email != nil {
		channels = append(channels, dispatch.Email(ch.Email))
	}

	return &Module{
		deliverer:    dispatch.New(dir, inAppSvc, cfg.GetAppBaseURL(), log, channels...),
		inAppService: inAppSvc,
		inAppHandler: notifhandler.NewHTTPHandler(inAppSvc),
		log:          log,
	}
}

func newModule(deliverer Deliverer, queue Enqueuer, log *logger.Logger) *Module {
	return &Module{deliverer: deliverer, queue: queue, log: log}
}

func (m *Module) Name() string { return "notification" }

// RegisterRoutes registers notification API routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	if m.inAppHandler == nil {
		return
	}
	m.inAppHandler.RegisterRoutes(ctx.Protected.Group("/notifications"))
}

// SetQueue routes deliveries through the background worker instead of the
// publishing goroutine.
func (m *Module) SetQueue(q Enqueuer) { m.queue = q }

// Deliverer exposes the dispatcher for the worker process.
func (m *Module) Deliverer() Deliverer { return m.deliverer }

func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.NotificationRequested{}.EventName(), m)
	bus.Subscribe(events.AppointmentCreated{}.EventName(), m)
	bus.Subscribe(events.AppointmentUpdated{}.EventName(), m)
	bus.Subscribe(events.LeadCreated{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.NotificationRequested:
		return m.send(ctx, dispatch.Request{
			Recipient: e.Recipient,
			Kind:      e.Kind,
			Title:     e.Title,
			Body:      e.Body,
			Payload:   e.Payload,
		})
	case events.AppointmentCreated:
		return m.handleAppointment(ctx, "rdv_created", e.AppointmentID, e.Title, e.StartTime, e.Location, e.CreatedBy, e.Participants)
	case events.AppointmentUpdated:
		return m.handleAppointment(ctx, "rdv_updated", e.AppointmentID, e.Title, e.StartTime, e.Location, e.UpdatedBy, e.Participants)
	case events.LeadCreated:
		return m.handleLeadCreated(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

// handleAppointment notifies every participant except the author of the change.
func (m *Module) handleAppointment(ctx context.Context, kind string, apptID uuid.UUID, title string, start time.Time, location string, author uuid.UUID, participants []uuid.UUID) error {
	body := fmt.Sprintf("%s, le %s", title, start.In(casablanca()).Format("02/01/2006 à 15:04"))
	if location != "" {
		body += " (" + location + ")"
	}

	seen := make(map[uuid.UUID]struct{}, len(participants))
	for _, userID := range participants {
		if userID == author || userID == uuid.Nil {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		err := m.send(ctx, dispatch.Request{
			Recipient: userID.String(),
			Kind:      kind,
			Body:      body,
			Payload:   map[string]any{"appointmentId": apptID.String()},
		})
		if err != nil {
			m.log.SideEffectFailed("notify_"+kind, userID.String(), err)
		}
	}
	return nil
}

// handleLeadCreated tells the assignee about a lead someone else created.
func (m *Module) handleLeadCreated(ctx context.Context, e events.LeadCreated) error {
	if e.AssignedTo == "" {
		return nil
	}
	if e.CreatedBy != nil && e.AssignedTo == e.CreatedBy.String() {
		return nil
	}
	body := e.Name
	if e.Source != "" {
		body += " (" + e.Source + ")"
	}
	return m.send(ctx, dispatch.Request{
		Recipient: e.AssignedTo,
		Kind:      "assignment",
		Title:     "Nouveau lead assigné",
		Body:      body,
		Payload:   map[string]any{"leadId": e.LeadID.String()},
	})
}

// send queues the delivery when a worker is configured and falls back to
// delivering inline when the queue rejects it.
func (m *Module) send(ctx context.Context, req dispatch.Request) error {
	if req.Recipient == "" {
		return nil
	}
	if m.queue != nil {
		err := m.queue.EnqueueNotification(ctx, req)
		if err == nil {
			return nil
		}
		m.log.Warn("notification enqueue failed, delivering inline", "kind", req.Kind, "error", err)
	}
	return m.deliverer.Deliver(ctx, req)
}

func casablanca() *time.Location {
	loc, err := time.LoadLocation("Africa/Casablanca")
	if err != nil {
		return time.UTC
	}
	return loc
}
