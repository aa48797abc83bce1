// Package dispatch delivers user notifications over every channel the
// recipient accepts. Channel failures never reach the caller.
package dispatch

import (
	"context"
	"log/slog"
	"strings"

	"archi_crm_backend/internal/notification/inapp"
	"archi_crm_backend/platform/apperr"
	"archi_crm_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Request is one notification for one user. It is also the asynq task payload.
type Request struct {
	Recipient string         `json:"recipient"`
	Kind      string         `json:"kind"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Recipient is a resolved user with channel preferences.
type Recipient struct {
	UserID         uuid.UUID
	Name           string
	Email          string
	Phone          string
	NotifyWhatsApp bool
	NotifySMS      bool
	NotifyEmail    bool
}

// Directory resolves a user id or display name to a recipient.
// Unknown references return an apperr.KindNotFound error.
type Directory interface {
	ResolveRecipient(ctx context.Context, ref string) (Recipient, error)
}

// InAppWriter stores the bell notification.
type InAppWriter interface {
	Send(ctx context.Context, p inapp.SendParams) error
}

// Channel is an outbound delivery path.
type Channel interface {
	Name() string
	Accepts(r Recipient) bool
	Deliver(ctx context.Context, r Recipient, m Message) error
}

type Dispatcher struct {
	dir      Directory
	inapp    InAppWriter
	channels []Channel
	baseURL  string
	log      *logger.Logger
}

func New(dir Directory, inappWriter InAppWriter, baseURL string, log *logger.Logger, channels ...Channel) *Dispatcher {
	return &Dispatcher{
		dir:      dir,
		inapp:    inappWriter,
		channels: channels,
		baseURL:  strings.TrimRight(baseURL, "/"),
		log:      log,
	}
}

// Deliver writes the in-app record, then fans out to external channels concurrently.
// Only a directory outage is returned, so queued deliveries can be retried.
func (d *Dispatcher) Deliver(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.Recipient) == "" {
		return nil
	}

	r, err := d.dir.ResolveRecipient(ctx, req.Recipient)
	if apperr.Is(err, apperr.KindNotFound) {
		d.log.Debug("notification recipient not found", slog.String("recipient", req.Recipient), slog.String("kind", req.Kind))
		return nil
	}
	if err != nil {
		return err
	}

	msg := d.render(req)

	if d.inapp != nil {
		if err := d.inapp.Send(ctx, inapp.SendParams{
			UserID:  r.UserID,
			Kind:    req.Kind,
			Title:   msg.Title,
			Body:    msg.Body,
			Payload: req.Payload,
		}); err != nil {
			d.log.SideEffectFailed("notify_inapp", r.UserID.String(), err)
		}
	}

	var g errgroup.Group
	for _, ch := range d.channels {
		if !ch.Accepts(r) {
			continue
		}
		g.Go(func() error {
			if err := ch.Deliver(ctx, r, msg); err != nil {
				d.log.SideEffectFailed("notify_"+ch.Name(), r.UserID.String(), err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return nil
}
