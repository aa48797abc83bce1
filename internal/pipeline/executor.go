// Package pipeline executes the decisions of the stage reconciliation engine
// against storage and the notification dispatcher.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"archi_crm_backend/internal/pipeline/domain"
	"archi_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// ContactGateway is the primary store of contacts, opportunities, notes and timeline.
type ContactGateway interface {
	SetContactTag(ctx context.Context, contactID uuid.UUID, tag domain.ContactTag, clientSince *time.Time) error
	SetContactStatus(ctx context.Context, contactID uuid.UUID, status domain.Stage, leadStatus *domain.Stage) error
	SetOpportunityStage(ctx context.Context, opportunityID uuid.UUID, stage domain.PipelineStage) error
	AppendTimeline(ctx context.Context, entry domain.TimelineEntry) error
	CopyNotes(ctx context.Context, contactID uuid.UUID, notes []domain.Note) error
}

// ClientGateway is the store of client records, their stage history and historique.
type ClientGateway interface {
	UpsertMirror(ctx context.Context, mirror domain.ClientMirror, setStage bool) error
	DeleteMirror(ctx context.Context, key string) error
	CloseStageInterval(ctx context.Context, clientKey string, endedAt time.Time) error
	OpenStageInterval(ctx context.Context, clientKey string, stage domain.Stage, startedAt time.Time) error
	SetClientStage(ctx context.Context, client domain.ClientRecord, stage domain.Stage) error
	AppendHistorique(ctx context.Context, entry domain.HistoriqueEntry) error
}

// Notifier dispatches user notifications without blocking the caller.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notify)
}

// Retrier runs a primary write with bounded retries.
type Retrier interface {
	Do(ctx context.Context, op string, fn func(ctx context.Context) error) error
}

// Executor applies effect lists in order. Primary effects are retried and
// abort the list on failure; secondary effects are attempted once and their
// failures only logged.
type Executor struct {
	contacts ContactGateway
	clients  ClientGateway
	notifier Notifier
	retrier  Retrier
	log      *logger.Logger
}

// NewExecutor wires an executor. notifier may be nil.
func NewExecutor(contacts ContactGateway, clients ClientGateway, notifier Notifier, retrier Retrier, log *logger.Logger) *Executor {
	return &Executor{contacts: contacts, clients: clients, notifier: notifier, retrier: retrier, log: log}
}

// Apply runs effects against the gateways.
func (x *Executor) Apply(ctx context.Context, effects []domain.Effect) error {
	for _, effect := range effects {
		if err := x.apply(ctx, effect); err != nil {
			return err
		}
	}
	return nil
}

func (x *Executor) apply(ctx context.Context, effect domain.Effect) error {
	switch e := effect.(type) {
	case domain.SetContactTag:
		return x.primary(ctx, "set_contact_tag", func(ctx context.Context) error {
			return x.contacts.SetContactTag(ctx, e.ContactID, e.Tag, e.ClientSince)
		})
	case domain.SetContactStatus:
		return x.primary(ctx, "set_contact_status", func(ctx context.Context) error {
			return x.contacts.SetContactStatus(ctx, e.ContactID, e.Status, e.LeadStatus)
		})
	case domain.PromoteOpportunity:
		return x.primary(ctx, "promote_opportunity", func(ctx context.Context) error {
			return x.contacts.SetOpportunityStage(ctx, e.OpportunityID, e.To)
		})
	case domain.AppendTimeline:
		return x.primary(ctx, "append_timeline", func(ctx context.Context) error {
			return x.contacts.AppendTimeline(ctx, e.Entry)
		})
	case domain.CopyNotes:
		x.secondary(ctx, "copy_notes", e.ContactID.String(), func(ctx context.Context) error {
			return x.contacts.CopyNotes(ctx, e.ContactID, e.Notes)
		})
	case domain.TransitionClientStage:
		return x.transition(ctx, e)
	case domain.UpsertMirror:
		x.secondary(ctx, "upsert_mirror", e.Mirror.Key, func(ctx context.Context) error {
			return x.clients.UpsertMirror(ctx, e.Mirror, e.SetStage)
		})
	case domain.DeleteMirror:
		x.secondary(ctx, "delete_mirror", e.Key, func(ctx context.Context) error {
			return x.clients.DeleteMirror(ctx, e.Key)
		})
	case domain.AppendHistorique:
		x.secondary(ctx, "append_historique", e.Entry.ClientKey, func(ctx context.Context) error {
			return x.clients.AppendHistorique(ctx, e.Entry)
		})
	case domain.Notify:
		if x.notifier != nil && e.Recipient != "" {
			x.notifier.Notify(ctx, e)
		}
	default:
		return fmt.Errorf("unhandled effect %T", effect)
	}
	return nil
}

// transition closes the open interval, opens the next one, stores the stage
// and appends historique. The two interval writes are not atomic: a crash in
// between leaves the client with no open interval until its next transition.
func (x *Executor) transition(ctx context.Context, t domain.TransitionClientStage) error {
	steps := []struct {
		op string
		fn func(ctx context.Context) error
	}{
		{"close_stage_interval", func(ctx context.Context) error {
			return x.clients.CloseStageInterval(ctx, t.Client.Key, t.At)
		}},
		{"open_stage_interval", func(ctx context.Context) error {
			return x.clients.OpenStageInterval(ctx, t.Client.Key, t.To, t.At)
		}},
		{"set_client_stage", func(ctx context.Context) error {
			return x.clients.SetClientStage(ctx, t.Client, t.To)
		}},
	}

	for _, step := range steps {
		if t.BestEffort {
			if !x.secondary(ctx, step.op, t.Client.Key, step.fn) {
				return nil
			}
			continue
		}
		if err := x.primary(ctx, step.op, step.fn); err != nil {
			return err
		}
	}

	x.log.StageTransition(t.Client.Key, string(t.From), string(t.To), t.Reason)
	x.secondary(ctx, "append_historique", t.Client.Key, func(ctx context.Context) error {
		return x.clients.AppendHistorique(ctx, domain.HistoriqueEntry{
			ClientKey:   t.Client.Key,
			Type:        historiqueType(t.Reason),
			Description: t.Reason + " : " + t.From.Label() + " → " + t.To.Label(),
			OldValue:    string(t.From),
			NewValue:    string(t.To),
			Author:      t.Actor.Name,
			At:          t.At,
		})
	})
	return nil
}

func historiqueType(reason string) string {
	if strings.HasPrefix(reason, domain.HistoriqueAutoProgression) {
		return domain.HistoriqueAutoProgression
	}
	return domain.HistoriqueStageChange
}

func (x *Executor) primary(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if x.retrier == nil {
		return fn(ctx)
	}
	return x.retrier.Do(ctx, op, fn)
}

// secondary runs fn once and reports whether it succeeded.
func (x *Executor) secondary(ctx context.Context, op, subject string, fn func(ctx context.Context) error) bool {
	if err := fn(ctx); err != nil {
		x.log.SideEffectFailed(op, subject, err)
		return false
	}
	return true
}
