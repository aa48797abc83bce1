package pipeline

import (
	"context"
	"log/slog"
	"time"

	"archi_crm_backend/internal/pipeline/domain"
	"archi_crm_backend/platform/logger"

	"github.com/google/uuid"
)

const reconcileLockTTL = 2 * time.Minute

// ContactSource reads the source-of-truth state of a contact.
type ContactSource interface {
	GetContactState(ctx context.Context, contactID uuid.UUID) (domain.Contact, error)
	ListOpportunityStates(ctx context.Context, contactID uuid.UUID) ([]domain.Opportunity, error)
}

// MirrorSource reads the current mirror rows of a contact.
type MirrorSource interface {
	MirrorStages(ctx context.Context, contactID uuid.UUID) (map[string]domain.Stage, error)
}

// Locker serializes reconcile runs per contact across processes.
type Locker interface {
	// TryLock returns a release func and true when the lock was taken.
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error)
}

// Reconciler recomputes everything derived from a contact's opportunities.
// It is safe to call inline after a write and from the periodic sweep.
type Reconciler struct {
	contacts ContactSource
	mirrors  MirrorSource
	exec     *Executor
	locker   Locker
	log      *logger.Logger
	now      func() time.Time
}

// NewReconciler wires a reconciler. locker may be nil for single-process use.
func NewReconciler(contacts ContactSource, mirrors MirrorSource, exec *Executor, locker Locker, log *logger.Logger) *Reconciler {
	return &Reconciler{contacts: contacts, mirrors: mirrors, exec: exec, locker: locker, log: log, now: time.Now}
}

// Reconcile brings the contact's tag and mirror rows in line with its opportunities.
// A run already in progress elsewhere makes this call a no-op.
func (r *Reconciler) Reconcile(ctx context.Context, contactID uuid.UUID) error {
	if r.locker != nil {
		release, ok, err := r.locker.TryLock(ctx, "reconcile:contact:"+contactID.String(), reconcileLockTTL)
		if err != nil {
			return err
		}
		if !ok {
			r.log.Debug("reconcile already running", slog.String("contact_id", contactID.String()))
			return nil
		}
		defer release()
	}

	contact, err := r.contacts.GetContactState(ctx, contactID)
	if err != nil {
		return err
	}
	opps, err := r.contacts.ListOpportunityStates(ctx, contactID)
	if err != nil {
		return err
	}
	stages, err := r.mirrors.MirrorStages(ctx, contactID)
	if err != nil {
		return err
	}

	effects := domain.PlanReconcile(domain.ReconcileInput{
		Contact:       contact,
		Opportunities: opps,
		MirrorStages:  stages,
		Now:           r.now(),
	})
	return r.exec.Apply(ctx, effects)
}
