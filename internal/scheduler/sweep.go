package scheduler

import (
	"context"

	"archi_crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ContactLister lists contacts that own at least one opportunity.
type ContactLister interface {
	ListContactIDsWithOpportunities(ctx context.Context) ([]uuid.UUID, error)
}

// ReconcileEnqueuer queues a reconcile task.
type ReconcileEnqueuer interface {
	EnqueueReconcile(ctx context.Context, contactID uuid.UUID) error
}

// ReconcileSweep periodically queues a reconcile of every contact with
// opportunities, repairing drift left by best-effort writes.
type ReconcileSweep struct {
	contacts ContactLister
	queue    ReconcileEnqueuer
	spec     string
	log      *logger.Logger
}

func NewReconcileSweep(contacts ContactLister, queue ReconcileEnqueuer, spec string, log *logger.Logger) *ReconcileSweep {
	if spec == "" {
		spec = "*/30 * * * *"
	}
	return &ReconcileSweep{contacts: contacts, queue: queue, spec: spec, log: log}
}

// Run blocks until ctx is cancelled.
func (s *ReconcileSweep) Run(ctx context.Context) error {
	if s == nil || s.contacts == nil || s.queue == nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.spec, func() { s.sweep(ctx) }); err != nil {
		return err
	}
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (s *ReconcileSweep) sweep(ctx context.Context) {
	ids, err := s.contacts.ListContactIDsWithOpportunities(ctx)
	if err != nil {
		s.log.Warn("reconcile sweep listing failed", "error", err)
		return
	}

	queued := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if err := s.queue.EnqueueReconcile(ctx, id); err != nil {
			s.log.Warn("reconcile sweep enqueue failed", "contact_id", id.String(), "error", err)
			continue
		}
		queued++
	}

	if queued > 0 {
		s.log.Info("reconcile sweep queued contacts", "queued", queued)
	}
}
