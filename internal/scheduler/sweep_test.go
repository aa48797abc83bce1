package scheduler

import (
	"context"
	"errors"
	"testing"

	"archi_crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type staticLister struct {
	ids []uuid.UUID
	err error
}

func (l staticLister) ListContactIDsWithOpportunities(context.Context) ([]uuid.UUID, error) {
	return l.ids, l.err
}

type recordingQueue struct {
	queued []uuid.UUID
	failOn uuid.UUID
}

func (q *recordingQueue) EnqueueReconcile(_ context.Context, id uuid.UUID) error {
	if id == q.failOn {
		return errors.New("redis unavailable")
	}
	q.queued = append(q.queued, id)
	return nil
}

func TestSweepQueuesEveryContactAndSkipsFailures(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	q := &recordingQueue{failOn: b}
	s := NewReconcileSweep(staticLister{ids: []uuid.UUID{a, b, c}}, q, "", logger.New("test"))

	s.sweep(context.Background())

	if len(q.queued) != 2 || q.queued[0] != a || q.queued[1] != c {
		t.Fatalf("expected [a c] queued, got %v", q.queued)
	}
}

func TestSweepStopsOnListingError(t *testing.T) {
	q := &recordingQueue{}
	s := NewReconcileSweep(staticLister{err: errors.New("db down")}, q, "", logger.New("test"))
	s.sweep(context.Background())
	if len(q.queued) != 0 {
		t.Fatal("expected nothing queued")
	}
}

func TestRunRejectsInvalidCronSpec(t *testing.T) {
	s := NewReconcileSweep(staticLister{}, &recordingQueue{}, "not a cron", logger.New("test"))
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected invalid spec error")
	}
}

func TestTaskPayloadRoundTrip(t *testing.T) {
	id := uuid.New()
	task, err := NewReconcileContactTask(ReconcileContactPayload{ContactID: id.String()})
	if err != nil {
		t.Fatal(err)
	}
	if task.Type() != TaskReconcileContact {
		t.Fatalf("unexpected task type %q", task.Type())
	}
	got, err := ParseReconcileContactPayload(asynq.NewTask(task.Type(), task.Payload()))
	if err != nil || got.ContactID != id.String() {
		t.Fatalf("unexpected payload %+v (%v)", got, err)
	}
}
