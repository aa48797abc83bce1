package notification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"archi_crm_backend/internal/events"
	"archi_crm_backend/internal/notification/dispatch"
	"archi_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type recordingDeliverer struct {
	mu   sync.Mutex
	reqs []dispatch.Request
}

func (d *recordingDeliverer) Deliver(_ context.Context, req dispatch.Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reqs = append(d.reqs, req)
	return nil
}

type fakeQueue struct {
	err  error
	reqs []dispatch.Request
}

func (q *fakeQueue) EnqueueNotification(_ context.Context, req dispatch.Request) error {
	if q.err != nil {
		return q.err
	}
	q.reqs = append(q.reqs, req)
	return nil
}

func TestNotificationRequestedDeliversInlineWithoutQueue(t *testing.T) {
	d := &recordingDeliverer{}
	m := newModule(d, nil, logger.New("test"))

	err := m.Handle(context.Background(), events.NotificationRequested{Recipient: "Yasmine", Kind: "assignment", Body: "Villa Anfa"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.reqs) != 1 || d.reqs[0].Recipient != "Yasmine" || d.reqs[0].Kind != "assignment" {
		t.Fatalf("unexpected deliveries: %+v", d.reqs)
	}
}

func TestNotificationRequestedPrefersQueue(t *testing.T) {
	d := &recordingDeliverer{}
	q := &fakeQueue{}
	m := newModule(d, q, logger.New("test"))

	_ = m.Handle(context.Background(), events.NotificationRequested{Recipient: "Yasmine", Kind: "assignment"})
	if len(q.reqs) != 1 || len(d.reqs) != 0 {
		t.Fatalf("expected queued only, got queue=%d inline=%d", len(q.reqs), len(d.reqs))
	}
}

func TestQueueFailureFallsBackToInline(t *testing.T) {
	d := &recordingDeliverer{}
	m := newModule(d, &fakeQueue{err: errors.New("redis down")}, logger.New("test"))

	_ = m.Handle(context.Background(), events.NotificationRequested{Recipient: "Yasmine", Kind: "assignment"})
	if len(d.reqs) != 1 {
		t.Fatalf("expected inline fallback, got %d", len(d.reqs))
	}
}

func TestEmptyRecipientIsIgnored(t *testing.T) {
	d := &recordingDeliverer{}
	m := newModule(d, nil, logger.New("test"))
	_ = m.Handle(context.Background(), events.NotificationRequested{Kind: "assignment"})
	if len(d.reqs) != 0 {
		t.Fatal("expected no delivery")
	}
}

func TestAppointmentCreatedNotifiesParticipantsExceptAuthor(t *testing.T) {
	d := &recordingDeliverer{}
	m := newModule(d, nil, logger.New("test"))

	author, p1, p2 := uuid.New(), uuid.New(), uuid.New()
	apptID := uuid.New()
	err := m.Handle(context.Background(), events.AppointmentCreated{
		AppointmentID: apptID,
		Title:         "Visite chantier",
		StartTime:     time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
		Location:      "Anfa",
		CreatedBy:     author,
		Participants:  []uuid.UUID{author, p1, p2, p1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.reqs) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(d.reqs))
	}
	for _, req := range d.reqs {
		if req.Recipient == author.String() {
			t.Fatal("author should not be notified")
		}
		if req.Kind != "rdv_created" || req.Payload["appointmentId"] != apptID.String() {
			t.Fatalf("unexpected request %+v", req)
		}
		if !strings.Contains(req.Body, "Visite chantier") || !strings.Contains(req.Body, "Anfa") {
			t.Fatalf("unexpected body %q", req.Body)
		}
	}
}

func TestAppointmentUpdatedUsesUpdateKind(t *testing.T) {
	d := &recordingDeliverer{}
	m := newModule(d, nil, logger.New("test"))

	_ = m.Handle(context.Background(), events.AppointmentUpdated{
		AppointmentID: uuid.New(),
		Title:         "Réunion",
		StartTime:     time.Now(),
		UpdatedBy:     uuid.New(),
		Participants:  []uuid.UUID{uuid.New()},
	})
	if len(d.reqs) != 1 || d.reqs[0].Kind != "rdv_updated" {
		t.Fatalf("unexpected deliveries %+v", d.reqs)
	}
}

func TestLeadCreatedNotifiesAssigneeOnly(t *testing.T) {
	d := &recordingDeliverer{}
	m := newModule(d, nil, logger.New("test"))

	creator := uuid.New()
	_ = m.Handle(context.Background(), events.LeadCreated{LeadID: uuid.New(), Name: "Karim", AssignedTo: creator.String(), CreatedBy: &creator})
	_ = m.Handle(context.Background(), events.LeadCreated{LeadID: uuid.New(), Name: "Salma"})
	if len(d.reqs) != 0 {
		t.Fatalf("expected no deliveries, got %+v", d.reqs)
	}

	_ = m.Handle(context.Background(), events.LeadCreated{LeadID: uuid.New(), Name: "Nadia", Source: "facebook", AssignedTo: "Youssef", CreatedBy: &creator})
	if len(d.reqs) != 1 || d.reqs[0].Recipient != "Youssef" || d.reqs[0].Body != "Nadia (facebook)" {
		t.Fatalf("unexpected deliveries %+v", d.reqs)
	}
}
