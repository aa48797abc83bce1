package service

import (
	"context"
	"testing"
	"time"

	"archi_crm_backend/internal/appointments/repository"
	"archi_crm_backend/internal/appointments/transport"
	"archi_crm_backend/internal/events"
	"archi_crm_backend/platform/apperr"
	"archi_crm_backend/platform/httpkit"
	"archi_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	items map[uuid.UUID]repository.Appointment
}

func (f *fakeRepo) Create(_ context.Context, a repository.Appointment) error {
	f.items[a.ID] = a
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Appointment, error) {
	a, ok := f.items[id]
	if !ok {
		return repository.Appointment{}, repository.ErrNotFound
	}
	return a, nil
}

func (f *fakeRepo) List(_ context.Context, p repository.ListParams) ([]repository.Appointment, int, error) {
	var out []repository.Appointment
	for _, a := range f.items {
		if p.UserID != nil && !a.Involves(*p.UserID) {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

func (f *fakeRepo) ListOverlapping(_ context.Context, userID uuid.UUID, start, end time.Time) ([]repository.Appointment, error) {
	var out []repository.Appointment
	for _, a := range f.items {
		if a.Status == "scheduled" && a.Involves(userID) && a.StartTime.Before(end) && a.EndTime.After(start) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRepo) Update(_ context.Context, a repository.Appointment) error {
	f.items[a.ID] = a
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.items, id)
	return nil
}

type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) { b.published = append(b.published, e) }
func (b *recordingBus) PublishSync(_ context.Context, e events.Event) error {
	b.published = append(b.published, e)
	return nil
}
func (b *recordingBus) Subscribe(string, events.Handler) {}

type recordingReminders struct {
	scheduled map[uuid.UUID]time.Time
}

func (r *recordingReminders) ScheduleAppointmentReminder(_ context.Context, id uuid.UUID, runAt time.Time) error {
	r.scheduled[id] = runAt
	return nil
}

var now = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	repo      *fakeRepo
	bus       *recordingBus
	reminders *recordingReminders
	architect httpkit.Identity
}

func newFixture() fixture {
	repo := &fakeRepo{items: map[uuid.UUID]repository.Appointment{}}
	bus := &recordingBus{}
	reminders := &recordingReminders{scheduled: map[uuid.UUID]time.Time{}}
	svc := New(repo, bus, reminders, logger.New("test"))
	svc.now = func() time.Time { return now }
	return fixture{
		svc:       svc,
		repo:      repo,
		bus:       bus,
		reminders: reminders,
		architect: httpkit.NewIdentity(uuid.New(), "salma@example.com", "Salma", httpkit.RoleArchitect),
	}
}

func (f fixture) create(t *testing.T, start time.Time, participants ...uuid.UUID) transport.AppointmentResponse {
	t.Helper()
	resp, err := f.svc.Create(context.Background(), f.architect, transport.CreateAppointmentRequest{
		Title:        "Visite chantier",
		Location:     "Anfa",
		StartTime:    start,
		EndTime:      start.Add(time.Hour),
		Participants: participants,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return resp
}

func TestCreatePublishesEventAndSchedulesReminder(t *testing.T) {
	f := newFixture()
	guest := uuid.New()
	start := now.Add(72 * time.Hour)
	resp := f.create(t, start, guest, guest)

	if len(resp.Participants) != 1 {
		t.Fatalf("expected duplicate participants removed, got %v", resp.Participants)
	}
	if len(f.bus.published) != 1 {
		t.Fatalf("expected one event, got %d", len(f.bus.published))
	}
	created, ok := f.bus.published[0].(events.AppointmentCreated)
	if !ok || created.AppointmentID != resp.ID || created.CreatedBy != f.architect.UserID() {
		t.Fatalf("unexpected event: %+v", f.bus.published[0])
	}
	if runAt := f.reminders.scheduled[resp.ID]; !runAt.Equal(start.Add(-24 * time.Hour)) {
		t.Fatalf("expected reminder 24h before start, got %v", runAt)
	}
}

func TestCreateSkipsReminderInsideLastDay(t *testing.T) {
	f := newFixture()
	resp := f.create(t, now.Add(3*time.Hour))
	if _, ok := f.reminders.scheduled[resp.ID]; ok {
		t.Fatal("reminder must not be scheduled in the past")
	}
}

func TestCreateRejectsOverlap(t *testing.T) {
	f := newFixture()
	start := now.Add(48 * time.Hour)
	f.create(t, start)

	_, err := f.svc.Create(context.Background(), f.architect, transport.CreateAppointmentRequest{
		Title: "Autre", StartTime: start.Add(30 * time.Minute), EndTime: start.Add(90 * time.Minute),
	})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestParticipantCanReadButNotEdit(t *testing.T) {
	f := newFixture()
	guest := httpkit.NewIdentity(uuid.New(), "karim@example.com", "Karim", httpkit.RoleCommercial)
	resp := f.create(t, now.Add(48*time.Hour), guest.UserID())

	if _, err := f.svc.Get(context.Background(), guest, resp.ID); err != nil {
		t.Fatalf("participant should see appointment: %v", err)
	}
	title := "Nouveau titre"
	_, err := f.svc.Update(context.Background(), guest, resp.ID, transport.UpdateAppointmentRequest{Title: &title})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	stranger := httpkit.NewIdentity(uuid.New(), "x@example.com", "X", httpkit.RoleArchitect)
	if _, err := f.svc.Get(context.Background(), stranger, resp.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for stranger, got %v", err)
	}
}

func TestRescheduleReschedulesReminderAndPublishesUpdate(t *testing.T) {
	f := newFixture()
	resp := f.create(t, now.Add(48*time.Hour), uuid.New())

	newStart := now.Add(96 * time.Hour)
	newEnd := newStart.Add(time.Hour)
	if _, err := f.svc.Update(context.Background(), f.architect, resp.ID, transport.UpdateAppointmentRequest{StartTime: &newStart, EndTime: &newEnd}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if runAt := f.reminders.scheduled[resp.ID]; !runAt.Equal(newStart.Add(-24 * time.Hour)) {
		t.Fatalf("expected reminder moved, got %v", runAt)
	}
	if _, ok := f.bus.published[len(f.bus.published)-1].(events.AppointmentUpdated); !ok {
		t.Fatalf("expected update event, got %T", f.bus.published[len(f.bus.published)-1])
	}
}

func TestUpdateRejectsEndBeforeStart(t *testing.T) {
	f := newFixture()
	resp := f.create(t, now.Add(48*time.Hour))
	end := now
	_, err := f.svc.Update(context.Background(), f.architect, resp.ID, transport.UpdateAppointmentRequest{EndTime: &end})
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestSendReminderNotifiesCreatorAndParticipants(t *testing.T) {
	f := newFixture()
	guest := uuid.New()
	resp := f.create(t, now.Add(72*time.Hour), guest)
	f.bus.published = nil

	f.svc.now = func() time.Time { return now.Add(48 * time.Hour) }
	if err := f.svc.SendReminder(context.Background(), resp.ID); err != nil {
		t.Fatalf("send reminder: %v", err)
	}
	if len(f.bus.published) != 2 {
		t.Fatalf("expected two notifications, got %d", len(f.bus.published))
	}
	for _, e := range f.bus.published {
		n, ok := e.(events.NotificationRequested)
		if !ok || n.Kind != "rdv_reminder" {
			t.Fatalf("unexpected event: %+v", e)
		}
	}
}

func TestSendReminderDropsStaleReminder(t *testing.T) {
	f := newFixture()
	resp := f.create(t, now.Add(72*time.Hour))
	f.bus.published = nil

	// still two days out: the reminder belongs to an earlier schedule
	if err := f.svc.SendReminder(context.Background(), resp.ID); err != nil {
		t.Fatalf("send reminder: %v", err)
	}
	if len(f.bus.published) != 0 {
		t.Fatalf("expected early reminder dropped, got %d", len(f.bus.published))
	}
	if _, err := f.svc.UpdateStatus(context.Background(), f.architect, resp.ID, transport.UpdateAppointmentStatusRequest{Status: transport.AppointmentStatusCancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	f.bus.published = nil
	f.svc.now = func() time.Time { return now.Add(60 * time.Hour) }
	if err := f.svc.SendReminder(context.Background(), resp.ID); err != nil {
		t.Fatalf("send reminder: %v", err)
	}
	if len(f.bus.published) != 0 {
		t.Fatalf("expected no notification, got %d", len(f.bus.published))
	}
}

func TestListRestrictsNonPrivilegedCallers(t *testing.T) {
	f := newFixture()
	f.create(t, now.Add(48*time.Hour))
	other := httpkit.NewIdentity(uuid.New(), "o@example.com", "O", httpkit.RoleArchitect)

	resp, err := f.svc.List(context.Background(), other, transport.ListAppointmentsRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp.Total != 0 {
		t.Fatalf("expected nothing visible, got %d", resp.Total)
	}
}
