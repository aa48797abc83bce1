// Package service holds the appointment (rendez-vous) use cases.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"archi_crm_backend/internal/appointments/repository"
	"archi_crm_backend/internal/appointments/transport"
	"archi_crm_backend/internal/events"
	"archi_crm_backend/platform/apperr"
	"archi_crm_backend/platform/httpkit"
	"archi_crm_backend/platform/logger"
	"archi_crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	dateFormat           = "2006-01-02"
	errEndTimeAfterStart = "endTime must be after startTime"
	reminderLead         = 24 * time.Hour
	reminderSlack        = 15 * time.Minute
)

// Repository is what the service needs from appointment storage.
type Repository interface {
	Create(ctx context.Context, a repository.Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (repository.Appointment, error)
	List(ctx context.Context, p repository.ListParams) ([]repository.Appointment, int, error)
	ListOverlapping(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]repository.Appointment, error)
	Update(ctx context.Context, a repository.Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ReminderScheduler queues a reminder to run at a given time.
type ReminderScheduler interface {
	ScheduleAppointmentReminder(ctx context.Context, appointmentID uuid.UUID, runAt time.Time) error
}

// Service provides business logic for appointments
type Service struct {
	repo      Repository
	bus       events.Bus
	reminders ReminderScheduler
	log       *logger.Logger
	now       func() time.Time
}

// New creates the service. bus and reminders may be nil.
func New(repo Repository, bus events.Bus, reminders ReminderScheduler, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, reminders: reminders, log: log, now: time.Now}
}

// SetReminderScheduler enables 24h reminders once a queue is available.
func (s *Service) SetReminderScheduler(r ReminderScheduler) {
	s.reminders = r
}

func (s *Service) Create(ctx context.Context, id httpkit.Identity, req transport.CreateAppointmentRequest) (transport.AppointmentResponse, error) {
	if !req.EndTime.After(req.StartTime) {
		return transport.AppointmentResponse{}, apperr.BadRequest(errEndTimeAfterStart)
	}
	userID := id.UserID()
	if err := s.checkTimeConflict(ctx, userID, req.StartTime, req.EndTime, uuid.Nil); err != nil {
		return transport.AppointmentResponse{}, err
	}

	now := s.now()
	appt := repository.Appointment{
		ID:           uuid.New(),
		Title:        sanitize.Text(req.Title),
		Description:  sanitize.TextPtr(nilIfEmpty(req.Description)),
		Location:     nilIfEmpty(strings.TrimSpace(req.Location)),
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Status:       string(transport.AppointmentStatusScheduled),
		ContactID:    req.ContactID,
		LeadID:       req.LeadID,
		CreatedBy:    userID,
		Participants: uniqueParticipants(req.Participants),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		return transport.AppointmentResponse{}, err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.AppointmentCreated{
			BaseEvent:     events.NewBaseEvent(),
			AppointmentID: appt.ID,
			Title:         appt.Title,
			StartTime:     appt.StartTime,
			EndTime:       appt.EndTime,
			Location:      getOptionalString(appt.Location),
			CreatedBy:     userID,
			Participants:  appt.Participants,
		})
	}
	s.scheduleReminder(ctx, appt)
	return toResponse(appt), nil
}

// checkTimeConflict rejects a slot that overlaps another scheduled appointment
// of userID, ignoring excludeID.
func (s *Service) checkTimeConflict(ctx context.Context, userID uuid.UUID, start, end time.Time, excludeID uuid.UUID) error {
	existing, err := s.repo.ListOverlapping(ctx, userID, start, end)
	if err != nil {
		return err
	}
	for _, appt := range existing {
		if excludeID != uuid.Nil && appt.ID == excludeID {
			continue
		}
		if start.Before(appt.EndTime) && end.After(appt.StartTime) {
			return apperr.Conflict("timeslot already booked")
		}
	}
	return nil
}

// scheduleReminder queues a reminder 24h before start. A reminder that would
// already be due is skipped.
func (s *Service) scheduleReminder(ctx context.Context, appt repository.Appointment) {
	if s.reminders == nil || appt.Status != string(transport.AppointmentStatusScheduled) {
		return
	}
	runAt := appt.StartTime.Add(-reminderLead)
	if !runAt.After(s.now()) {
		return
	}
	if err := s.reminders.ScheduleAppointmentReminder(ctx, appt.ID, runAt); err != nil {
		s.log.SideEffectFailed("schedule_appointment_reminder", appt.ID.String(), err)
	}
}

// load fetches an appointment the caller created or attends.
func (s *Service) load(ctx context.Context, id httpkit.Identity, appointmentID uuid.UUID) (repository.Appointment, error) {
	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return repository.Appointment{}, err
	}
	if !id.IsPrivileged() && !appt.Involves(id.UserID()) {
		return repository.Appointment{}, repository.ErrNotFound
	}
	return appt, nil
}

func (s *Service) Get(ctx context.Context, id httpkit.Identity, appointmentID uuid.UUID) (transport.AppointmentResponse, error) {
	appt, err := s.load(ctx, id, appointmentID)
	if err != nil {
		return transport.AppointmentResponse{}, err
	}
	return toResponse(appt), nil
}

func (s *Service) List(ctx context.Context, id httpkit.Identity, req transport.ListAppointmentsRequest) (transport.AppointmentListResponse, error) {
	params, err := buildListParams(id, req)
	if err != nil {
		return transport.AppointmentListResponse{}, err
	}
	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.AppointmentListResponse{}, err
	}

	resp := transport.AppointmentListResponse{
		Items:      make([]transport.AppointmentResponse, len(items)),
		Total:      total,
		Page:       params.Offset/params.Limit + 1,
		PageSize:   params.Limit,
		TotalPages: (total + params.Limit - 1) / params.Limit,
	}
	for i, a := range items {
		resp.Items[i] = toResponse(a)
	}
	return resp, nil
}

func buildListParams(id httpkit.Identity, req transport.ListAppointmentsRequest) (repository.ListParams, error) {
	page := max(req.Page, 1)
	pageSize := clampPageSize(req.PageSize)
	params := repository.ListParams{
		Status: req.Status,
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}
	if !id.IsPrivileged() {
		uid := id.UserID()
		params.UserID = &uid
	}

	var err error
	if params.ContactID, err = parseUUIDFilter(req.ContactID, "contactId"); err != nil {
		return repository.ListParams{}, err
	}
	if params.LeadID, err = parseUUIDFilter(req.LeadID, "leadId"); err != nil {
		return repository.ListParams{}, err
	}
	if params.StartFrom, err = parseDateFilter(req.StartFrom, "startFrom"); err != nil {
		return repository.ListParams{}, err
	}
	if params.StartTo, err = parseDateFilter(req.StartTo, "startTo"); err != nil {
		return repository.ListParams{}, err
	}
	if params.StartTo != nil {
		endOfDay := params.StartTo.Add(24*time.Hour - time.Nanosecond)
		params.StartTo = &endOfDay
	}
	return params, nil
}

// Update edits an appointment. Only its creator or a privileged user may edit.
func (s *Service) Update(ctx context.Context, id httpkit.Identity, appointmentID uuid.UUID, req transport.UpdateAppointmentRequest) (transport.AppointmentResponse, error) {
	appt, err := s.load(ctx, id, appointmentID)
	if err != nil {
		return transport.AppointmentResponse{}, err
	}
	if !id.IsPrivileged() && appt.CreatedBy != id.UserID() {
		return transport.AppointmentResponse{}, apperr.Forbidden("not authorized to update this appointment")
	}

	previousStart := appt.StartTime
	applyAppointmentUpdates(&appt, req)
	if !appt.EndTime.After(appt.StartTime) {
		return transport.AppointmentResponse{}, apperr.BadRequest(errEndTimeAfterStart)
	}
	if req.StartTime != nil || req.EndTime != nil {
		if err := s.checkTimeConflict(ctx, appt.CreatedBy, appt.StartTime, appt.EndTime, appt.ID); err != nil {
			return transport.AppointmentResponse{}, err
		}
	}

	appt.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, appt); err != nil {
		return transport.AppointmentResponse{}, err
	}

	s.publishUpdated(ctx, appt, id.UserID())
	if !appt.StartTime.Equal(previousStart) {
		s.scheduleReminder(ctx, appt)
	}
	return toResponse(appt), nil
}

// applyAppointmentUpdates applies partial updates from the request to the appointment.
func applyAppointmentUpdates(appt *repository.Appointment, req transport.UpdateAppointmentRequest) {
	if req.Title != nil {
		appt.Title = sanitize.Text(*req.Title)
	}
	if req.Description != nil {
		appt.Description = sanitize.TextPtr(nilIfEmpty(*req.Description))
	}
	if req.Location != nil {
		appt.Location = nilIfEmpty(strings.TrimSpace(*req.Location))
	}
	if req.StartTime != nil {
		appt.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		appt.EndTime = *req.EndTime
	}
	if req.Participants != nil {
		appt.Participants = uniqueParticipants(*req.Participants)
	}
}

func (s *Service) UpdateStatus(ctx context.Context, id httpkit.Identity, appointmentID uuid.UUID, req transport.UpdateAppointmentStatusRequest) (transport.AppointmentResponse, error) {
	appt, err := s.load(ctx, id, appointmentID)
	if err != nil {
		return transport.AppointmentResponse{}, err
	}
	if appt.Status == string(req.Status) {
		return toResponse(appt), nil
	}

	appt.Status = string(req.Status)
	appt.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, appt); err != nil {
		return transport.AppointmentResponse{}, err
	}
	if req.Status == transport.AppointmentStatusCancelled {
		s.publishUpdated(ctx, appt, id.UserID())
	}
	return toResponse(appt), nil
}

func (s *Service) Delete(ctx context.Context, id httpkit.Identity, appointmentID uuid.UUID) error {
	appt, err := s.load(ctx, id, appointmentID)
	if err != nil {
		return err
	}
	if !id.IsPrivileged() && appt.CreatedBy != id.UserID() {
		return apperr.Forbidden("not authorized to delete this appointment")
	}
	return s.repo.Delete(ctx, appt.ID)
}

// SendReminder notifies the creator and participants of an appointment due
// within the next day. Reminders left over from a rescheduled or cancelled
// appointment are dropped.
func (s *Service) SendReminder(ctx context.Context, appointmentID uuid.UUID) error {
	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}
	if appt.Status != string(transport.AppointmentStatusScheduled) {
		return nil
	}
	until := appt.StartTime.Sub(s.now())
	if until <= 0 || until > reminderLead+reminderSlack {
		return nil
	}
	if s.bus == nil {
		return nil
	}

	body := fmt.Sprintf("%s, le %s", appt.Title, appt.StartTime.Format("02/01/2006 15:04"))
	if appt.Location != nil {
		body += " (" + *appt.Location + ")"
	}
	for _, userID := range uniqueParticipants(append([]uuid.UUID{appt.CreatedBy}, appt.Participants...)) {
		s.bus.Publish(ctx, events.NotificationRequested{
			BaseEvent: events.NewBaseEvent(),
			Recipient: userID.String(),
			Kind:      "rdv_reminder",
			Body:      body,
			Payload:   map[string]any{"appointmentId": appt.ID.String()},
		})
	}
	return nil
}

func (s *Service) publishUpdated(ctx context.Context, appt repository.Appointment, author uuid.UUID) {
	if s.bus == nil {
		return
	}
	participants := appt.Participants
	if author != appt.CreatedBy {
		participants = uniqueParticipants(append([]uuid.UUID{appt.CreatedBy}, participants...))
	}
	s.bus.Publish(ctx, events.AppointmentUpdated{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: appt.ID,
		Title:         appt.Title,
		StartTime:     appt.StartTime,
		EndTime:       appt.EndTime,
		Location:      getOptionalString(appt.Location),
		UpdatedBy:     author,
		Participants:  participants,
	})
}

func toResponse(a repository.Appointment) transport.AppointmentResponse {
	participants := a.Participants
	if participants == nil {
		participants = []uuid.UUID{}
	}
	return transport.AppointmentResponse{
		ID:           a.ID,
		Title:        a.Title,
		Description:  a.Description,
		Location:     a.Location,
		StartTime:    a.StartTime,
		EndTime:      a.EndTime,
		Status:       transport.AppointmentStatus(a.Status),
		ContactID:    a.ContactID,
		LeadID:       a.LeadID,
		CreatedBy:    a.CreatedBy,
		Participants: participants,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func uniqueParticipants(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// clampPageSize ensures page size is within valid range.
func clampPageSize(size int) int {
	if size < 1 || size > 100 {
		return 50
	}
	return size
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func getOptionalString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func parseUUIDFilter(s string, fieldName string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, apperr.BadRequest("invalid " + fieldName)
	}
	return &id, nil
}

func parseDateFilter(s string, fieldName string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return nil, apperr.BadRequest("invalid " + fieldName + " format, expected YYYY-MM-DD")
	}
	return &t, nil
}
