// Package service holds lead use cases: capture, qualification notes and the
// conversion of a lead into a pipeline contact.
package service

import (
	"context"
	"strings"
	"time"

	contactsrepo "archi_crm_backend/internal/contacts/repository"
	"archi_crm_backend/internal/events"
	"archi_crm_backend/internal/leads/repository"
	"archi_crm_backend/internal/leads/transport"
	"archi_crm_backend/internal/pipeline/domain"
	"archi_crm_backend/internal/shared/access"
	"archi_crm_backend/platform/apperr"
	"archi_crm_backend/platform/httpkit"
	"archi_crm_backend/platform/logger"
	"archi_crm_backend/platform/phone"

	"github.com/google/uuid"
)

const (
	defaultLeadStatus = "nouveau"
	captureSource     = "site_web"
)

// Repository is the lead storage the service needs.
type Repository interface {
	Create(ctx context.Context, p repository.CreateParams) (repository.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	List(ctx context.Context, p repository.ListParams) ([]repository.Lead, int, error)
	Update(ctx context.Context, id uuid.UUID, p repository.UpdateParams) (repository.Lead, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteConverted(ctx context.Context, leadID, contactID uuid.UUID) error
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	CreateNote(ctx context.Context, leadID uuid.UUID, kind, body, author string) (repository.Note, error)
	ListNotes(ctx context.Context, leadID uuid.UUID) ([]repository.Note, error)
}

// ContactStore is the part of contact storage conversion writes to.
type ContactStore interface {
	FindByLeadID(ctx context.Context, leadID uuid.UUID) (contactsrepo.Contact, error)
	CreateContact(ctx context.Context, p contactsrepo.CreateContactParams) (contactsrepo.Contact, error)
	GetContactState(ctx context.Context, contactID uuid.UUID) (domain.Contact, error)
}

// EffectApplier executes engine effects.
type EffectApplier interface {
	Apply(ctx context.Context, effects []domain.Effect) error
}

// Retrier retries primary writes on transient failures.
type Retrier interface {
	Do(ctx context.Context, op string, fn func(ctx context.Context) error) error
}

type Service struct {
	repo     Repository
	contacts ContactStore
	exec     EffectApplier
	retrier  Retrier
	bus      events.Bus
	log      *logger.Logger
	now      func() time.Time
}

func New(repo Repository, contacts ContactStore, exec EffectApplier, retrier Retrier, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, contacts: contacts, exec: exec, retrier: retrier, bus: bus, log: log, now: time.Now}
}

func (s *Service) write(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if s.retrier == nil {
		return fn(ctx)
	}
	return s.retrier.Do(ctx, op, fn)
}

func actorOf(id httpkit.Identity) domain.Actor {
	uid := id.UserID()
	name := strings.TrimSpace(id.Name())
	if name == "" {
		name = id.Email()
	}
	return domain.Actor{UserID: &uid, Name: name}
}

func normalizePhone(raw string) (string, error) {
	if !phone.IsValid(raw) {
		return "", apperr.Validation("invalid phone number")
	}
	return phone.NormalizeE164(raw), nil
}

func (s *Service) load(ctx context.Context, id httpkit.Identity, leadID uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return repository.Lead{}, err
	}
	if err := access.FromIdentity(id).Check(lead.Owned(), "lead"); err != nil {
		return repository.Lead{}, err
	}
	return lead, nil
}

// Create stores a lead. A phone already known as a lead or contact is a conflict.
func (s *Service) Create(ctx context.Context, id httpkit.Identity, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	assignedTo := strings.TrimSpace(req.AssignedTo)
	if assignedTo == "" && !id.IsPrivileged() {
		assignedTo = id.Name()
	}
	uid := id.UserID()
	return s.create(ctx, req, assignedTo, &uid, actorOf(id).Name)
}

// Capture stores a lead submitted by an external form. It has no author and
// is left unassigned unless the form names an architect.
func (s *Service) Capture(ctx context.Context, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	if strings.TrimSpace(req.Source) == "" {
		req.Source = captureSource
	}
	return s.create(ctx, req, strings.TrimSpace(req.AssignedTo), nil, captureSource)
}

func (s *Service) create(ctx context.Context, req transport.CreateLeadRequest, assignedTo string, createdBy *uuid.UUID, author string) (transport.LeadResponse, error) {
	normalized, err := normalizePhone(req.Phone)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	exists, err := s.repo.ExistsByPhone(ctx, normalized)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	if exists {
		return transport.LeadResponse{}, apperr.Conflict("a lead or contact with this phone already exists")
	}

	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = defaultLeadStatus
	}

	lead, err := s.repo.Create(ctx, repository.CreateParams{
		Name:         strings.TrimSpace(req.Name),
		Phone:        normalized,
		Email:        strings.TrimSpace(req.Email),
		City:         strings.TrimSpace(req.City),
		PropertyType: strings.TrimSpace(req.PropertyType),
		Source:       strings.TrimSpace(req.Source),
		Status:       status,
		AssignedTo:   assignedTo,
		CreatedBy:    createdBy,
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}

	if body := strings.TrimSpace(req.Note); body != "" {
		if _, err := s.repo.CreateNote(ctx, lead.ID, "note", body, author); err != nil {
			s.log.SideEffectFailed("create_lead_note", lead.ID.String(), err)
		}
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.LeadCreated{
			BaseEvent:  events.NewBaseEvent(),
			LeadID:     lead.ID,
			Name:       lead.Name,
			Phone:      lead.Phone,
			Source:     lead.Source,
			AssignedTo: lead.AssignedTo,
			CreatedBy:  lead.CreatedBy,
		})
	}
	return toLeadResponse(lead), nil
}

func (s *Service) Get(ctx context.Context, id httpkit.Identity, leadID uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.load(ctx, id, leadID)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return toLeadResponse(lead), nil
}

func (s *Service) List(ctx context.Context, id httpkit.Identity, req transport.ListLeadsRequest) (transport.LeadListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	leads, total, err := s.repo.List(ctx, repository.ListParams{
		Scope:      access.FromIdentity(id),
		Search:     req.Search,
		Status:     req.Status,
		Source:     req.Source,
		AssignedTo: req.AssignedTo,
		Limit:      req.PageSize,
		Offset:     (req.Page - 1) * req.PageSize,
	})
	if err != nil {
		return transport.LeadListResponse{}, err
	}

	items := make([]transport.LeadResponse, len(leads))
	for i, l := range leads {
		items[i] = toLeadResponse(l)
	}
	return transport.LeadListResponse{
		Items:      items,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: (total + req.PageSize - 1) / req.PageSize,
	}, nil
}

func (s *Service) Update(ctx context.Context, id httpkit.Identity, leadID uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	before, err := s.load(ctx, id, leadID)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	params := repository.UpdateParams{
		Name:         trimmed(req.Name),
		Email:        trimmed(req.Email),
		City:         trimmed(req.City),
		PropertyType: trimmed(req.PropertyType),
		Source:       trimmed(req.Source),
		Status:       trimmed(req.Status),
		AssignedTo:   trimmed(req.AssignedTo),
	}
	if req.Phone != nil {
		normalized, err := normalizePhone(*req.Phone)
		if err != nil {
			return transport.LeadResponse{}, err
		}
		params.Phone = &normalized
	}

	lead, err := s.repo.Update(ctx, leadID, params)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	if lead.AssignedTo != "" && !strings.EqualFold(lead.AssignedTo, before.AssignedTo) {
		notice := domain.Notify{
			Recipient: lead.AssignedTo,
			Kind:      domain.NotifyAssignment,
			Title:     "Nouveau lead assigné",
			Body:      lead.Name,
			Payload:   map[string]any{"leadId": lead.ID.String()},
		}
		if err := s.exec.Apply(ctx, []domain.Effect{notice}); err != nil {
			s.log.SideEffectFailed("notify_assignment", lead.ID.String(), err)
		}
	}
	return toLeadResponse(lead), nil
}

func (s *Service) Delete(ctx context.Context, id httpkit.Identity, leadID uuid.UUID) error {
	if _, err := s.load(ctx, id, leadID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, leadID)
}

func (s *Service) AddNote(ctx context.Context, id httpkit.Identity, leadID uuid.UUID, req transport.CreateLeadNoteRequest) (transport.LeadNoteResponse, error) {
	if _, err := s.load(ctx, id, leadID); err != nil {
		return transport.LeadNoteResponse{}, err
	}
	kind := req.Kind
	if kind == "" {
		kind = "note"
	}
	note, err := s.repo.CreateNote(ctx, leadID, kind, strings.TrimSpace(req.Body), actorOf(id).Name)
	if err != nil {
		return transport.LeadNoteResponse{}, err
	}
	return toNoteResponse(note), nil
}

func (s *Service) ListNotes(ctx context.Context, id httpkit.Identity, leadID uuid.UUID) ([]transport.LeadNoteResponse, error) {
	if _, err := s.load(ctx, id, leadID); err != nil {
		return nil, err
	}
	notes, err := s.repo.ListNotes(ctx, leadID)
	if err != nil {
		return nil, err
	}
	out := make([]transport.LeadNoteResponse, len(notes))
	for i, n := range notes {
		out[i] = toNoteResponse(n)
	}
	return out, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func toLeadResponse(l repository.Lead) transport.LeadResponse {
	return transport.LeadResponse{
		ID:           l.ID,
		Name:         l.Name,
		Phone:        l.Phone,
		Email:        l.Email,
		City:         l.City,
		PropertyType: l.PropertyType,
		Source:       l.Source,
		Status:       l.Status,
		AssignedTo:   l.AssignedTo,
		CreatedBy:    l.CreatedBy,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

func toNoteResponse(n repository.Note) transport.LeadNoteResponse {
	return transport.LeadNoteResponse{
		ID:        n.ID,
		LeadID:    n.LeadID,
		Kind:      n.Kind,
		Body:      n.Body,
		Author:    n.Author,
		CreatedAt: n.CreatedAt,
	}
}
