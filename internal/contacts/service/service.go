// Package service holds contact and opportunity use cases. Every write that
// touches pipeline state goes through the reconciliation engine: the service
// persists the row, asks the engine for the follow-up effects and hands them
// to the executor.
package service

import (
	"context"
	"strings"
	"time"

	"archi_crm_backend/internal/contacts/repository"
	"archi_crm_backend/internal/contacts/transport"
	"archi_crm_backend/internal/events"
	"archi_crm_backend/internal/pipeline/domain"
	"archi_crm_backend/internal/shared/access"
	"archi_crm_backend/platform/apperr"
	"archi_crm_backend/platform/httpkit"
	"archi_crm_backend/platform/logger"
	"archi_crm_backend/platform/phone"

	"github.com/google/uuid"
)

const timelineLimit = 200

// Repository is what the service needs from contact storage.
type Repository interface {
	CreateContact(ctx context.Context, p repository.CreateContactParams) (repository.Contact, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Contact, error)
	List(ctx context.Context, p repository.ListParams) ([]repository.Contact, int, error)
	Update(ctx context.Context, id uuid.UUID, p repository.UpdateContactParams) (repository.Contact, error)
	Delete(ctx context.Context, id uuid.UUID) error

	CreateOpportunity(ctx context.Context, o domain.Opportunity, createdBy *uuid.UUID) (repository.Opportunity, error)
	GetOpportunity(ctx context.Context, id uuid.UUID) (repository.Opportunity, error)
	ListOpportunities(ctx context.Context, contactID uuid.UUID) ([]repository.Opportunity, error)
	UpdateOpportunity(ctx context.Context, o domain.Opportunity) (repository.Opportunity, error)
	DeleteOpportunity(ctx context.Context, id uuid.UUID) error

	CreateNote(ctx context.Context, contactID uuid.UUID, kind, body, author string) (repository.Note, error)
	ListNotes(ctx context.Context, contactID uuid.UUID) ([]repository.Note, error)
	ListTimeline(ctx context.Context, contactID uuid.UUID, limit int) ([]repository.TimelineEvent, error)
}

// MirrorReader reads the current statut_projet of a contact's mirror rows.
type MirrorReader interface {
	MirrorStages(ctx context.Context, contactID uuid.UUID) (map[string]domain.Stage, error)
}

// EffectApplier executes engine effects.
type EffectApplier interface {
	Apply(ctx context.Context, effects []domain.Effect) error
}

// Reconciler recomputes a contact's derived state.
type Reconciler interface {
	Reconcile(ctx context.Context, contactID uuid.UUID) error
}

// Retrier retries primary writes on transient failures.
type Retrier interface {
	Do(ctx context.Context, op string, fn func(ctx context.Context) error) error
}

type Service struct {
	repo       Repository
	mirrors    MirrorReader
	exec       EffectApplier
	reconciler Reconciler
	retrier    Retrier
	bus        events.Bus
	log        *logger.Logger
	now        func() time.Time
}

func New(repo Repository, mirrors MirrorReader, exec EffectApplier, reconciler Reconciler, retrier Retrier, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		mirrors:    mirrors,
		exec:       exec,
		reconciler: reconciler,
		retrier:    retrier,
		bus:        bus,
		log:        log,
		now:        time.Now,
	}
}

func actorOf(id httpkit.Identity) domain.Actor {
	uid := id.UserID()
	name := strings.TrimSpace(id.Name())
	if name == "" {
		name = id.Email()
	}
	return domain.Actor{UserID: &uid, Name: name}
}

func (s *Service) write(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if s.retrier == nil {
		return fn(ctx)
	}
	return s.retrier.Do(ctx, op, fn)
}

// loadContact fetches a contact the caller may see.
func (s *Service) loadContact(ctx context.Context, id httpkit.Identity, contactID uuid.UUID) (repository.Contact, error) {
	contact, err := s.repo.GetByID(ctx, contactID)
	if err != nil {
		return repository.Contact{}, err
	}
	if err := access.FromIdentity(id).Check(contact.Owned(), "contact"); err != nil {
		return repository.Contact{}, err
	}
	return contact, nil
}

func (s *Service) Create(ctx context.Context, id httpkit.Identity, req transport.CreateContactRequest) (transport.ContactResponse, error) {
	normalized, err := normalizePhone(req.Phone)
	if err != nil {
		return transport.ContactResponse{}, err
	}

	status := domain.StageQualifie
	if req.Status != "" {
		if status, err = domain.ParseStage(req.Status); err != nil {
			return transport.ContactResponse{}, apperr.Validation(err.Error())
		}
	}

	architect := strings.TrimSpace(req.Architect)
	if architect == "" && !id.IsPrivileged() {
		architect = id.Name()
	}

	uid := id.UserID()
	var created repository.Contact
	err = s.write(ctx, "create_contact", func(ctx context.Context) error {
		var err error
		created, err = s.repo.CreateContact(ctx, repository.CreateContactParams{
			Contact: domain.Contact{
				ID:         uuid.New(),
				Name:       strings.TrimSpace(req.Name),
				Phone:      normalized,
				Email:      strings.TrimSpace(req.Email),
				City:       strings.TrimSpace(req.City),
				Tag:        domain.TagConverted,
				Status:     status,
				LeadStatus: status,
				Architect:  architect,
			},
			Source:    "manual",
			CreatedBy: &uid,
			Invited:   req.InvitedUserIDs,
		})
		return err
	})
	if err != nil {
		return transport.ContactResponse{}, err
	}
	return toContactResponse(created), nil
}

func (s *Service) Get(ctx context.Context, id httpkit.Identity, contactID uuid.UUID) (transport.ContactDetailResponse, error) {
	contact, err := s.loadContact(ctx, id, contactID)
	if err != nil {
		return transport.ContactDetailResponse{}, err
	}
	opps, err := s.repo.ListOpportunities(ctx, contactID)
	if err != nil {
		return transport.ContactDetailResponse{}, err
	}
	return transport.ContactDetailResponse{
		ContactResponse: toContactResponse(contact),
		Opportunities:   toOpportunityResponses(opps),
	}, nil
}

func (s *Service) List(ctx context.Context, id httpkit.Identity, req transport.ListContactsRequest) (transport.ContactListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	contacts, total, err := s.repo.List(ctx, repository.ListParams{
		Scope:  access.FromIdentity(id),
		Search: req.Search,
		Tag:    req.Tag,
		Status: req.Status,
		Limit:  req.PageSize,
		Offset: (req.Page - 1) * req.PageSize,
	})
	if err != nil {
		return transport.ContactListResponse{}, err
	}

	items := make([]transport.ContactResponse, len(contacts))
	for i, c := range contacts {
		items[i] = toContactResponse(c)
	}
	return transport.ContactListResponse{
		Items:      items,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: (total + req.PageSize - 1) / req.PageSize,
	}, nil
}

// Update edits contact details. A new architect gets an assignment notice and
// the mirror rows pick up the changed contact fields.
func (s *Service) Update(ctx context.Context, id httpkit.Identity, contactID uuid.UUID, req transport.UpdateContactRequest) (transport.ContactResponse, error) {
	before, err := s.loadContact(ctx, id, contactID)
	if err != nil {
		return transport.ContactResponse{}, err
	}

	params := repository.UpdateContactParams{
		Name:           trimmed(req.Name),
		Email:          trimmed(req.Email),
		City:           trimmed(req.City),
		Architect:      trimmed(req.Architect),
		InvitedUserIDs: req.InvitedUserIDs,
	}
	if req.Phone != nil {
		normalized, err := normalizePhone(*req.Phone)
		if err != nil {
			return transport.ContactResponse{}, err
		}
		params.Phone = &normalized
	}

	var updated repository.Contact
	err = s.write(ctx, "update_contact", func(ctx context.Context) error {
		var err error
		updated, err = s.repo.Update(ctx, contactID, params)
		return err
	})
	if err != nil {
		return transport.ContactResponse{}, err
	}

	var effects []domain.Effect
	if updated.Architect != "" && !strings.EqualFold(updated.Architect, before.Architect) {
		effects = append(effects, domain.Notify{
			Recipient: updated.Architect,
			Kind:      domain.NotifyAssignment,
			Title:     "Nouveau contact assigné",
			Body:      updated.Name,
			Payload:   map[string]any{"contactId": updated.ID.String()},
		})
	}
	opps, err := s.repo.ListOpportunities(ctx, contactID)
	if err != nil {
		return transport.ContactResponse{}, err
	}
	for _, o := range opps {
		effects = append(effects, domain.UpsertMirror{Mirror: domain.MirrorOf(updated.State(), o.State())})
	}
	if err := s.exec.Apply(ctx, effects); err != nil {
		return transport.ContactResponse{}, err
	}
	return toContactResponse(updated), nil
}

// Delete removes the contact with its opportunities and mirror rows.
func (s *Service) Delete(ctx context.Context, id httpkit.Identity, contactID uuid.UUID) error {
	if _, err := s.loadContact(ctx, id, contactID); err != nil {
		return err
	}
	opps, err := s.repo.ListOpportunities(ctx, contactID)
	if err != nil {
		return err
	}

	if err := s.write(ctx, "delete_contact", func(ctx context.Context) error {
		return s.repo.Delete(ctx, contactID)
	}); err != nil {
		return err
	}

	effects := make([]domain.Effect, 0, len(opps))
	for _, o := range opps {
		effects = append(effects, domain.DeleteMirror{Key: domain.OpportunityClientKey(contactID, o.ID)})
	}
	return s.exec.Apply(ctx, effects)
}

func (s *Service) ListTimeline(ctx context.Context, id httpkit.Identity, contactID uuid.UUID) ([]transport.TimelineEventResponse, error) {
	if _, err := s.loadContact(ctx, id, contactID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListTimeline(ctx, contactID, timelineLimit)
	if err != nil {
		return nil, err
	}
	out := make([]transport.TimelineEventResponse, len(rows))
	for i, e := range rows {
		out[i] = transport.TimelineEventResponse{
			ID:            e.ID,
			OpportunityID: e.OpportunityID,
			EventType:     e.EventType,
			Title:         e.Title,
			OldValue:      e.OldValue,
			NewValue:      e.NewValue,
			ActorName:     e.ActorName,
			Metadata:      e.Metadata,
			CreatedAt:     e.CreatedAt,
		}
	}
	return out, nil
}

func (s *Service) AddNote(ctx context.Context, id httpkit.Identity, contactID uuid.UUID, req transport.CreateNoteRequest) (transport.NoteResponse, error) {
	if _, err := s.loadContact(ctx, id, contactID); err != nil {
		return transport.NoteResponse{}, err
	}
	kind := req.Kind
	if kind == "" {
		kind = repository.NoteKindNote
	}
	note, err := s.repo.CreateNote(ctx, contactID, kind, strings.TrimSpace(req.Body), actorOf(id).Name)
	if err != nil {
		return transport.NoteResponse{}, err
	}
	return toNoteResponse(note), nil
}

func (s *Service) ListNotes(ctx context.Context, id httpkit.Identity, contactID uuid.UUID) ([]transport.NoteResponse, error) {
	if _, err := s.loadContact(ctx, id, contactID); err != nil {
		return nil, err
	}
	notes, err := s.repo.ListNotes(ctx, contactID)
	if err != nil {
		return nil, err
	}
	out := make([]transport.NoteResponse, len(notes))
	for i, n := range notes {
		out[i] = toNoteResponse(n)
	}
	return out, nil
}

func normalizePhone(raw string) (string, error) {
	if !phone.IsValid(raw) {
		return "", apperr.Validation("invalid phone number")
	}
	return phone.NormalizeE164(raw), nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
