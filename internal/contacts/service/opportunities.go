package service

import (
	"context"
	"strings"

	"archi_crm_backend/internal/contacts/repository"
	"archi_crm_backend/internal/contacts/transport"
	"archi_crm_backend/internal/events"
	"archi_crm_backend/internal/pipeline/domain"
	"archi_crm_backend/platform/apperr"
	"archi_crm_backend/platform/httpkit"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	changeCreated = "created"
	changeUpdated = "updated"
	changeDeleted = "deleted"
)

func (s *Service) CreateOpportunity(ctx context.Context, id httpkit.Identity, contactID uuid.UUID, req transport.CreateOpportunityRequest) (transport.OpportunityResponse, error) {
	contact, err := s.loadContact(ctx, id, contactID)
	if err != nil {
		return transport.OpportunityResponse{}, err
	}

	draft := domain.Opportunity{
		ID:          uuid.New(),
		Title:       req.Title,
		Type:        domain.OpportunityType(req.Type),
		Status:      domain.OpportunityStatus(req.Status),
		Stage:       domain.PipelineStage(req.PipelineStage),
		Architect:   strings.TrimSpace(req.Architect),
		Description: strings.TrimSpace(req.Description),
	}
	if req.Budget != nil {
		if req.Budget.IsNegative() {
			return transport.OpportunityResponse{}, apperr.Validation("budget must not be negative")
		}
		draft.Budget = decimal.NewNullDecimal(*req.Budget)
	}

	opp, effects := domain.PlanOpportunityCreation(contact.State(), draft, actorOf(id), s.now())

	uid := id.UserID()
	var created repository.Opportunity
	err = s.write(ctx, "create_opportunity", func(ctx context.Context) error {
		var err error
		created, err = s.repo.CreateOpportunity(ctx, opp, &uid)
		return err
	})
	if err != nil {
		return transport.OpportunityResponse{}, err
	}

	if err := s.exec.Apply(ctx, effects); err != nil {
		return transport.OpportunityResponse{}, err
	}
	s.publishChange(ctx, contactID, created.ID, changeCreated)
	return toOpportunityResponse(created), nil
}

func (s *Service) ListOpportunities(ctx context.Context, id httpkit.Identity, contactID uuid.UUID) ([]transport.OpportunityResponse, error) {
	if _, err := s.loadContact(ctx, id, contactID); err != nil {
		return nil, err
	}
	opps, err := s.repo.ListOpportunities(ctx, contactID)
	if err != nil {
		return nil, err
	}
	return toOpportunityResponses(opps), nil
}

func (s *Service) GetOpportunity(ctx context.Context, id httpkit.Identity, opportunityID uuid.UUID) (transport.OpportunityResponse, error) {
	opp, _, err := s.loadOpportunity(ctx, id, opportunityID)
	if err != nil {
		return transport.OpportunityResponse{}, err
	}
	return toOpportunityResponse(opp), nil
}

// UpdateOpportunity applies a partial edit and runs the engine's follow-up
// rules: tag promotion or demotion, timeline, mirror sync and assignment.
func (s *Service) UpdateOpportunity(ctx context.Context, id httpkit.Identity, opportunityID uuid.UUID, req transport.UpdateOpportunityRequest) (transport.OpportunityResponse, error) {
	current, contact, err := s.loadOpportunity(ctx, id, opportunityID)
	if err != nil {
		return transport.OpportunityResponse{}, err
	}

	before := current.State()
	after, changed, err := applyOpportunityUpdate(before, req)
	if err != nil {
		return transport.OpportunityResponse{}, err
	}

	all, err := s.repo.ListOpportunities(ctx, contact.ID)
	if err != nil {
		return transport.OpportunityResponse{}, err
	}
	siblings := make([]domain.Opportunity, 0, len(all))
	for _, o := range all {
		if o.ID != opportunityID {
			siblings = append(siblings, o.State())
		}
	}

	stages, err := s.mirrors.MirrorStages(ctx, contact.ID)
	if err != nil {
		return transport.OpportunityResponse{}, err
	}
	var mirrorStage *domain.Stage
	if st, ok := stages[domain.OpportunityClientKey(contact.ID, opportunityID)]; ok {
		mirrorStage = &st
	}

	var updated repository.Opportunity
	err = s.write(ctx, "update_opportunity", func(ctx context.Context) error {
		var err error
		updated, err = s.repo.UpdateOpportunity(ctx, after)
		return err
	})
	if err != nil {
		return transport.OpportunityResponse{}, err
	}

	effects := domain.PlanOpportunityUpdate(domain.OpportunityUpdate{
		Contact:       contact.State(),
		Before:        before,
		After:         after,
		Siblings:      siblings,
		ChangedFields: changed,
		MirrorStage:   mirrorStage,
		Actor:         actorOf(id),
		Now:           s.now(),
	})
	if err := s.exec.Apply(ctx, effects); err != nil {
		return transport.OpportunityResponse{}, err
	}
	s.publishChange(ctx, contact.ID, opportunityID, changeUpdated)
	return toOpportunityResponse(updated), nil
}

// DeleteOpportunity removes the opportunity, recomputes the tag from what is
// left and reconciles the contact.
func (s *Service) DeleteOpportunity(ctx context.Context, id httpkit.Identity, opportunityID uuid.UUID) error {
	current, contact, err := s.loadOpportunity(ctx, id, opportunityID)
	if err != nil {
		return err
	}

	if err := s.write(ctx, "delete_opportunity", func(ctx context.Context) error {
		return s.repo.DeleteOpportunity(ctx, opportunityID)
	}); err != nil {
		return err
	}

	all, err := s.repo.ListOpportunities(ctx, contact.ID)
	if err != nil {
		return err
	}
	remaining := make([]domain.Opportunity, len(all))
	for i, o := range all {
		remaining[i] = o.State()
	}

	effects := domain.PlanOpportunityDeletion(contact.State(), current.State(), remaining, actorOf(id), s.now())
	if err := s.exec.Apply(ctx, effects); err != nil {
		return err
	}

	if s.reconciler != nil {
		if err := s.reconciler.Reconcile(ctx, contact.ID); err != nil {
			s.log.SideEffectFailed("reconcile", contact.ID.String(), err)
		}
	}
	s.publishChange(ctx, contact.ID, opportunityID, changeDeleted)
	return nil
}

func (s *Service) loadOpportunity(ctx context.Context, id httpkit.Identity, opportunityID uuid.UUID) (repository.Opportunity, repository.Contact, error) {
	opp, err := s.repo.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return repository.Opportunity{}, repository.Contact{}, err
	}
	contact, err := s.loadContact(ctx, id, opp.ContactID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return repository.Opportunity{}, repository.Contact{}, repository.ErrOpportunityNotFound
		}
		return repository.Opportunity{}, repository.Contact{}, err
	}
	return opp, contact, nil
}

func (s *Service) publishChange(ctx context.Context, contactID, opportunityID uuid.UUID, change string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.OpportunityChanged{
		BaseEvent:     events.NewBaseEvent(),
		ContactID:     contactID,
		OpportunityID: opportunityID,
		Change:        change,
	})
}

// applyOpportunityUpdate returns the edited opportunity and the names of the
// fields that actually changed.
func applyOpportunityUpdate(before domain.Opportunity, req transport.UpdateOpportunityRequest) (domain.Opportunity, []string, error) {
	after := before
	var changed []string

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return domain.Opportunity{}, nil, apperr.Validation("title must not be empty")
		}
		if title != before.Title {
			after.Title = title
			changed = append(changed, "title")
		}
	}
	if req.Type != nil && domain.OpportunityType(*req.Type) != before.Type {
		after.Type = domain.OpportunityType(*req.Type)
		changed = append(changed, "type")
	}
	if req.Status != nil && domain.OpportunityStatus(*req.Status) != before.Status {
		after.Status = domain.OpportunityStatus(*req.Status)
		changed = append(changed, "status")
	}
	if req.PipelineStage != nil && domain.PipelineStage(*req.PipelineStage) != before.Stage {
		after.Stage = domain.PipelineStage(*req.PipelineStage)
		changed = append(changed, "pipelineStage")
	}
	switch {
	case req.ClearBudget:
		if before.Budget.Valid {
			after.Budget = decimal.NullDecimal{}
			changed = append(changed, "budget")
		}
	case req.Budget != nil:
		if req.Budget.IsNegative() {
			return domain.Opportunity{}, nil, apperr.Validation("budget must not be negative")
		}
		if !before.Budget.Valid || !before.Budget.Decimal.Equal(*req.Budget) {
			after.Budget = decimal.NewNullDecimal(*req.Budget)
			changed = append(changed, "budget")
		}
	}
	if req.Architect != nil {
		architect := strings.TrimSpace(*req.Architect)
		if architect != before.Architect {
			after.Architect = architect
			changed = append(changed, "architect")
		}
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if description != before.Description {
			after.Description = description
			changed = append(changed, "description")
		}
	}
	return after, changed, nil
}

// Reconcile recomputes the contact's tag and mirror rows on demand.
func (s *Service) Reconcile(ctx context.Context, id httpkit.Identity, contactID uuid.UUID) error {
	if !id.IsPrivileged() {
		return apperr.Forbidden("reconcile requires an admin or manager")
	}
	if _, err := s.repo.GetByID(ctx, contactID); err != nil {
		return err
	}
	if s.reconciler == nil {
		return apperr.Unavailable("reconciler not configured", nil)
	}
	return s.reconciler.Reconcile(ctx, contactID)
}
