package service

import (
	"context"

	contactsrepo "archi_crm_backend/internal/contacts/repository"
	"archi_crm_backend/internal/events"
	"archi_crm_backend/internal/leads/repository"
	"archi_crm_backend/internal/leads/transport"
	"archi_crm_backend/internal/pipeline/domain"
	"archi_crm_backend/internal/shared/access"
	"archi_crm_backend/platform/apperr"
	"archi_crm_backend/platform/httpkit"

	"github.com/google/uuid"
)

// Convert turns a lead into a contact at qualifie. It is idempotent: when a
// contact already exists for the lead, its drifted status is repaired and the
// existing contact is returned. The lead is deleted only once the contact is
// read back from storage and every lead note has a copy on it.
func (s *Service) Convert(ctx context.Context, id httpkit.Identity, leadID uuid.UUID, req transport.ConvertLeadRequest) (transport.ConvertLeadResponse, error) {
	actor := actorOf(id)

	existing, err := s.contacts.FindByLeadID(ctx, leadID)
	switch {
	case err == nil:
		return s.repair(ctx, id, leadID, existing, actor)
	case !apperr.Is(err, apperr.KindNotFound):
		return transport.ConvertLeadResponse{}, err
	}

	lead, err := s.load(ctx, id, leadID)
	if err != nil {
		return transport.ConvertLeadResponse{}, err
	}
	notes, err := s.repo.ListNotes(ctx, leadID)
	if err != nil {
		return transport.ConvertLeadResponse{}, err
	}

	plan := domain.PlanLeadConversion(toDomainLead(lead, notes), domain.ConversionRequest{
		Architect:       req.Architect,
		Email:           req.Email,
		City:            req.City,
		RequestedStatus: req.Status,
	}, uuid.New(), actor, s.now())

	err = s.write(ctx, "create_contact", func(ctx context.Context) error {
		_, err := s.contacts.CreateContact(ctx, contactsrepo.CreateContactParams{
			Contact:   plan.Contact,
			LeadID:    &lead.ID,
			Source:    lead.Source,
			CreatedBy: lead.CreatedBy,
		})
		return err
	})
	if apperr.Is(err, apperr.KindConflict) {
		// Converted concurrently: fall back to the repair path.
		existing, findErr := s.contacts.FindByLeadID(ctx, leadID)
		if findErr != nil {
			return transport.ConvertLeadResponse{}, findErr
		}
		return s.repair(ctx, id, leadID, existing, actor)
	}
	if err != nil {
		return transport.ConvertLeadResponse{}, err
	}

	if _, err := s.contacts.GetContactState(ctx, plan.Contact.ID); err != nil {
		return transport.ConvertLeadResponse{}, apperr.Unavailable("contact could not be verified after conversion", err)
	}

	if err := s.exec.Apply(ctx, plan.Effects); err != nil {
		return transport.ConvertLeadResponse{}, err
	}

	s.deleteConverted(ctx, leadID, plan.Contact.ID)

	s.publishConverted(ctx, leadID, plan.Contact.ID, plan.Contact.Architect, false)
	return transport.ConvertLeadResponse{ContactID: plan.Contact.ID, NotesCopied: len(notes)}, nil
}

func (s *Service) repair(ctx context.Context, id httpkit.Identity, leadID uuid.UUID, existing contactsrepo.Contact, actor domain.Actor) (transport.ConvertLeadResponse, error) {
	if !id.IsPrivileged() {
		if err := s.checkRepairAccess(ctx, id, leadID, existing); err != nil {
			return transport.ConvertLeadResponse{}, err
		}
	}

	effects := domain.PlanConversionRepair(existing.State(), actor, s.now())
	if err := s.exec.Apply(ctx, effects); err != nil {
		return transport.ConvertLeadResponse{}, err
	}

	// A previous run may have stopped before removing the lead. Its notes are
	// copied again first; copies already on the contact are skipped.
	notes, err := s.repo.ListNotes(ctx, leadID)
	if err != nil {
		return transport.ConvertLeadResponse{}, err
	}
	if len(notes) > 0 {
		copyNotes := domain.CopyNotes{LeadID: leadID, ContactID: existing.ID, Notes: toDomainNotes(notes)}
		if err := s.exec.Apply(ctx, []domain.Effect{copyNotes}); err != nil {
			return transport.ConvertLeadResponse{}, err
		}
	}
	s.deleteConverted(ctx, leadID, existing.ID)

	repaired := len(effects) > 0
	s.publishConverted(ctx, leadID, existing.ID, existing.Architect, repaired)
	return transport.ConvertLeadResponse{ContactID: existing.ID, AlreadyConverted: true, Repaired: repaired, NotesCopied: len(notes)}, nil
}

// deleteConverted drops the lead once its notes live on the contact. A lead
// whose notes failed to copy is kept so the next conversion retries the copy.
func (s *Service) deleteConverted(ctx context.Context, leadID, contactID uuid.UUID) {
	err := s.write(ctx, "delete_lead", func(ctx context.Context) error {
		return s.repo.DeleteConverted(ctx, leadID, contactID)
	})
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		s.log.SideEffectFailed("delete_converted_lead", leadID.String(), err)
	}
}

// checkRepairAccess lets a restricted caller re-convert when it may see the
// contact, or the lead when it still exists.
func (s *Service) checkRepairAccess(ctx context.Context, id httpkit.Identity, leadID uuid.UUID, existing contactsrepo.Contact) error {
	if access.FromIdentity(id).Allows(existing.Owned()) {
		return nil
	}
	_, err := s.load(ctx, id, leadID)
	return err
}

func (s *Service) publishConverted(ctx context.Context, leadID, contactID uuid.UUID, architect string, repaired bool) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.LeadConverted{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		ContactID: contactID,
		Architect: architect,
		Repaired:  repaired,
	})
}

func toDomainLead(l repository.Lead, notes []repository.Note) domain.Lead {
	out := domain.Lead{
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
	}
	out.Notes = toDomainNotes(notes)
	return out
}

func toDomainNotes(notes []repository.Note) []domain.Note {
	var out []domain.Note
	for _, n := range notes {
		out = append(out, domain.Note{
			ID:        n.ID,
			Kind:      n.Kind,
			Body:      n.Body,
			Author:    n.Author,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}
