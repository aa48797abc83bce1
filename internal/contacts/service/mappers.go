package service

import (
	"archi_crm_backend/internal/contacts/repository"
	"archi_crm_backend/internal/contacts/transport"
	"archi_crm_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

func toContactResponse(c repository.Contact) transport.ContactResponse {
	invited := c.InvitedUserIDs
	if invited == nil {
		invited = []uuid.UUID{}
	}
	return transport.ContactResponse{
		ID:             c.ID,
		LeadID:         c.LeadID,
		Name:           c.Name,
		Phone:          c.Phone,
		Email:          c.Email,
		City:           c.City,
		Source:         c.Source,
		Tag:            string(c.Tag),
		Status:         string(c.Status),
		LeadStatus:     string(c.LeadStatus),
		Architect:      c.Architect,
		ClientSince:    c.ClientSince,
		InvitedUserIDs: invited,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func toOpportunityResponse(o repository.Opportunity) transport.OpportunityResponse {
	resp := transport.OpportunityResponse{
		ID:            o.ID,
		ContactID:     o.ContactID,
		ClientKey:     domain.OpportunityClientKey(o.ContactID, o.ID),
		Title:         o.Title,
		Type:          string(o.Type),
		Status:        string(o.Status),
		PipelineStage: string(o.Stage),
		Architect:     o.Architect,
		Description:   o.Description,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.Budget.Valid {
		budget := o.Budget.Decimal
		resp.Budget = &budget
	}
	return resp
}

func toOpportunityResponses(opps []repository.Opportunity) []transport.OpportunityResponse {
	out := make([]transport.OpportunityResponse, len(opps))
	for i, o := range opps {
		out[i] = toOpportunityResponse(o)
	}
	return out
}

func toNoteResponse(n repository.Note) transport.NoteResponse {
	return transport.NoteResponse{
		ID:        n.ID,
		ContactID: n.ContactID,
		Kind:      n.Kind,
		Body:      n.Body,
		Author:    n.Author,
		CreatedAt: n.CreatedAt,
	}
}
