package transport

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Request DTOs
type CreateContactRequest struct {
	Name           string      `json:"name" validate:"required,notblank,max=200"`
	Phone          string      `json:"phone" validate:"required,notblank,max=32"`
	Email          string      `json:"email" validate:"omitempty,email,max=200"`
	City           string      `json:"city" validate:"omitempty,max=120"`
	Architect      string      `json:"architect" validate:"omitempty,max=200"`
	Status         string      `json:"status" validate:"omitempty,stage"`
	InvitedUserIDs []uuid.UUID `json:"invitedUserIds"`
}

// UpdateContactRequest carries a partial update. tag and status are derived
// by the pipeline and cannot be written here.
type UpdateContactRequest struct {
	Name           *string     `json:"name" validate:"omitempty,notblank,max=200"`
	Phone          *string     `json:"phone" validate:"omitempty,notblank,max=32"`
	Email          *string     `json:"email" validate:"omitempty,email,max=200"`
	City           *string     `json:"city" validate:"omitempty,max=120"`
	Architect      *string     `json:"architect" validate:"omitempty,max=200"`
	InvitedUserIDs []uuid.UUID `json:"invitedUserIds"`
}

type ListContactsRequest struct {
	Search   string `form:"search" validate:"max=100"`
	Tag      string `form:"tag" validate:"omitempty,oneof=converted client"`
	Status   string `form:"status" validate:"omitempty,stage"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type CreateOpportunityRequest struct {
	Title         string           `json:"title" validate:"max=200"`
	Type          string           `json:"type" validate:"required,oneof=villa appartement magasin bureau riad studio renovation autre"`
	Status        string           `json:"status" validate:"omitempty,oneof=open won lost on_hold"`
	PipelineStage string           `json:"pipelineStage" validate:"omitempty,oneof=prise_de_besoin projet_accepte acompte_recu gagnee perdue"`
	Budget        *decimal.Decimal `json:"budget"`
	Architect     string           `json:"architect" validate:"omitempty,max=200"`
	Description   string           `json:"description" validate:"max=4000"`
}

type UpdateOpportunityRequest struct {
	Title         *string          `json:"title" validate:"omitempty,notblank,max=200"`
	Type          *string          `json:"type" validate:"omitempty,oneof=villa appartement magasin bureau riad studio renovation autre"`
	Status        *string          `json:"status" validate:"omitempty,oneof=open won lost on_hold"`
	PipelineStage *string          `json:"pipelineStage" validate:"omitempty,oneof=prise_de_besoin projet_accepte acompte_recu gagnee perdue"`
	Budget        *decimal.Decimal `json:"budget"`
	ClearBudget   bool             `json:"clearBudget"`
	Architect     *string          `json:"architect" validate:"omitempty,max=200"`
	Description   *string          `json:"description" validate:"omitempty,max=4000"`
}

type CreateNoteRequest struct {
	Body string `json:"body" validate:"required,notblank,max=2000"`
	Kind string `json:"kind" validate:"omitempty,oneof=note call_log"`
}

// Response DTOs
type ContactResponse struct {
	ID             uuid.UUID   `json:"id"`
	LeadID         *uuid.UUID  `json:"leadId,omitempty"`
	Name           string      `json:"name"`
	Phone          string      `json:"phone"`
	Email          string      `json:"email,omitempty"`
	City           string      `json:"city,omitempty"`
	Source         string      `json:"source,omitempty"`
	Tag            string      `json:"tag"`
	Status         string      `json:"status"`
	LeadStatus     string      `json:"leadStatus,omitempty"`
	Architect      string      `json:"architect,omitempty"`
	ClientSince    *time.Time  `json:"clientSince,omitempty"`
	InvitedUserIDs []uuid.UUID `json:"invitedUserIds"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

type ContactListResponse struct {
	Items      []ContactResponse `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalPages int               `json:"totalPages"`
}

type ContactDetailResponse struct {
	ContactResponse
	Opportunities []OpportunityResponse `json:"opportunities"`
}

type OpportunityResponse struct {
	ID            uuid.UUID        `json:"id"`
	ContactID     uuid.UUID        `json:"contactId"`
	ClientKey     string           `json:"clientKey"`
	Title         string           `json:"title"`
	Type          string           `json:"type"`
	Status        string           `json:"status"`
	PipelineStage string           `json:"pipelineStage"`
	Budget        *decimal.Decimal `json:"budget,omitempty"`
	Architect     string           `json:"architect,omitempty"`
	Description   string           `json:"description,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

type NoteResponse struct {
	ID        uuid.UUID `json:"id"`
	ContactID uuid.UUID `json:"contactId"`
	Kind      string    `json:"kind"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type TimelineEventResponse struct {
	ID            uuid.UUID      `json:"id"`
	OpportunityID *uuid.UUID     `json:"opportunityId,omitempty"`
	EventType     string         `json:"eventType"`
	Title         string         `json:"title"`
	OldValue      *string        `json:"oldValue,omitempty"`
	NewValue      *string        `json:"newValue,omitempty"`
	ActorName     string         `json:"actorName,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}
