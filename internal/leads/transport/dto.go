package transport

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs
type CreateLeadRequest struct {
	Name         string `json:"name" validate:"required,notblank,max=200"`
	Phone        string `json:"phone" validate:"required,notblank,max=32"`
	Email        string `json:"email" validate:"omitempty,email,max=200"`
	City         string `json:"city" validate:"omitempty,max=120"`
	PropertyType string `json:"propertyType" validate:"omitempty,max=60"`
	Source       string `json:"source" validate:"omitempty,max=60"`
	Status       string `json:"status" validate:"omitempty,max=60"`
	AssignedTo   string `json:"assignedTo" validate:"omitempty,max=200"`
	Note         string `json:"note" validate:"omitempty,max=2000"`
}

type UpdateLeadRequest struct {
	Name         *string `json:"name" validate:"omitempty,notblank,max=200"`
	Phone        *string `json:"phone" validate:"omitempty,notblank,max=32"`
	Email        *string `json:"email" validate:"omitempty,email,max=200"`
	City         *string `json:"city" validate:"omitempty,max=120"`
	PropertyType *string `json:"propertyType" validate:"omitempty,max=60"`
	Source       *string `json:"source" validate:"omitempty,max=60"`
	Status       *string `json:"status" validate:"omitempty,max=60"`
	AssignedTo   *string `json:"assignedTo" validate:"omitempty,max=200"`
}

type ListLeadsRequest struct {
	Search     string `form:"search" validate:"max=100"`
	Status     string `form:"status" validate:"max=60"`
	Source     string `form:"source" validate:"max=60"`
	AssignedTo string `form:"assignedTo" validate:"max=200"`
	Page       int    `form:"page" validate:"omitempty,min=1"`
	PageSize   int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type CreateLeadNoteRequest struct {
	Body string `json:"body" validate:"required,notblank,max=2000"`
	Kind string `json:"kind" validate:"omitempty,oneof=note call_log"`
}

// ConvertLeadRequest carries optional overrides for the new contact. status is
// accepted for older clients and ignored: a converted lead always enters the
// pipeline at qualifie.
type ConvertLeadRequest struct {
	Architect string `json:"architect" validate:"omitempty,max=200"`
	Email     string `json:"email" validate:"omitempty,email,max=200"`
	City      string `json:"city" validate:"omitempty,max=120"`
	Status    string `json:"status"`
}

// Response DTOs
type LeadResponse struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone"`
	Email        string     `json:"email,omitempty"`
	City         string     `json:"city,omitempty"`
	PropertyType string     `json:"propertyType,omitempty"`
	Source       string     `json:"source,omitempty"`
	Status       string     `json:"status"`
	AssignedTo   string     `json:"assignedTo,omitempty"`
	CreatedBy    *uuid.UUID `json:"createdBy,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type LeadListResponse struct {
	Items      []LeadResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}

type LeadNoteResponse struct {
	ID        uuid.UUID `json:"id"`
	LeadID    uuid.UUID `json:"leadId"`
	Kind      string    `json:"kind"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type ConvertLeadResponse struct {
	ContactID        uuid.UUID `json:"contactId"`
	AlreadyConverted bool      `json:"alreadyConverted"`
	Repaired         bool      `json:"repaired"`
	NotesCopied      int       `json:"notesCopied"`
}
