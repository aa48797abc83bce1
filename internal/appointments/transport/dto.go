package transport

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus defines the status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// CreateAppointmentRequest is the request body for creating an appointment
type CreateAppointmentRequest struct {
	Title        string      `json:"title" validate:"required,notblank,max=200"`
	Description  string      `json:"description,omitempty" validate:"max=2000"`
	Location     string      `json:"location,omitempty" validate:"max=500"`
	StartTime    time.Time   `json:"startTime" validate:"required"`
	EndTime      time.Time   `json:"endTime" validate:"required,gtfield=StartTime"`
	ContactID    *uuid.UUID  `json:"contactId,omitempty"`
	LeadID       *uuid.UUID  `json:"leadId,omitempty"`
	Participants []uuid.UUID `json:"participants" validate:"max=20"`
}

// UpdateAppointmentRequest is the request body for updating an appointment
type UpdateAppointmentRequest struct {
	Title        *string      `json:"title,omitempty" validate:"omitempty,notblank,max=200"`
	Description  *string      `json:"description,omitempty" validate:"omitempty,max=2000"`
	Location     *string      `json:"location,omitempty" validate:"omitempty,max=500"`
	StartTime    *time.Time   `json:"startTime,omitempty"`
	EndTime      *time.Time   `json:"endTime,omitempty"`
	Participants *[]uuid.UUID `json:"participants,omitempty"`
}

// UpdateAppointmentStatusRequest is the request body for updating appointment status
type UpdateAppointmentStatusRequest struct {
	Status AppointmentStatus `json:"status" validate:"required,oneof=scheduled completed cancelled"`
}

// ListAppointmentsRequest is the query parameters for listing appointments
type ListAppointmentsRequest struct {
	ContactID string `form:"contactId" validate:"omitempty,uuid"`
	LeadID    string `form:"leadId" validate:"omitempty,uuid"`
	Status    string `form:"status" validate:"omitempty,oneof=scheduled completed cancelled"`
	StartFrom string `form:"startFrom"` // ISO date
	StartTo   string `form:"startTo"`   // ISO date
	Page      int    `form:"page" validate:"omitempty,min=1"`
	PageSize  int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// AppointmentResponse is the response body for an appointment
type AppointmentResponse struct {
	ID           uuid.UUID         `json:"id"`
	Title        string            `json:"title"`
	Description  *string           `json:"description,omitempty"`
	Location     *string           `json:"location,omitempty"`
	StartTime    time.Time         `json:"startTime"`
	EndTime      time.Time         `json:"endTime"`
	Status       AppointmentStatus `json:"status"`
	ContactID    *uuid.UUID        `json:"contactId,omitempty"`
	LeadID       *uuid.UUID        `json:"leadId,omitempty"`
	CreatedBy    uuid.UUID         `json:"createdBy"`
	Participants []uuid.UUID       `json:"participants"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// AppointmentListResponse is the paginated response for listing appointments
type AppointmentListResponse struct {
	Items      []AppointmentResponse `json:"items"`
	Total      int                   `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"pageSize"`
	TotalPages int                   `json:"totalPages"`
}
