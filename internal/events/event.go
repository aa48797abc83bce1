// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"archi_crm_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published when a new lead is created.
type LeadCreated struct {
	BaseEvent
	LeadID     uuid.UUID  `json:"leadId"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone"`
	Source     string     `json:"source,omitempty"`
	AssignedTo string     `json:"assignedTo,omitempty"`
	CreatedBy  *uuid.UUID `json:"createdBy,omitempty"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadConverted is published once a lead has become a contact.
type LeadConverted struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	ContactID uuid.UUID `json:"contactId"`
	Architect string    `json:"architect,omitempty"`
	Repaired  bool      `json:"repaired"`
}

func (e LeadConverted) EventName() string { return "leads.lead.converted" }

// =============================================================================
// Pipeline Domain Events
// =============================================================================

// OpportunityChanged is published after any opportunity write. The scheduler
// listens to it to enqueue a reconcile of the owning contact.
type OpportunityChanged struct {
	BaseEvent
	ContactID     uuid.UUID `json:"contactId"`
	OpportunityID uuid.UUID `json:"opportunityId"`
	Change        string    `json:"change"` // "created", "updated", "deleted"
}

func (e OpportunityChanged) EventName() string { return "pipeline.opportunity.changed" }

// =============================================================================
// Calendar Domain Events
// =============================================================================

// AppointmentCreated is published when an appointment is created.
type AppointmentCreated struct {
	BaseEvent
	AppointmentID uuid.UUID   `json:"appointmentId"`
	Title         string      `json:"title"`
	StartTime     time.Time   `json:"startTime"`
	EndTime       time.Time   `json:"endTime"`
	Location      string      `json:"location,omitempty"`
	CreatedBy     uuid.UUID   `json:"createdBy"`
	Participants  []uuid.UUID `json:"participants"`
}

func (e AppointmentCreated) EventName() string { return "appointments.created" }

// AppointmentUpdated is published when an appointment's schedule or details change.
type AppointmentUpdated struct {
	BaseEvent
	AppointmentID uuid.UUID   `json:"appointmentId"`
	Title         string      `json:"title"`
	StartTime     time.Time   `json:"startTime"`
	EndTime       time.Time   `json:"endTime"`
	Location      string      `json:"location,omitempty"`
	UpdatedBy     uuid.UUID   `json:"updatedBy"`
	Participants  []uuid.UUID `json:"participants"`
}

func (e AppointmentUpdated) EventName() string { return "appointments.updated" }

// =============================================================================
// Notification Domain Events
// =============================================================================

// NotificationRequested asks the dispatcher to deliver a notice to one user.
// Recipient is a user id or, for free-text assignees, a user name.
type NotificationRequested struct {
	BaseEvent
	Recipient string         `json:"recipient"`
	Kind      string         `json:"kind"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Payload   map[string]any `json:"payload,omitempty"`
}

func (e NotificationRequested) EventName() string { return "notification.requested" }
