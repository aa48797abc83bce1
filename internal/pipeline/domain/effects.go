package domain

import (
	"time"

	"github.com/google/uuid"
)

// Effect is a side effect decided by the engine. The set is closed.
type Effect interface {
	effect()
}

// TimelineEventType classifies contact timeline entries.
type TimelineEventType string

const (
	TimelineLeadConverted       TimelineEventType = "lead_converted"
	TimelineConversionRepaired  TimelineEventType = "conversion_repaired"
	TimelineOpportunityCreated  TimelineEventType = "opportunity_created"
	TimelineOpportunityUpdated  TimelineEventType = "opportunity_updated"
	TimelineOpportunityDeleted  TimelineEventType = "opportunity_deleted"
	TimelineStatusChange        TimelineEventType = "status_change"
	TimelinePipelineStageChange TimelineEventType = "pipeline_stage_change"
	TimelineTagChanged          TimelineEventType = "tag_changed"
	TimelineContactStageChange  TimelineEventType = "contact_stage_change"
)

// TimelineEntry is an append-only timeline record on a contact.
type TimelineEntry struct {
	ContactID     uuid.UUID
	OpportunityID *uuid.UUID
	EventType     TimelineEventType
	Title         string
	OldValue      string
	NewValue      string
	Actor         Actor
	Metadata      map[string]any
	At            time.Time
}

// HistoriqueEntry is an append-only record on a client.
type HistoriqueEntry struct {
	ClientKey   string
	Type        string
	Description string
	OldValue    string
	NewValue    string
	Author      string
	At          time.Time
}

// Historique entry types.
const (
	HistoriqueStageChange     = "changement_statut"
	HistoriqueAutoProgression = "auto-progression"
	HistoriquePayment         = "paiement"
	HistoriqueDevis           = "devis"
)

// SetContactTag sets the contact tag. ClientSince is written only when non-nil.
type SetContactTag struct {
	ContactID   uuid.UUID
	Tag         ContactTag
	ClientSince *time.Time
}

// SetContactStatus moves the contact status, and the lead status when LeadStatus is set.
type SetContactStatus struct {
	ContactID  uuid.UUID
	Status     Stage
	LeadStatus *Stage
}

// PromoteOpportunity moves an opportunity to another pipeline stage.
type PromoteOpportunity struct {
	OpportunityID uuid.UUID
	ContactID     uuid.UUID
	From          PipelineStage
	To            PipelineStage
}

// AppendTimeline appends a contact timeline entry.
type AppendTimeline struct {
	Entry TimelineEntry
}

// AppendHistorique appends a client historique entry. Always best-effort.
type AppendHistorique struct {
	Entry HistoriqueEntry
}

// UpsertMirror writes the mirror row of an opportunity. Always best-effort.
// The stored stage is only replaced when SetStage is true.
type UpsertMirror struct {
	Mirror   ClientMirror
	SetStage bool
}

// DeleteMirror removes the mirror row of a deleted opportunity. Always best-effort.
type DeleteMirror struct {
	Key string
}

// TransitionClientStage closes the open stage interval of a client, opens a
// new one, stores the new stage and appends a historique entry.
type TransitionClientStage struct {
	Client     ClientRecord
	From       Stage
	To         Stage
	Reason     string
	Actor      Actor
	At         time.Time
	BestEffort bool
}

// CopyNotes copies lead notes onto a contact, keeping their timestamps.
type CopyNotes struct {
	LeadID    uuid.UUID
	ContactID uuid.UUID
	Notes     []Note
}

// Notify asks for a user notification. Recipient is a user id or display name.
// Always fire-and-forget.
type Notify struct {
	Recipient string
	Kind      NotificationKind
	Title     string
	Body      string
	Payload   map[string]any
}

func (SetContactTag) effect()         {}
func (SetContactStatus) effect()      {}
func (PromoteOpportunity) effect()    {}
func (AppendTimeline) effect()        {}
func (AppendHistorique) effect()      {}
func (UpsertMirror) effect()          {}
func (DeleteMirror) effect()          {}
func (TransitionClientStage) effect() {}
func (CopyNotes) effect()             {}
func (Notify) effect()                {}

// tagEffects returns the effects that bring contact to tag, or nil when it is
// already there. clientSince is only ever set once.
func tagEffects(contact Contact, tag ContactTag, actor Actor, now time.Time, reason string) []Effect {
	if contact.Tag == tag {
		return nil
	}
	set := SetContactTag{ContactID: contact.ID, Tag: tag}
	if tag == TagClient && contact.ClientSince == nil {
		since := now
		set.ClientSince = &since
	}
	return []Effect{
		set,
		AppendTimeline{Entry: TimelineEntry{
			ContactID: contact.ID,
			EventType: TimelineTagChanged,
			Title:     reason,
			OldValue:  string(contact.Tag),
			NewValue:  string(tag),
			Actor:     actor,
			At:        now,
		}},
	}
}
