package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Actor identifies who triggered a change.
type Actor struct {
	UserID *uuid.UUID
	Name   string
}

// SystemActor is used by background reconciliation.
var SystemActor = Actor{Name: "Système"}

// Note is a free-text note or call log attached to a lead or contact.
type Note struct {
	ID        uuid.UUID
	Kind      string
	Body      string
	Author    string
	CreatedAt time.Time
}

// Lead is the state of a lead at conversion time.
type Lead struct {
	ID           uuid.UUID
	Name         string
	Phone        string
	Email        string
	City         string
	PropertyType string
	Source       string
	Status       string
	AssignedTo   string
	CreatedBy    *uuid.UUID
	Notes        []Note
}

// Contact is the engine's view of a contact.
type Contact struct {
	ID          uuid.UUID
	Name        string
	Phone       string
	Email       string
	City        string
	Tag         ContactTag
	Status      Stage
	LeadStatus  Stage
	Architect   string
	ClientSince *time.Time
}

// Opportunity is the engine's view of an opportunity.
type Opportunity struct {
	ID          uuid.UUID
	ContactID   uuid.UUID
	Title       string
	Type        OpportunityType
	Status      OpportunityStatus
	Stage       PipelineStage
	Budget      decimal.NullDecimal
	Architect   string
	Description string
}

// IsLost reports whether the opportunity is lost by status or by stage.
func (o Opportunity) IsLost() bool {
	return o.Status == StatusLost || o.Stage == PipelinePerdue
}

// IsWon reports whether the opportunity is won by status or by stage.
func (o Opportunity) IsWon() bool {
	return o.Status == StatusWon || o.Stage == PipelineGagnee
}

// HoldsDeposit reports whether the opportunity is an active acompte_recu one.
func (o Opportunity) HoldsDeposit() bool {
	return o.Stage == PipelineAcompteRecu && !o.IsLost() && !o.IsWon()
}

// ClientRecord is a record payments and devis attach to.
type ClientRecord struct {
	Key           string
	Kind          ClientKind
	ContactID     *uuid.UUID
	OpportunityID *uuid.UUID
	Stage         Stage
}

// ClientMirror is the projection of an opportunity into client_projects.
type ClientMirror struct {
	Key           string
	ContactID     uuid.UUID
	OpportunityID uuid.UUID
	ContactName   string
	Phone         string
	Email         string
	City          string
	Title         string
	Type          OpportunityType
	Budget        decimal.NullDecimal
	Architect     string
	Stage         Stage
}

// OpportunityClientKey is the mirror row key of an opportunity.
func OpportunityClientKey(contactID, opportunityID uuid.UUID) string {
	return contactID.String() + "-" + opportunityID.String()
}

// SplitClientKey decodes a client key. A composite key yields both ids; a plain
// uuid yields only first (a legacy row id or a contact id, resolved by storage).
func SplitClientKey(key string) (first uuid.UUID, opportunityID *uuid.UUID, ok bool) {
	const idLen = 36
	switch len(key) {
	case idLen:
		id, err := uuid.Parse(key)
		if err != nil {
			return uuid.Nil, nil, false
		}
		return id, nil, true
	case 2*idLen + 1:
		if key[idLen] != '-' {
			return uuid.Nil, nil, false
		}
		contactID, err := uuid.Parse(key[:idLen])
		if err != nil {
			return uuid.Nil, nil, false
		}
		oppID, err := uuid.Parse(key[idLen+1:])
		if err != nil {
			return uuid.Nil, nil, false
		}
		return contactID, &oppID, true
	default:
		return uuid.Nil, nil, false
	}
}

// MirrorOf projects an opportunity and its contact into a mirror row.
func MirrorOf(contact Contact, opp Opportunity) ClientMirror {
	architect := opp.Architect
	if architect == "" {
		architect = contact.Architect
	}
	return ClientMirror{
		Key:           OpportunityClientKey(contact.ID, opp.ID),
		ContactID:     contact.ID,
		OpportunityID: opp.ID,
		ContactName:   contact.Name,
		Phone:         contact.Phone,
		Email:         contact.Email,
		City:          contact.City,
		Title:         opp.Title,
		Type:          opp.Type,
		Budget:        opp.Budget,
		Architect:     architect,
		Stage:         MirrorStageOf(opp),
	}
}

// MirrorStageOf is the statut_projet an opportunity's mirror row should carry.
// A lost or won status overrides the stage mapping.
func MirrorStageOf(opp Opportunity) Stage {
	switch {
	case opp.IsLost():
		return StageRefuse
	case opp.Status == StatusWon:
		return StageProjetEnCours
	default:
		return MirrorStage(opp.Stage)
	}
}
