package domain

import (
	"strings"
	"time"
)

// DeriveTag computes the tag a contact must carry given all its opportunities:
// client while one of them holds a deposit or has been won.
func DeriveTag(opps []Opportunity) ContactTag {
	for _, o := range opps {
		if o.IsWon() || o.HoldsDeposit() {
			return TagClient
		}
	}
	return TagConverted
}

// DefaultTitle builds "{TypeLabel} - {ville_or_nom}". It is never empty.
func DefaultTitle(t OpportunityType, contact Contact) string {
	place := strings.TrimSpace(contact.City)
	if place == "" {
		place = strings.TrimSpace(contact.Name)
	}
	if place == "" {
		return t.Label()
	}
	return t.Label() + " - " + place
}

// PlanOpportunityCreation fills defaults on a new opportunity and decides the
// follow-up effects. opp.ID must already be assigned.
func PlanOpportunityCreation(contact Contact, opp Opportunity, actor Actor, now time.Time) (Opportunity, []Effect) {
	opp.ContactID = contact.ID
	if opp.Stage == "" {
		opp.Stage = DefaultPipelineStage(contact.Status)
	}
	if opp.Status == "" {
		opp.Status = StatusOpen
	}
	opp.Title = strings.TrimSpace(opp.Title)
	if opp.Title == "" {
		opp.Title = DefaultTitle(opp.Type, contact)
	}

	oppID := opp.ID
	effects := []Effect{
		AppendTimeline{Entry: TimelineEntry{
			ContactID:     contact.ID,
			OpportunityID: &oppID,
			EventType:     TimelineOpportunityCreated,
			Title:         "Opportunité créée : " + opp.Title,
			NewValue:      string(opp.Stage),
			Actor:         actor,
			Metadata:      map[string]any{"type": string(opp.Type), "status": string(opp.Status)},
			At:            now,
		}},
	}

	if opp.HoldsDeposit() || opp.IsWon() {
		effects = append(effects, tagEffects(contact, TagClient, actor, now, "Contact passé client")...)
	}

	effects = append(effects, UpsertMirror{Mirror: MirrorOf(contact, opp), SetStage: true})

	if opp.Architect != "" && !strings.EqualFold(opp.Architect, contact.Architect) {
		effects = append(effects, assignmentNotice(opp))
	}
	return opp, effects
}

// OpportunityUpdate is the input of PlanOpportunityUpdate.
type OpportunityUpdate struct {
	Contact       Contact
	Before        Opportunity
	After         Opportunity
	Siblings      []Opportunity // the contact's other opportunities
	ChangedFields []string
	MirrorStage   *Stage // current statut_projet of the mirror row, nil when missing
	Actor         Actor
	Now           time.Time
}

// PlanOpportunityUpdate decides the effects of an opportunity edit.
func PlanOpportunityUpdate(in OpportunityUpdate) []Effect {
	before, after := in.Before, in.After
	var effects []Effect

	becameLost := after.IsLost() && !before.IsLost()
	becameWon := after.IsWon() && !before.IsWon()
	leftDeposit := before.HoldsDeposit() && !after.HoldsDeposit()

	switch {
	case after.HoldsDeposit():
		effects = append(effects, tagEffects(in.Contact, TagClient, in.Actor, in.Now, "Acompte reçu sur une opportunité")...)
	case becameWon && wonCount(in.Siblings)+1 == 1:
		effects = append(effects, tagEffects(in.Contact, TagClient, in.Actor, in.Now, "Première opportunité gagnée")...)
	case (becameLost || leftDeposit) && in.Contact.Tag == TagClient:
		if DeriveTag(append(append([]Opportunity(nil), in.Siblings...), after)) == TagConverted {
			effects = append(effects, tagEffects(in.Contact, TagConverted, in.Actor, in.Now, "Plus aucune opportunité active avec acompte")...)
		}
	}

	effects = append(effects, updateTimeline(in)...)

	effects = append(effects, UpsertMirror{Mirror: MirrorOf(in.Contact, after), SetStage: in.MirrorStage == nil})
	if in.MirrorStage != nil {
		target := MirrorStageOf(after)
		moved := becameLost || becameWon || before.Stage != after.Stage || (before.IsLost() && !after.IsLost())
		if moved && shouldMoveMirror(*in.MirrorStage, target) {
			contactID, oppID := in.Contact.ID, after.ID
			effects = append(effects, TransitionClientStage{
				Client: ClientRecord{
					Key:           OpportunityClientKey(contactID, oppID),
					Kind:          ClientOpportunity,
					ContactID:     &contactID,
					OpportunityID: &oppID,
					Stage:         *in.MirrorStage,
				},
				From:       *in.MirrorStage,
				To:         target,
				Reason:     "Synchronisation avec l'opportunité",
				Actor:      in.Actor,
				At:         in.Now,
				BestEffort: true,
			})
		}
	}

	if after.Architect != "" && !strings.EqualFold(after.Architect, before.Architect) {
		effects = append(effects, assignmentNotice(after))
	}
	return effects
}

// updateTimeline returns exactly one of: a status change entry, a pipeline
// stage change entry, or a generic update entry.
func updateTimeline(in OpportunityUpdate) []Effect {
	before, after := in.Before, in.After
	oppID := after.ID
	entry := TimelineEntry{
		ContactID:     in.Contact.ID,
		OpportunityID: &oppID,
		Actor:         in.Actor,
		At:            in.Now,
	}

	switch {
	case before.Status != after.Status:
		entry.EventType = TimelineStatusChange
		entry.Title = "Statut de l'opportunité modifié"
		entry.OldValue = string(before.Status)
		entry.NewValue = string(after.Status)
		if before.Stage != after.Stage {
			entry.Metadata = map[string]any{"oldStage": string(before.Stage), "newStage": string(after.Stage)}
		}
	case before.Stage != after.Stage:
		entry.EventType = TimelinePipelineStageChange
		entry.Title = "Étape du pipeline modifiée"
		entry.OldValue = string(before.Stage)
		entry.NewValue = string(after.Stage)
	case len(in.ChangedFields) > 0:
		entry.EventType = TimelineOpportunityUpdated
		entry.Title = "Opportunité mise à jour"
		entry.Metadata = map[string]any{"fields": in.ChangedFields}
	default:
		return nil
	}
	return []Effect{AppendTimeline{Entry: entry}}
}

// shouldMoveMirror keeps a mirror row from sliding back along the pipeline:
// moves into or out of the excluded branch always apply, forward moves apply,
// backward moves are ignored.
func shouldMoveMirror(current, target Stage) bool {
	if current == target {
		return false
	}
	if target.IsExcluded() || current.IsExcluded() || !current.IsKnown() {
		return true
	}
	return target.Rank() > current.Rank()
}

// PlanOpportunityDeletion removes the mirror row and recomputes the tag from the
// remaining opportunities.
func PlanOpportunityDeletion(contact Contact, deleted Opportunity, remaining []Opportunity, actor Actor, now time.Time) []Effect {
	oppID := deleted.ID
	effects := []Effect{
		AppendTimeline{Entry: TimelineEntry{
			ContactID:     contact.ID,
			OpportunityID: &oppID,
			EventType:     TimelineOpportunityDeleted,
			Title:         "Opportunité supprimée : " + deleted.Title,
			OldValue:      string(deleted.Stage),
			Actor:         actor,
			At:            now,
		}},
	}
	effects = append(effects, tagEffects(contact, DeriveTag(remaining), actor, now, "Étiquette recalculée après suppression")...)
	effects = append(effects, DeleteMirror{Key: OpportunityClientKey(contact.ID, deleted.ID)})
	return effects
}

// ReconcileInput is the full source-of-truth state of one contact.
type ReconcileInput struct {
	Contact       Contact
	Opportunities []Opportunity
	// MirrorStages holds the current statut_projet per mirror key.
	MirrorStages map[string]Stage
	Now          time.Time
}

// PlanReconcile recomputes everything derived from a contact's opportunities.
// Applying its output twice is the same as applying it once.
func PlanReconcile(in ReconcileInput) []Effect {
	effects := tagEffects(in.Contact, DeriveTag(in.Opportunities), SystemActor, in.Now, "Étiquette réconciliée")

	for _, opp := range in.Opportunities {
		mirror := MirrorOf(in.Contact, opp)
		current, exists := in.MirrorStages[mirror.Key]
		effects = append(effects, UpsertMirror{Mirror: mirror, SetStage: !exists})
		if exists && opp.IsLost() && current != StageRefuse {
			contactID, oppID := in.Contact.ID, opp.ID
			effects = append(effects, TransitionClientStage{
				Client: ClientRecord{
					Key:           mirror.Key,
					Kind:          ClientOpportunity,
					ContactID:     &contactID,
					OpportunityID: &oppID,
					Stage:         current,
				},
				From:       current,
				To:         StageRefuse,
				Reason:     "Réconciliation : opportunité perdue",
				Actor:      SystemActor,
				At:         in.Now,
				BestEffort: true,
			})
		}
	}
	return effects
}

func wonCount(opps []Opportunity) int {
	n := 0
	for _, o := range opps {
		if o.IsWon() {
			n++
		}
	}
	return n
}

func assignmentNotice(opp Opportunity) Notify {
	return Notify{
		Recipient: opp.Architect,
		Kind:      NotifyAssignment,
		Title:     "Nouvelle opportunité assignée",
		Body:      opp.Title,
		Payload: map[string]any{
			"contactId":     opp.ContactID.String(),
			"opportunityId": opp.ID.String(),
		},
	}
}
