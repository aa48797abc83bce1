package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DevisState is the part of a devis the status rule touches.
type DevisState struct {
	Status        DevisStatus
	FactureReglee bool
}

// ApplyDevisStatus moves a devis to next. Only an accepted devis may stay
// marked as invoiced-and-paid.
func ApplyDevisStatus(current DevisState, next DevisStatus) DevisState {
	switch next {
	case DevisAccepte:
		return DevisState{Status: next, FactureReglee: current.FactureReglee}
	default:
		return DevisState{Status: next, FactureReglee: false}
	}
}

// CanMarkFactureReglee reports whether a devis in status s may be flagged paid.
func CanMarkFactureReglee(s DevisStatus) bool {
	return s == DevisAccepte
}

// BillingContext is the state around a client record needed by payment and
// devis rules.
type BillingContext struct {
	Client        ClientRecord
	Contact       *Contact      // nil for legacy clients without a contact
	Opportunities []Opportunity // the contact's opportunities
	PriorPayments int
	Actor         Actor
	Now           time.Time
}

// PaymentPlan is the outcome of recording a payment.
type PaymentPlan struct {
	Type    PaymentType
	Effects []Effect
}

// PaymentTypeFor returns accompte for the very first payment of a client that
// has not reached a post-deposit stage, paiement otherwise.
func PaymentTypeFor(stage Stage, priorPayments int) PaymentType {
	if !stage.IsPostDeposit() && priorPayments == 0 {
		return PaymentAccompte
	}
	return PaymentPaiement
}

// PlanPayment decides the type of a new payment and whether it moves the
// client out of qualifie. A payment that moves the client is recorded in the
// auto-progression entry only, so the client gets a single historique entry.
func PlanPayment(in BillingContext, amount decimal.Decimal, method PaymentMethod) PaymentPlan {
	plan := PaymentPlan{Type: PaymentTypeFor(in.Client.Stage, in.PriorPayments)}

	if in.Client.Stage == StageQualifie {
		trigger := "Acompte reçu (" + amount.StringFixed(2) + " MAD, " + string(method) + ")"
		plan.Effects = append(plan.Effects, advanceFromQualifie(in, trigger)...)
	} else {
		plan.Effects = append(plan.Effects, AppendHistorique{Entry: HistoriqueEntry{
			ClientKey:   in.Client.Key,
			Type:        HistoriquePayment,
			Description: "Paiement enregistré (" + string(plan.Type) + ", " + string(method) + ")",
			NewValue:    amount.StringFixed(2),
			Author:      in.Actor.Name,
			At:          in.Now,
		}})
	}

	if in.Contact != nil && in.Contact.Architect != "" {
		plan.Effects = append(plan.Effects, Notify{
			Recipient: in.Contact.Architect,
			Kind:      NotifyPaymentRecorded,
			Title:     "Paiement enregistré",
			Body:      in.Contact.Name + " : " + amount.StringFixed(2) + " MAD",
			Payload:   map[string]any{"clientKey": in.Client.Key, "type": string(plan.Type)},
		})
	}
	return plan
}

// PlanDevisStatusChange records a devis status change. Accepting a devis does
// not move the stage by itself: it only completes the move out of qualifie
// when the client has already paid.
func PlanDevisStatusChange(in BillingContext, title string, from, to DevisStatus) []Effect {
	if from == to {
		return nil
	}
	effects := []Effect{AppendHistorique{Entry: HistoriqueEntry{
		ClientKey:   in.Client.Key,
		Type:        HistoriqueDevis,
		Description: "Devis « " + title + " » : statut modifié",
		OldValue:    string(from),
		NewValue:    string(to),
		Author:      in.Actor.Name,
		At:          in.Now,
	}}}
	if to == DevisAccepte && in.Client.Stage == StageQualifie && in.PriorPayments > 0 {
		effects = append(effects, advanceFromQualifie(in, "Devis accepté")...)
	}
	return effects
}

// advanceFromQualifie moves the client to acompte_recu and brings the contact
// and its opportunities along so the tag invariant keeps holding.
func advanceFromQualifie(in BillingContext, trigger string) []Effect {
	effects := []Effect{TransitionClientStage{
		Client: in.Client,
		From:   StageQualifie,
		To:     StageAcompteRecu,
		Reason: HistoriqueAutoProgression + " : " + trigger,
		Actor:  in.Actor,
		At:     in.Now,
	}}
	if in.Contact == nil {
		return effects
	}
	contact := *in.Contact

	if in.Client.Kind == ClientOpportunity && contact.Status == StageQualifie {
		effects = append(effects, SetContactStatus{ContactID: contact.ID, Status: StageAcompteRecu})
	}

	promoted := false
	for _, opp := range in.Opportunities {
		if !promotable(opp, in.Client) {
			continue
		}
		oppID := opp.ID
		effects = append(effects,
			PromoteOpportunity{OpportunityID: opp.ID, ContactID: contact.ID, From: opp.Stage, To: PipelineAcompteRecu},
			AppendTimeline{Entry: TimelineEntry{
				ContactID:     contact.ID,
				OpportunityID: &oppID,
				EventType:     TimelinePipelineStageChange,
				Title:         trigger + " : étape du pipeline avancée",
				OldValue:      string(opp.Stage),
				NewValue:      string(PipelineAcompteRecu),
				Actor:         in.Actor,
				At:            in.Now,
			}},
		)
		promoted = true
	}

	if promoted || DeriveTag(in.Opportunities) == TagClient {
		effects = append(effects, tagEffects(contact, TagClient, in.Actor, in.Now, trigger)...)
	}
	return effects
}

func promotable(opp Opportunity, client ClientRecord) bool {
	if opp.Status != StatusOpen {
		return false
	}
	if opp.Stage != PipelinePriseDeBesoin && opp.Stage != PipelineProjetAccepte {
		return false
	}
	switch client.Kind {
	case ClientOpportunity:
		return client.OpportunityID != nil && *client.OpportunityID == opp.ID
	case ClientContact:
		return true
	default:
		return false
	}
}

// PlanStageChange moves a client record to another stage by hand.
func PlanStageChange(client ClientRecord, to Stage, actor Actor, now time.Time) []Effect {
	if client.Stage == to {
		return nil
	}
	effects := []Effect{TransitionClientStage{
		Client: client,
		From:   client.Stage,
		To:     to,
		Reason: HistoriqueStageChange,
		Actor:  actor,
		At:     now,
	}}
	if client.Kind == ClientContact && client.ContactID != nil {
		effects = append(effects, AppendTimeline{Entry: TimelineEntry{
			ContactID: *client.ContactID,
			EventType: TimelineContactStageChange,
			Title:     "Statut du contact modifié",
			OldValue:  string(client.Stage),
			NewValue:  string(to),
			Actor:     actor,
			At:        now,
		}})
	}
	return effects
}
