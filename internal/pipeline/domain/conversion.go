package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConversionRequest carries the optional caller input of a lead conversion.
// RequestedStatus is accepted for compatibility and ignored.
type ConversionRequest struct {
	Architect       string
	Email           string
	City            string
	RequestedStatus string
}

// ConversionPlan is the contact to persist and what to do once it is persisted.
type ConversionPlan struct {
	Contact Contact
	Effects []Effect
}

// PlanLeadConversion builds the contact for a lead. The contact always enters
// the pipeline at qualifie and inherits the lead's assignee unless an architect
// is given. The lead itself is removed by the caller after the contact is
// verified persisted.
func PlanLeadConversion(lead Lead, req ConversionRequest, contactID uuid.UUID, actor Actor, now time.Time) ConversionPlan {
	architect := strings.TrimSpace(req.Architect)
	if architect == "" {
		architect = strings.TrimSpace(lead.AssignedTo)
	}
	email := firstNonEmpty(req.Email, lead.Email)
	city := firstNonEmpty(req.City, lead.City)

	contact := Contact{
		ID:         contactID,
		Name:       strings.TrimSpace(lead.Name),
		Phone:      lead.Phone,
		Email:      email,
		City:       city,
		Tag:        TagConverted,
		Status:     StageQualifie,
		LeadStatus: StageQualifie,
		Architect:  architect,
	}

	effects := make([]Effect, 0, 3)
	if len(lead.Notes) > 0 {
		effects = append(effects, CopyNotes{LeadID: lead.ID, ContactID: contactID, Notes: lead.Notes})
	}
	effects = append(effects, AppendTimeline{Entry: TimelineEntry{
		ContactID: contactID,
		EventType: TimelineLeadConverted,
		Title:     "Lead converti en contact",
		OldValue:  lead.Status,
		NewValue:  string(StageQualifie),
		Actor:     actor,
		Metadata: map[string]any{
			"leadId":      lead.ID.String(),
			"source":      lead.Source,
			"notesCopied": len(lead.Notes),
		},
		At: now,
	}})
	if architect != "" {
		effects = append(effects, Notify{
			Recipient: architect,
			Kind:      NotifyAssignment,
			Title:     "Nouveau contact assigné",
			Body:      contact.Name,
			Payload:   map[string]any{"contactId": contactID.String(), "city": city},
		})
	}

	return ConversionPlan{Contact: contact, Effects: effects}
}

// PlanConversionRepair heals a contact found when a lead is converted again:
// any status or lead status other than qualifie is set back to qualifie. The
// tag is left alone; the reconciler derives it from the opportunities.
func PlanConversionRepair(existing Contact, actor Actor, now time.Time) []Effect {
	if existing.Status == StageQualifie && existing.LeadStatus == StageQualifie {
		return nil
	}
	status, leadStatus := StageQualifie, StageQualifie
	return []Effect{
		SetContactStatus{ContactID: existing.ID, Status: status, LeadStatus: &leadStatus},
		AppendTimeline{Entry: TimelineEntry{
			ContactID: existing.ID,
			EventType: TimelineConversionRepaired,
			Title:     "Statut de conversion rétabli",
			OldValue:  string(existing.Status),
			NewValue:  string(status),
			Actor:     actor,
			At:        now,
		}},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
