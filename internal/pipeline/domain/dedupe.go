package domain

import (
	"archi_crm_backend/platform/sanitize"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DedupeKey is what the client listing compares rows on.
type DedupeKey struct {
	OpportunityID *uuid.UUID
	ContactID     *uuid.UUID
	ContactName   string
	Title         string
	Budget        decimal.NullDecimal
}

// genericTitles never identify a project on their own.
var genericTitles = map[string]struct{}{
	"projet":               {},
	"nouveau projet":       {},
	"sans titre":           {},
	"client":               {},
	"opportunite":          {},
	"nouvelle opportunite": {},
	"villa":                {},
	"appartement":          {},
	"magasin":              {},
	"bureau":               {},
	"riad":                 {},
	"studio":               {},
	"renovation":           {},
	"autre":                {},
}

// IsGenericTitle reports whether a normalized title is too vague to dedupe on.
func IsGenericTitle(normalized string) bool {
	if normalized == "" {
		return true
	}
	_, ok := genericTitles[normalized]
	return ok
}

// Dedupe drops rows that describe the same project, keeping the first one seen.
// Rows match by opportunity id, then by (contact id, title, budget), then by
// (contact name, title) when the title is specific and the name is known. The
// last rule can merge two distinct projects of namesakes; it is kept because the
// listing has always behaved that way.
func Dedupe[T any](rows []T, keyOf func(T) DedupeKey) []T {
	byOpportunity := make(map[uuid.UUID]struct{})
	byContactTitleBudget := make(map[string]struct{})
	byNameTitle := make(map[string]struct{})

	out := make([]T, 0, len(rows))
	for _, row := range rows {
		k := keyOf(row)
		title := sanitize.Fold(k.Title)
		name := sanitize.Fold(k.ContactName)

		var oppKey *uuid.UUID
		if k.OpportunityID != nil {
			oppKey = k.OpportunityID
			if _, seen := byOpportunity[*oppKey]; seen {
				continue
			}
		}

		ctbKey := ""
		if k.ContactID != nil {
			ctbKey = k.ContactID.String() + "|" + title + "|" + budgetKey(k.Budget)
			if _, seen := byContactTitleBudget[ctbKey]; seen {
				continue
			}
		}

		ntKey := ""
		if name != "" && !IsGenericTitle(title) {
			ntKey = name + "|" + title
			if _, seen := byNameTitle[ntKey]; seen {
				continue
			}
		}

		if oppKey != nil {
			byOpportunity[*oppKey] = struct{}{}
		}
		if ctbKey != "" {
			byContactTitleBudget[ctbKey] = struct{}{}
		}
		if ntKey != "" {
			byNameTitle[ntKey] = struct{}{}
		}
		out = append(out, row)
	}
	return out
}

func budgetKey(b decimal.NullDecimal) string {
	if !b.Valid {
		return "-"
	}
	return b.Decimal.StringFixed(2)
}
