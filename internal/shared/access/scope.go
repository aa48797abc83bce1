// Package access restricts what architects and commercials see. Admins and
// managers see every record; everyone else only rows they created, rows
// assigned to them (by id or by display name) and rows they were invited on.
package access

import (
	"fmt"
	"strings"

	"archi_crm_backend/platform/apperr"
	"archi_crm_backend/platform/httpkit"

	"github.com/google/uuid"
)

// Scope is the row filter of one caller.
type Scope struct {
	UserID     uuid.UUID
	Name       string
	Restricted bool
}

// All is the unrestricted scope used by background jobs.
var All = Scope{}

// FromIdentity builds the scope of an authenticated caller.
func FromIdentity(id httpkit.Identity) Scope {
	return Scope{
		UserID:     id.UserID(),
		Name:       strings.TrimSpace(id.Name()),
		Restricted: !id.IsPrivileged(),
	}
}

// Owned is the ownership data of a row.
type Owned struct {
	CreatedBy  *uuid.UUID
	AssignedTo string
	Invited    []uuid.UUID
}

// Allows reports whether the scope may see the row.
func (s Scope) Allows(o Owned) bool {
	if !s.Restricted {
		return true
	}
	if o.CreatedBy != nil && *o.CreatedBy == s.UserID {
		return true
	}
	assigned := strings.TrimSpace(o.AssignedTo)
	if assigned != "" {
		if assigned == s.UserID.String() || (s.Name != "" && strings.EqualFold(assigned, s.Name)) {
			return true
		}
	}
	for _, id := range o.Invited {
		if id == s.UserID {
			return true
		}
	}
	return false
}

// Check returns a not-found error when the row is outside the scope, so that
// restricted callers cannot probe for ids they may not see.
func (s Scope) Check(o Owned, what string) error {
	if s.Allows(o) {
		return nil
	}
	return apperr.NotFound(what + " not found")
}

// Columns names the ownership columns of a table for SQL filtering. Invited
// may be empty when the table has no invitation list.
type Columns struct {
	CreatedBy  string
	AssignedTo string
	Invited    string
}

// Where returns a SQL predicate and its args, numbered from argIdx. The
// predicate is "TRUE" for an unrestricted scope.
func (s Scope) Where(cols Columns, argIdx int) (string, []any) {
	if !s.Restricted {
		return "TRUE", nil
	}

	clauses := []string{
		fmt.Sprintf("%s = $%d", cols.CreatedBy, argIdx),
		fmt.Sprintf("%s = $%d::text", cols.AssignedTo, argIdx),
		fmt.Sprintf("lower(%s) = lower($%d)", cols.AssignedTo, argIdx+1),
	}
	if cols.Invited != "" {
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(%s)", argIdx, cols.Invited))
	}
	name := s.Name
	if name == "" {
		// Never matches a blank assignee.
		name = s.UserID.String()
	}
	return "(" + strings.Join(clauses, " OR ") + ")", []any{s.UserID, name}
}
