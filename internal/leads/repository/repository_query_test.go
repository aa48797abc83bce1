package repository

import (
	"testing"

	"archi_crm_backend/internal/shared/access"

	"github.com/google/uuid"
)

func TestLeadOwnershipUsesAssignee(t *testing.T) {
	creator := uuid.New()
	lead := Lead{CreatedBy: &creator, AssignedTo: "Youssef"}

	byName := access.Scope{UserID: uuid.New(), Name: "youssef", Restricted: true}
	if !byName.Allows(lead.Owned()) {
		t.Fatal("assignee by name should see the lead")
	}
	stranger := access.Scope{UserID: uuid.New(), Name: "Amine", Restricted: true}
	if stranger.Allows(lead.Owned()) {
		t.Fatal("stranger should not see the lead")
	}
}
