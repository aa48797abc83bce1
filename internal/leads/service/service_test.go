package service

import (
	"context"
	"errors"
	"testing"
	"time"

	contactsrepo "archi_crm_backend/internal/contacts/repository"
	"archi_crm_backend/internal/leads/repository"
	"archi_crm_backend/internal/leads/transport"
	"archi_crm_backend/internal/pipeline/domain"
	"archi_crm_backend/platform/apperr"
	"archi_crm_backend/platform/httpkit"
	"archi_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeLeads struct {
	leads     map[uuid.UUID]repository.Lead
	notes     map[uuid.UUID][]repository.Note
	phones    map[string]bool
	copied    map[uuid.UUID]bool
	deleteErr error
	deleted   []uuid.UUID
}

func newFakeLeads() *fakeLeads {
	return &fakeLeads{
		leads:  map[uuid.UUID]repository.Lead{},
		notes:  map[uuid.UUID][]repository.Note{},
		copied: map[uuid.UUID]bool{},
		phones: map[string]bool{},
	}
}

func (f *fakeLeads) Create(_ context.Context, p repository.CreateParams) (repository.Lead, error) {
	l := repository.Lead{
		ID: uuid.New(), Name: p.Name, Phone: p.Phone, Email: p.Email, City: p.City, PropertyType: p.PropertyType,
		Source: p.Source, Status: p.Status, AssignedTo: p.AssignedTo, CreatedBy: p.CreatedBy,
	}
	f.leads[l.ID] = l
	f.phones[l.Phone] = true
	return l, nil
}

func (f *fakeLeads) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	l, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return l, nil
}

func (f *fakeLeads) List(context.Context, repository.ListParams) ([]repository.Lead, int, error) {
	return nil, 0, nil
}

func (f *fakeLeads) Update(_ context.Context, id uuid.UUID, p repository.UpdateParams) (repository.Lead, error) {
	l, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	if p.AssignedTo != nil {
		l.AssignedTo = *p.AssignedTo
	}
	if p.Status != nil {
		l.Status = *p.Status
	}
	f.leads[id] = l
	return l, nil
}

func (f *fakeLeads) Delete(_ context.Context, id uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.leads[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.leads, id)
	delete(f.notes, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeLeads) DeleteConverted(ctx context.Context, leadID, _ uuid.UUID) error {
	if _, ok := f.leads[leadID]; ok {
		for _, n := range f.notes[leadID] {
			if !f.copied[n.ID] {
				return repository.ErrNotesPending
			}
		}
	}
	return f.Delete(ctx, leadID)
}

func (f *fakeLeads) ExistsByPhone(_ context.Context, phone string) (bool, error) {
	return f.phones[phone], nil
}

func (f *fakeLeads) CreateNote(_ context.Context, leadID uuid.UUID, kind, body, author string) (repository.Note, error) {
	n := repository.Note{ID: uuid.New(), LeadID: leadID, Kind: kind, Body: body, Author: author, CreatedAt: time.Now()}
	f.notes[leadID] = append(f.notes[leadID], n)
	return n, nil
}

func (f *fakeLeads) ListNotes(_ context.Context, leadID uuid.UUID) ([]repository.Note, error) {
	return f.notes[leadID], nil
}

type fakeContacts struct {
	byLead    map[uuid.UUID]contactsrepo.Contact
	createErr error
	hideState bool
	creates   int
}

func (f *fakeContacts) FindByLeadID(_ context.Context, leadID uuid.UUID) (contactsrepo.Contact, error) {
	c, ok := f.byLead[leadID]
	if !ok {
		return contactsrepo.Contact{}, contactsrepo.ErrNotFound
	}
	return c, nil
}

func (f *fakeContacts) CreateContact(_ context.Context, p contactsrepo.CreateContactParams) (contactsrepo.Contact, error) {
	f.creates++
	if f.createErr != nil {
		return contactsrepo.Contact{}, f.createErr
	}
	c := contactsrepo.Contact{
		ID: p.Contact.ID, LeadID: p.LeadID, Name: p.Contact.Name, Tag: p.Contact.Tag,
		Status: p.Contact.Status, LeadStatus: p.Contact.LeadStatus, Architect: p.Contact.Architect, CreatedBy: p.CreatedBy,
	}
	f.byLead[*p.LeadID] = c
	return c, nil
}

func (f *fakeContacts) GetContactState(_ context.Context, id uuid.UUID) (domain.Contact, error) {
	if f.hideState {
		return domain.Contact{}, contactsrepo.ErrNotFound
	}
	for _, c := range f.byLead {
		if c.ID == id {
			return c.State(), nil
		}
	}
	return domain.Contact{}, contactsrepo.ErrNotFound
}

// recordingExec records effects and marks copied notes on the lead store.
// failCopies drops that many note copies the way a failed secondary write does.
type recordingExec struct {
	applied    []domain.Effect
	leads      *fakeLeads
	failCopies int
}

func (r *recordingExec) Apply(_ context.Context, effects []domain.Effect) error {
	r.applied = append(r.applied, effects...)
	for _, e := range effects {
		c, ok := e.(domain.CopyNotes)
		if !ok {
			continue
		}
		if r.failCopies > 0 {
			r.failCopies--
			continue
		}
		for _, n := range c.Notes {
			r.leads.copied[n.ID] = true
		}
	}
	return nil
}

type fixture struct {
	svc      *Service
	leads    *fakeLeads
	contacts *fakeContacts
	exec     *recordingExec
	admin    httpkit.Identity
}

func newFixture() fixture {
	leads := newFakeLeads()
	contacts := &fakeContacts{byLead: map[uuid.UUID]contactsrepo.Contact{}}
	exec := &recordingExec{leads: leads}
	return fixture{
		svc:      New(leads, contacts, exec, nil, nil, logger.New("test")),
		leads:    leads,
		contacts: contacts,
		exec:     exec,
		admin:    httpkit.NewIdentity(uuid.New(), "admin@example.com", "Admin", httpkit.RoleAdmin),
	}
}

func (f fixture) seedLead(assignedTo string) repository.Lead {
	l := repository.Lead{
		ID: uuid.New(), Name: "Karim Benali", Phone: "+212612345678", City: "Rabat",
		Source: "facebook", Status: "a_rappeler", AssignedTo: assignedTo,
	}
	f.leads.leads[l.ID] = l
	return l
}

func countOf[T domain.Effect](effects []domain.Effect) int {
	n := 0
	for _, e := range effects {
		if _, ok := e.(T); ok {
			n++
		}
	}
	return n
}

func TestConvertCreatesQualifiedContactAndDeletesLead(t *testing.T) {
	f := newFixture()
	lead := f.seedLead("Youssef")
	_, _ = f.leads.CreateNote(context.Background(), lead.ID, "call_log", "Rappeler lundi", "Admin")

	resp, err := f.svc.Convert(context.Background(), f.admin, lead.ID, transport.ConvertLeadRequest{Status: "acompte_recu"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.AlreadyConverted || resp.NotesCopied != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}

	contact := f.contacts.byLead[lead.ID]
	if contact.Status != domain.StageQualifie || contact.Tag != domain.TagConverted {
		t.Fatalf("requested status must be ignored, got %s/%s", contact.Status, contact.Tag)
	}
	if contact.Architect != "Youssef" {
		t.Errorf("expected lead assignee as architect, got %q", contact.Architect)
	}
	if _, still := f.leads.leads[lead.ID]; still {
		t.Error("lead should be deleted")
	}
	if countOf[domain.CopyNotes](f.exec.applied) != 1 || countOf[domain.Notify](f.exec.applied) != 1 {
		t.Errorf("expected notes copy and assignment notice, got %+v", f.exec.applied)
	}
}

func TestConvertTwiceReturnsExistingContact(t *testing.T) {
	f := newFixture()
	lead := f.seedLead("")

	first, err := f.svc.Convert(context.Background(), f.admin, lead.ID, transport.ConvertLeadRequest{})
	if err != nil {
		t.Fatalf("first conversion: %v", err)
	}
	second, err := f.svc.Convert(context.Background(), f.admin, lead.ID, transport.ConvertLeadRequest{})
	if err != nil {
		t.Fatalf("second conversion: %v", err)
	}
	if second.ContactID != first.ContactID || !second.AlreadyConverted || second.Repaired {
		t.Fatalf("expected idempotent success, got %+v", second)
	}
	if f.contacts.creates != 1 {
		t.Fatalf("expected a single contact insert, got %d", f.contacts.creates)
	}
}

func TestConvertRepairsDriftedStatus(t *testing.T) {
	f := newFixture()
	leadID := uuid.New()
	f.contacts.byLead[leadID] = contactsrepo.Contact{ID: uuid.New(), Status: domain.StageNouveau, LeadStatus: domain.Stage("bogus")}

	resp, err := f.svc.Convert(context.Background(), f.admin, leadID, transport.ConvertLeadRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Repaired {
		t.Fatal("expected repair")
	}
	if countOf[domain.SetContactStatus](f.exec.applied) != 1 {
		t.Fatalf("expected a status repair, got %+v", f.exec.applied)
	}
}

func TestConvertResetsProgressedContactToQualifie(t *testing.T) {
	f := newFixture()
	leadID := uuid.New()
	f.contacts.byLead[leadID] = contactsrepo.Contact{ID: uuid.New(), Status: domain.StageChantier, LeadStatus: domain.StageQualifie}

	resp, err := f.svc.Convert(context.Background(), f.admin, leadID, transport.ConvertLeadRequest{})
	if err != nil || !resp.Repaired {
		t.Fatalf("expected repaired contact, got %+v %v", resp, err)
	}
	set := countOf[domain.SetContactStatus](f.exec.applied)
	if set != 1 {
		t.Fatalf("expected a status repair, got %+v", f.exec.applied)
	}
	for _, e := range f.exec.applied {
		if s, ok := e.(domain.SetContactStatus); ok && s.Status != domain.StageQualifie {
			t.Fatalf("expected qualifie, got %q", s.Status)
		}
	}
}

func TestConvertKeepsLeadUntilNotesAreCopied(t *testing.T) {
	f := newFixture()
	lead := f.seedLead("")
	note, _ := f.leads.CreateNote(context.Background(), lead.ID, "call_log", "Budget 2M MAD", "Admin")
	f.exec.failCopies = 1

	first, err := f.svc.Convert(context.Background(), f.admin, lead.ID, transport.ConvertLeadRequest{})
	if err != nil {
		t.Fatalf("first conversion: %v", err)
	}
	if _, still := f.leads.leads[lead.ID]; !still {
		t.Fatal("lead must be kept while its notes are not copied")
	}
	if len(f.leads.notes[lead.ID]) != 1 {
		t.Fatal("lead notes must survive a failed copy")
	}

	second, err := f.svc.Convert(context.Background(), f.admin, lead.ID, transport.ConvertLeadRequest{})
	if err != nil {
		t.Fatalf("second conversion: %v", err)
	}
	if !second.AlreadyConverted || second.ContactID != first.ContactID || second.NotesCopied != 1 {
		t.Fatalf("unexpected response %+v", second)
	}
	if !f.leads.copied[note.ID] {
		t.Fatal("note should be copied on the second conversion")
	}
	if _, still := f.leads.leads[lead.ID]; still {
		t.Fatal("lead should be deleted once its notes are copied")
	}
	if countOf[domain.CopyNotes](f.exec.applied) != 2 {
		t.Fatalf("expected two copy attempts, got %+v", f.exec.applied)
	}
}

func TestConvertFailsWhenContactCannotBeVerified(t *testing.T) {
	f := newFixture()
	lead := f.seedLead("")
	f.contacts.hideState = true

	_, err := f.svc.Convert(context.Background(), f.admin, lead.ID, transport.ConvertLeadRequest{})
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if _, still := f.leads.leads[lead.ID]; !still {
		t.Fatal("lead must survive a failed conversion")
	}
	if len(f.exec.applied) != 0 {
		t.Fatal("no effects should run before verification")
	}
}

func TestConvertSurvivesLeadDeletionFailure(t *testing.T) {
	f := newFixture()
	lead := f.seedLead("")
	f.leads.deleteErr = errors.New("boom")

	resp, err := f.svc.Convert(context.Background(), f.admin, lead.ID, transport.ConvertLeadRequest{})
	if err != nil {
		t.Fatalf("deletion failure must not fail the conversion: %v", err)
	}
	if resp.ContactID == uuid.Nil {
		t.Fatal("expected contact id")
	}
}

func TestConvertHiddenLeadIsNotFound(t *testing.T) {
	f := newFixture()
	lead := f.seedLead("Youssef")

	other := httpkit.NewIdentity(uuid.New(), "amine@example.com", "Amine", httpkit.RoleCommercial)
	_, err := f.svc.Convert(context.Background(), other, lead.ID, transport.ConvertLeadRequest{})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateRejectsKnownPhone(t *testing.T) {
	f := newFixture()
	f.leads.phones["+212612345678"] = true

	_, err := f.svc.Create(context.Background(), f.admin, transport.CreateLeadRequest{Name: "Salma", Phone: "0612345678"})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateAssignsRestrictedCallerAndStoresNote(t *testing.T) {
	f := newFixture()
	commercial := httpkit.NewIdentity(uuid.New(), "nadia@example.com", "Nadia", httpkit.RoleCommercial)

	resp, err := f.svc.Create(context.Background(), commercial, transport.CreateLeadRequest{
		Name: "Salma", Phone: "0612345679", Note: "Intéressée par un riad",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.AssignedTo != "Nadia" || resp.Status != defaultLeadStatus {
		t.Fatalf("unexpected lead %+v", resp)
	}
	if len(f.leads.notes[resp.ID]) != 1 {
		t.Fatal("expected initial note")
	}
}

func TestUpdateNotifiesNewAssignee(t *testing.T) {
	f := newFixture()
	lead := f.seedLead("Youssef")

	next := "Nadia"
	if _, err := f.svc.Update(context.Background(), f.admin, lead.ID, transport.UpdateLeadRequest{AssignedTo: &next}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if countOf[domain.Notify](f.exec.applied) != 1 {
		t.Fatalf("expected assignment notice, got %+v", f.exec.applied)
	}
}

func TestCaptureHasNoAuthorAndDefaultsSource(t *testing.T) {
	f := newFixture()

	resp, err := f.svc.Capture(context.Background(), transport.CreateLeadRequest{
		Name: "Omar", Phone: "+212 661-234567", Note: "Rénovation appartement Maarif",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lead := f.leads.leads[resp.ID]
	if lead.CreatedBy != nil || lead.AssignedTo != "" || lead.Source != captureSource {
		t.Fatalf("unexpected captured lead %+v", lead)
	}
	notes := f.leads.notes[resp.ID]
	if len(notes) != 1 || notes[0].Author != captureSource {
		t.Fatalf("expected note authored by the capture source, got %+v", notes)
	}
}
