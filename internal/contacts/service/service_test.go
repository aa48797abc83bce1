package service

import (
	"context"
	"testing"
	"time"

	"archi_crm_backend/internal/contacts/repository"
	"archi_crm_backend/internal/contacts/transport"
	"archi_crm_backend/internal/pipeline/domain"
	"archi_crm_backend/platform/apperr"
	"archi_crm_backend/platform/httpkit"
	"archi_crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeRepo struct {
	contacts map[uuid.UUID]repository.Contact
	opps     map[uuid.UUID]repository.Opportunity
	notes    []repository.Note
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{contacts: map[uuid.UUID]repository.Contact{}, opps: map[uuid.UUID]repository.Opportunity{}}
}

func (f *fakeRepo) CreateContact(_ context.Context, p repository.CreateContactParams) (repository.Contact, error) {
	c := repository.Contact{
		ID: p.Contact.ID, LeadID: p.LeadID, Name: p.Contact.Name, Phone: p.Contact.Phone, Email: p.Contact.Email,
		City: p.Contact.City, Source: p.Source, Tag: p.Contact.Tag, Status: p.Contact.Status, LeadStatus: p.Contact.LeadStatus,
		Architect: p.Contact.Architect, CreatedBy: p.CreatedBy, InvitedUserIDs: p.Invited,
	}
	f.contacts[c.ID] = c
	return c, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Contact, error) {
	c, ok := f.contacts[id]
	if !ok {
		return repository.Contact{}, repository.ErrNotFound
	}
	return c, nil
}

func (f *fakeRepo) List(_ context.Context, p repository.ListParams) ([]repository.Contact, int, error) {
	var out []repository.Contact
	for _, c := range f.contacts {
		if p.Scope.Allows(c.Owned()) {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func (f *fakeRepo) Update(_ context.Context, id uuid.UUID, p repository.UpdateContactParams) (repository.Contact, error) {
	c, ok := f.contacts[id]
	if !ok {
		return repository.Contact{}, repository.ErrNotFound
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Architect != nil {
		c.Architect = *p.Architect
	}
	f.contacts[id] = c
	return c, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.contacts, id)
	for oid, o := range f.opps {
		if o.ContactID == id {
			delete(f.opps, oid)
		}
	}
	return nil
}

func (f *fakeRepo) CreateOpportunity(_ context.Context, o domain.Opportunity, createdBy *uuid.UUID) (repository.Opportunity, error) {
	row := repository.Opportunity{
		ID: o.ID, ContactID: o.ContactID, Title: o.Title, Type: o.Type, Status: o.Status, Stage: o.Stage,
		Budget: o.Budget, Architect: o.Architect, Description: o.Description, CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}
	f.opps[o.ID] = row
	return row, nil
}

func (f *fakeRepo) GetOpportunity(_ context.Context, id uuid.UUID) (repository.Opportunity, error) {
	o, ok := f.opps[id]
	if !ok {
		return repository.Opportunity{}, repository.ErrOpportunityNotFound
	}
	return o, nil
}

func (f *fakeRepo) ListOpportunities(_ context.Context, contactID uuid.UUID) ([]repository.Opportunity, error) {
	var out []repository.Opportunity
	for _, o := range f.opps {
		if o.ContactID == contactID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateOpportunity(_ context.Context, o domain.Opportunity) (repository.Opportunity, error) {
	row := f.opps[o.ID]
	row.Title, row.Type, row.Status, row.Stage = o.Title, o.Type, o.Status, o.Stage
	row.Budget, row.Architect, row.Description = o.Budget, o.Architect, o.Description
	f.opps[o.ID] = row
	return row, nil
}

func (f *fakeRepo) DeleteOpportunity(_ context.Context, id uuid.UUID) error {
	if _, ok := f.opps[id]; !ok {
		return repository.ErrOpportunityNotFound
	}
	delete(f.opps, id)
	return nil
}

func (f *fakeRepo) CreateNote(_ context.Context, contactID uuid.UUID, kind, body, author string) (repository.Note, error) {
	n := repository.Note{ID: uuid.New(), ContactID: contactID, Kind: kind, Body: body, Author: author}
	f.notes = append(f.notes, n)
	return n, nil
}

func (f *fakeRepo) ListNotes(_ context.Context, _ uuid.UUID) ([]repository.Note, error) {
	return f.notes, nil
}

func (f *fakeRepo) ListTimeline(_ context.Context, _ uuid.UUID, _ int) ([]repository.TimelineEvent, error) {
	return nil, nil
}

type fakeMirrors struct {
	stages map[string]domain.Stage
}

func (f fakeMirrors) MirrorStages(context.Context, uuid.UUID) (map[string]domain.Stage, error) {
	return f.stages, nil
}

type recordingExec struct {
	applied []domain.Effect
}

func (r *recordingExec) Apply(_ context.Context, effects []domain.Effect) error {
	r.applied = append(r.applied, effects...)
	return nil
}

type countingReconciler struct {
	calls []uuid.UUID
}

func (c *countingReconciler) Reconcile(_ context.Context, id uuid.UUID) error {
	c.calls = append(c.calls, id)
	return nil
}

type fixture struct {
	svc   *Service
	repo  *fakeRepo
	exec  *recordingExec
	recon *countingReconciler
	admin httpkit.Identity
}

func newFixture(stages map[string]domain.Stage) fixture {
	repo := newFakeRepo()
	exec := &recordingExec{}
	recon := &countingReconciler{}
	svc := New(repo, fakeMirrors{stages: stages}, exec, recon, nil, nil, logger.New("test"))
	return fixture{
		svc:   svc,
		repo:  repo,
		exec:  exec,
		recon: recon,
		admin: httpkit.NewIdentity(uuid.New(), "admin@example.com", "Admin", httpkit.RoleAdmin),
	}
}

func (f fixture) seedContact(architect string) repository.Contact {
	c := repository.Contact{
		ID: uuid.New(), Name: "Karim Benali", Phone: "+212612345678", City: "Casablanca",
		Tag: domain.TagConverted, Status: domain.StageQualifie, Architect: architect,
	}
	f.repo.contacts[c.ID] = c
	return c
}

func effectsOf[T domain.Effect](effects []domain.Effect) []T {
	var out []T
	for _, e := range effects {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func TestCreateNormalizesPhoneAndDefaultsToConverted(t *testing.T) {
	f := newFixture(nil)

	resp, err := f.svc.Create(context.Background(), f.admin, transport.CreateContactRequest{
		Name: "  Salma Idrissi ", Phone: "0612345678",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Phone != "+212612345678" {
		t.Errorf("expected E.164 phone, got %q", resp.Phone)
	}
	if resp.Tag != string(domain.TagConverted) || resp.Status != string(domain.StageQualifie) {
		t.Errorf("expected converted/qualifie, got %s/%s", resp.Tag, resp.Status)
	}
	if resp.Name != "Salma Idrissi" {
		t.Errorf("expected trimmed name, got %q", resp.Name)
	}
}

func TestCreateRejectsInvalidPhone(t *testing.T) {
	f := newFixture(nil)
	_, err := f.svc.Create(context.Background(), f.admin, transport.CreateContactRequest{Name: "X", Phone: "abc"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRestrictedCallerCannotSeeOthersContact(t *testing.T) {
	f := newFixture(nil)
	c := f.seedContact("Youssef")

	architect := httpkit.NewIdentity(uuid.New(), "amine@example.com", "Amine", httpkit.RoleArchitect)
	if _, err := f.svc.Get(context.Background(), architect, c.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	owner := httpkit.NewIdentity(uuid.New(), "youssef@example.com", "youssef", httpkit.RoleArchitect)
	if _, err := f.svc.Get(context.Background(), owner, c.ID); err != nil {
		t.Fatalf("assigned architect should see the contact: %v", err)
	}
}

func TestCreateOpportunityWithDepositPromotesContact(t *testing.T) {
	f := newFixture(nil)
	c := f.seedContact("")

	budget := decimal.NewFromInt(900000)
	resp, err := f.svc.CreateOpportunity(context.Background(), f.admin, c.ID, transport.CreateOpportunityRequest{
		Type:          string(domain.TypeVilla),
		PipelineStage: string(domain.PipelineAcompteRecu),
		Budget:        &budget,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Title != "Villa - Casablanca" {
		t.Errorf("expected default title, got %q", resp.Title)
	}
	if resp.ClientKey != domain.OpportunityClientKey(c.ID, resp.ID) {
		t.Errorf("unexpected client key %q", resp.ClientKey)
	}

	tags := effectsOf[domain.SetContactTag](f.exec.applied)
	if len(tags) != 1 || tags[0].Tag != domain.TagClient {
		t.Fatalf("expected promotion to client, got %+v", tags)
	}
	if mirrors := effectsOf[domain.UpsertMirror](f.exec.applied); len(mirrors) != 1 || !mirrors[0].SetStage {
		t.Fatalf("expected one mirror upsert with stage, got %+v", mirrors)
	}
}

func TestCreateOpportunityRejectsNegativeBudget(t *testing.T) {
	f := newFixture(nil)
	c := f.seedContact("")

	budget := decimal.NewFromInt(-1)
	_, err := f.svc.CreateOpportunity(context.Background(), f.admin, c.ID, transport.CreateOpportunityRequest{
		Type: string(domain.TypeRiad), Budget: &budget,
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.repo.opps) != 0 {
		t.Fatal("nothing should be stored")
	}
}

func TestUpdateOpportunityToLostDemotesClient(t *testing.T) {
	f := newFixture(nil)
	c := f.seedContact("")
	c.Tag = domain.TagClient
	f.repo.contacts[c.ID] = c

	opp := repository.Opportunity{
		ID: uuid.New(), ContactID: c.ID, Title: "Villa Anfa", Type: domain.TypeVilla,
		Status: domain.StatusOpen, Stage: domain.PipelineAcompteRecu,
	}
	f.repo.opps[opp.ID] = opp
	key := domain.OpportunityClientKey(c.ID, opp.ID)
	f.svc.mirrors = fakeMirrors{stages: map[string]domain.Stage{key: domain.StageAcompteRecu}}

	lost := string(domain.StatusLost)
	if _, err := f.svc.UpdateOpportunity(context.Background(), f.admin, opp.ID, transport.UpdateOpportunityRequest{Status: &lost}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tags := effectsOf[domain.SetContactTag](f.exec.applied)
	if len(tags) != 1 || tags[0].Tag != domain.TagConverted {
		t.Fatalf("expected demotion to converted, got %+v", tags)
	}
	transitions := effectsOf[domain.TransitionClientStage](f.exec.applied)
	if len(transitions) != 1 || transitions[0].To != domain.StageRefuse || !transitions[0].BestEffort {
		t.Fatalf("expected best-effort move to refuse, got %+v", transitions)
	}
	if f.repo.opps[opp.ID].Status != domain.StatusLost {
		t.Fatal("status not persisted")
	}
}

func TestUpdateOpportunityRejectsBlankTitle(t *testing.T) {
	f := newFixture(nil)
	c := f.seedContact("")
	opp := repository.Opportunity{ID: uuid.New(), ContactID: c.ID, Title: "Riad", Status: domain.StatusOpen, Stage: domain.PipelineProjetAccepte}
	f.repo.opps[opp.ID] = opp

	blank := "   "
	_, err := f.svc.UpdateOpportunity(context.Background(), f.admin, opp.ID, transport.UpdateOpportunityRequest{Title: &blank})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteOpportunityReconcilesContact(t *testing.T) {
	f := newFixture(nil)
	c := f.seedContact("")
	opp := repository.Opportunity{ID: uuid.New(), ContactID: c.ID, Title: "Villa", Status: domain.StatusOpen, Stage: domain.PipelineAcompteRecu}
	f.repo.opps[opp.ID] = opp

	if err := f.svc.DeleteOpportunity(context.Background(), f.admin, opp.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.recon.calls) != 1 || f.recon.calls[0] != c.ID {
		t.Fatalf("expected one reconcile of the contact, got %v", f.recon.calls)
	}
	deletes := effectsOf[domain.DeleteMirror](f.exec.applied)
	if len(deletes) != 1 || deletes[0].Key != domain.OpportunityClientKey(c.ID, opp.ID) {
		t.Fatalf("expected mirror deletion, got %+v", deletes)
	}
}

func TestOpportunityOfHiddenContactIsNotFound(t *testing.T) {
	f := newFixture(nil)
	c := f.seedContact("Youssef")
	opp := repository.Opportunity{ID: uuid.New(), ContactID: c.ID, Title: "Villa", Status: domain.StatusOpen}
	f.repo.opps[opp.ID] = opp

	other := httpkit.NewIdentity(uuid.New(), "amine@example.com", "Amine", httpkit.RoleCommercial)
	_, err := f.svc.GetOpportunity(context.Background(), other, opp.ID)
	if err != repository.ErrOpportunityNotFound {
		t.Fatalf("expected opportunity not found, got %v", err)
	}
}

func TestUpdateContactNotifiesNewArchitect(t *testing.T) {
	f := newFixture(nil)
	c := f.seedContact("Youssef")

	next := "Nadia"
	if _, err := f.svc.Update(context.Background(), f.admin, c.ID, transport.UpdateContactRequest{Architect: &next}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	notices := effectsOf[domain.Notify](f.exec.applied)
	if len(notices) != 1 || notices[0].Recipient != "Nadia" || notices[0].Kind != domain.NotifyAssignment {
		t.Fatalf("expected assignment notice to Nadia, got %+v", notices)
	}
}

func TestApplyOpportunityUpdateTracksChangedFields(t *testing.T) {
	before := domain.Opportunity{Title: "Villa", Budget: decimal.NewNullDecimal(decimal.NewFromInt(100))}
	same := decimal.RequireFromString("100.00")
	desc := "Extension"

	_, changed, err := applyOpportunityUpdate(before, transport.UpdateOpportunityRequest{Budget: &same, Description: &desc})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changed) != 1 || changed[0] != "description" {
		t.Fatalf("expected only description changed, got %v", changed)
	}

	after, changed, _ := applyOpportunityUpdate(before, transport.UpdateOpportunityRequest{ClearBudget: true})
	if after.Budget.Valid || len(changed) != 1 {
		t.Fatalf("expected budget cleared, got %+v %v", after.Budget, changed)
	}
}

func TestManualReconcileIsPrivileged(t *testing.T) {
	f := newFixture(nil)
	c := f.seedContact("Amine")

	architect := httpkit.NewIdentity(uuid.New(), "amine@example.com", "Amine", httpkit.RoleArchitect)
	if err := f.svc.Reconcile(context.Background(), architect, c.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := f.svc.Reconcile(context.Background(), f.admin, uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for unknown contact, got %v", err)
	}
	if err := f.svc.Reconcile(context.Background(), f.admin, c.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.recon.calls) != 1 || f.recon.calls[0] != c.ID {
		t.Fatalf("expected one reconcile, got %v", f.recon.calls)
	}
}
