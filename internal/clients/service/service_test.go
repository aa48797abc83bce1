package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"archi_crm_backend/internal/adapters/storage"
	"archi_crm_backend/internal/clients/repository"
	"archi_crm_backend/internal/clients/transport"
	"archi_crm_backend/internal/pipeline/domain"
	"archi_crm_backend/internal/shared/access"
	"archi_crm_backend/platform/apperr"
	"archi_crm_backend/platform/httpkit"
	"archi_crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeRepo struct {
	projects      []repository.Client
	opportunities []repository.Client
	contacts      []repository.Client
	devis         map[uuid.UUID]repository.Devis
	payments      map[uuid.UUID]repository.Payment
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{devis: map[uuid.UUID]repository.Devis{}, payments: map[uuid.UUID]repository.Payment{}}
}

func visible(scope access.Scope, rows []repository.Client) []repository.Client {
	out := make([]repository.Client, 0, len(rows))
	for _, r := range rows {
		if scope.Allows(r.Owned()) {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeRepo) Resolve(_ context.Context, key string) (repository.Client, error) {
	for _, set := range [][]repository.Client{f.projects, f.opportunities, f.contacts} {
		for _, c := range set {
			if c.Key == key {
				return c, nil
			}
		}
	}
	return repository.Client{}, repository.ErrNotFound
}

func (f *fakeRepo) ListProjects(_ context.Context, scope access.Scope, _ string) ([]repository.Client, error) {
	return visible(scope, f.projects), nil
}

func (f *fakeRepo) ListOpportunityClients(_ context.Context, scope access.Scope, _ string) ([]repository.Client, error) {
	return visible(scope, f.opportunities), nil
}

func (f *fakeRepo) ListContactClients(_ context.Context, scope access.Scope, _ string) ([]repository.Client, error) {
	return visible(scope, f.contacts), nil
}

func (f *fakeRepo) CreateLegacy(_ context.Context, p repository.CreateLegacyParams) (repository.Client, error) {
	c := repository.Client{
		Key: p.Key, Kind: domain.ClientLegacy, ContactName: p.ContactName, Phone: p.Phone,
		Title: p.Title, Budget: p.Budget, Architect: p.Architect, Stage: p.Stage, CreatedBy: p.CreatedBy,
	}
	f.projects = append(f.projects, c)
	return c, nil
}

func (f *fakeRepo) ListHistorique(context.Context, string) ([]repository.HistoriqueEntry, error) {
	return nil, nil
}

func (f *fakeRepo) ListStageHistory(context.Context, string) ([]repository.StageInterval, error) {
	return nil, nil
}

func (f *fakeRepo) CreateDevis(_ context.Context, p repository.CreateDevisParams) (repository.Devis, error) {
	d := repository.Devis{ID: uuid.New(), ClientKey: p.ClientKey, Title: p.Title, Amount: p.Amount, Status: domain.DevisEnAttente}
	f.devis[d.ID] = d
	return d, nil
}

func (f *fakeRepo) GetDevis(_ context.Context, id uuid.UUID) (repository.Devis, error) {
	d, ok := f.devis[id]
	if !ok {
		return repository.Devis{}, repository.ErrDevisNotFound
	}
	return d, nil
}

func (f *fakeRepo) ListDevis(_ context.Context, clientKey string) ([]repository.Devis, error) {
	var out []repository.Devis
	for _, d := range f.devis {
		if d.ClientKey == clientKey {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeRepo) SaveDevisState(_ context.Context, id uuid.UUID, s domain.DevisState) (repository.Devis, error) {
	d := f.devis[id]
	d.Status = s.Status
	d.FactureReglee = s.FactureReglee
	f.devis[id] = d
	return d, nil
}

func (f *fakeRepo) SetDevisDocument(_ context.Context, id uuid.UUID, key *string) (repository.Devis, error) {
	d := f.devis[id]
	d.DocumentKey = key
	f.devis[id] = d
	return d, nil
}

func (f *fakeRepo) DeleteDevis(_ context.Context, id uuid.UUID) error {
	delete(f.devis, id)
	return nil
}

func (f *fakeRepo) CreatePayment(_ context.Context, p repository.CreatePaymentParams) (repository.Payment, error) {
	pay := repository.Payment{
		ID: uuid.New(), ClientKey: p.ClientKey, Amount: p.Amount, PaidAt: p.PaidAt,
		Method: p.Method, Type: p.Type, CreatedBy: p.CreatedBy,
	}
	f.payments[pay.ID] = pay
	return pay, nil
}

func (f *fakeRepo) GetPayment(_ context.Context, id uuid.UUID) (repository.Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return repository.Payment{}, repository.ErrPaymentNotFound
	}
	return p, nil
}

func (f *fakeRepo) ListPayments(_ context.Context, clientKey string) ([]repository.Payment, error) {
	var out []repository.Payment
	for _, p := range f.payments {
		if p.ClientKey == clientKey {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) CountPayments(ctx context.Context, clientKey string) (int, error) {
	p, _ := f.ListPayments(ctx, clientKey)
	return len(p), nil
}

func (f *fakeRepo) DeletePayment(_ context.Context, id uuid.UUID) error {
	delete(f.payments, id)
	return nil
}

type fakeContacts struct {
	contacts map[uuid.UUID]domain.Contact
	opps     map[uuid.UUID][]domain.Opportunity
}

func (f fakeContacts) GetContactState(_ context.Context, id uuid.UUID) (domain.Contact, error) {
	c, ok := f.contacts[id]
	if !ok {
		return domain.Contact{}, apperr.NotFound("contact not found")
	}
	return c, nil
}

func (f fakeContacts) ListOpportunityStates(_ context.Context, id uuid.UUID) ([]domain.Opportunity, error) {
	return f.opps[id], nil
}

type recordingExec struct {
	applied []domain.Effect
}

func (r *recordingExec) Apply(_ context.Context, effects []domain.Effect) error {
	r.applied = append(r.applied, effects...)
	return nil
}

type fakeDocs struct {
	deleted []string
}

func (f *fakeDocs) GenerateUploadURL(_ context.Context, folder, fileName, _ string, _ int64) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{URL: "https://minio.local/upload", FileKey: folder + "/" + fileName, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeDocs) GenerateDownloadURL(_ context.Context, key string) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{URL: "https://minio.local/" + key, FileKey: key}, nil
}

func (f *fakeDocs) DeleteObject(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

type fixture struct {
	svc      *Service
	repo     *fakeRepo
	contacts fakeContacts
	exec     *recordingExec
	docs     *fakeDocs
	admin    httpkit.Identity
}

func newFixture() fixture {
	repo := newFakeRepo()
	contacts := fakeContacts{contacts: map[uuid.UUID]domain.Contact{}, opps: map[uuid.UUID][]domain.Opportunity{}}
	exec := &recordingExec{}
	docs := &fakeDocs{}
	svc := New(repo, contacts, exec, nil, docs, logger.New("test"))
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }
	return fixture{
		svc:      svc,
		repo:     repo,
		contacts: contacts,
		exec:     exec,
		docs:     docs,
		admin:    httpkit.NewIdentity(uuid.New(), "admin@example.com", "Admin", httpkit.RoleAdmin),
	}
}

// seedOpportunityClient stores a client-tagged contact with one opportunity and its mirror row.
func (f fixture) seedOpportunityClient(stage domain.Stage, pipeline domain.PipelineStage) repository.Client {
	contactID, oppID := uuid.New(), uuid.New()
	f.contacts.contacts[contactID] = domain.Contact{
		ID: contactID, Name: "Karim Benali", Tag: domain.TagClient, Status: domain.StageQualifie, Architect: "Salma",
	}
	f.contacts.opps[contactID] = []domain.Opportunity{{
		ID: oppID, ContactID: contactID, Title: "Villa Anfa", Type: domain.OpportunityType("villa"),
		Status: domain.StatusOpen, Stage: pipeline,
	}}
	c := repository.Client{
		Key: domain.OpportunityClientKey(contactID, oppID), Kind: domain.ClientOpportunity,
		ContactID: &contactID, OpportunityID: &oppID, ContactName: "Karim Benali",
		Title: "Villa Anfa", Architect: "Salma", Stage: stage,
	}
	f.repo.projects = append(f.repo.projects, c)
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

func TestListMergesSourcesAndDropsDuplicates(t *testing.T) {
	f := newFixture()
	mirror := f.seedOpportunityClient(domain.StageConception, domain.PipelineAcompteRecu)

	derived := mirror
	derived.Title = "Villa Anfa (dérivée)"
	otherOpp := uuid.New()
	other := repository.Client{
		Key: domain.OpportunityClientKey(*mirror.ContactID, otherOpp), Kind: domain.ClientOpportunity,
		ContactID: mirror.ContactID, OpportunityID: &otherOpp, ContactName: "Karim Benali", Title: "Riad Médina",
		Stage: domain.StageNouveau,
	}
	f.repo.opportunities = []repository.Client{derived, other}

	contactID := uuid.New()
	f.repo.contacts = []repository.Client{{Key: contactID.String(), Kind: domain.ClientContact, ContactID: &contactID, ContactName: "Salma Idrissi", Stage: domain.StageQualifie}}

	resp, err := f.svc.List(context.Background(), f.admin, transport.ListClientsRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp.Total != 3 {
		t.Fatalf("expected 3 clients, got %d", resp.Total)
	}
	if resp.Items[0].Title != "Villa Anfa" || resp.Items[1].Title != "Riad Médina" || resp.Items[2].Name != "Salma Idrissi" {
		t.Fatalf("unexpected order: %+v", resp.Items)
	}
}

func TestListFiltersByCategoryAndPaginates(t *testing.T) {
	f := newFixture()
	for i := 0; i < 3; i++ {
		f.repo.projects = append(f.repo.projects, repository.Client{Key: uuid.NewString(), Kind: domain.ClientLegacy, Title: "Chantier", Stage: domain.StageChantier})
	}
	f.repo.projects = append(f.repo.projects, repository.Client{Key: uuid.NewString(), Kind: domain.ClientLegacy, Stage: domain.StagePerdu})

	resp, err := f.svc.List(context.Background(), f.admin, transport.ListClientsRequest{Category: "en_cours", Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp.Total != 3 || resp.TotalPages != 2 || len(resp.Items) != 1 {
		t.Fatalf("unexpected page: total=%d pages=%d items=%d", resp.Total, resp.TotalPages, len(resp.Items))
	}
	if resp.Items[0].Category != "en_cours" {
		t.Fatalf("expected en_cours item, got %q", resp.Items[0].Category)
	}
}

func TestStatsCountsCategories(t *testing.T) {
	f := newFixture()
	for _, stage := range []domain.Stage{domain.StageChantier, domain.StageLivraisonTermine, domain.StageQualifie, domain.StagePerdu, domain.Stage("inconnu")} {
		f.repo.projects = append(f.repo.projects, repository.Client{Key: uuid.NewString(), Kind: domain.ClientLegacy, Stage: stage})
	}

	stats, err := f.svc.Stats(context.Background(), f.admin)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := transport.ClientStatsResponse{Total: 5, EnCours: 1, Termine: 1, EnAttente: 2, Excluded: 1}
	if stats != want {
		t.Fatalf("got %+v, want %+v", stats, want)
	}
}

func TestRestrictedCallerCannotSeeOthersClient(t *testing.T) {
	f := newFixture()
	c := f.seedOpportunityClient(domain.StageQualifie, domain.PipelineProjetAccepte)
	stranger := httpkit.NewIdentity(uuid.New(), "rachid@example.com", "Rachid", httpkit.RoleArchitect)

	_, err := f.svc.Get(context.Background(), stranger, c.Key)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateLegacyDefaultsToQualifie(t *testing.T) {
	f := newFixture()
	resp, err := f.svc.CreateLegacy(context.Background(), f.admin, transport.CreateClientRequest{Name: "Youssef Alami", Title: "Studio Gauthier"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if resp.Stage != string(domain.StageQualifie) || resp.Kind != string(domain.ClientLegacy) {
		t.Fatalf("unexpected client: %+v", resp)
	}
}

func TestChangeStageRejectsUnknownStage(t *testing.T) {
	f := newFixture()
	c := f.seedOpportunityClient(domain.StageQualifie, domain.PipelineProjetAccepte)

	_, err := f.svc.ChangeStage(context.Background(), f.admin, c.Key, transport.ChangeStageRequest{Stage: "bogus"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.exec.applied) != 0 {
		t.Fatalf("expected no effects, got %d", len(f.exec.applied))
	}
}

func TestChangeStageTransitionsAndNotifiesArchitect(t *testing.T) {
	f := newFixture()
	c := f.seedOpportunityClient(domain.StageAcompteRecu, domain.PipelineAcompteRecu)

	resp, err := f.svc.ChangeStage(context.Background(), f.admin, c.Key, transport.ChangeStageRequest{Stage: "conception"})
	if err != nil {
		t.Fatalf("change stage: %v", err)
	}
	if resp.Stage != string(domain.StageConception) {
		t.Fatalf("expected conception, got %q", resp.Stage)
	}

	transitions := effectsOf[domain.TransitionClientStage](f.exec.applied)
	if len(transitions) != 1 || transitions[0].From != domain.StageAcompteRecu || transitions[0].To != domain.StageConception {
		t.Fatalf("unexpected transitions: %+v", transitions)
	}
	notices := effectsOf[domain.Notify](f.exec.applied)
	if len(notices) != 1 || notices[0].Recipient != "Salma" || notices[0].Kind != domain.NotifyStageChanged {
		t.Fatalf("unexpected notices: %+v", notices)
	}
}

func TestChangeStageToSameStageIsNoop(t *testing.T) {
	f := newFixture()
	c := f.seedOpportunityClient(domain.StageConception, domain.PipelineAcompteRecu)

	if _, err := f.svc.ChangeStage(context.Background(), f.admin, c.Key, transport.ChangeStageRequest{Stage: "conception"}); err != nil {
		t.Fatalf("change stage: %v", err)
	}
	if len(f.exec.applied) != 0 {
		t.Fatalf("expected no effects, got %+v", f.exec.applied)
	}
}

func TestFirstPaymentOfQualifieClientIsDepositAndAdvances(t *testing.T) {
	f := newFixture()
	c := f.seedOpportunityClient(domain.StageQualifie, domain.PipelineProjetAccepte)

	resp, err := f.svc.CreatePayment(context.Background(), f.admin, c.Key, transport.CreatePaymentRequest{
		Amount: decimal.NewFromInt(20000), Method: "virement",
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if resp.Type != string(domain.PaymentAccompte) {
		t.Fatalf("expected accompte, got %q", resp.Type)
	}

	transitions := effectsOf[domain.TransitionClientStage](f.exec.applied)
	if len(transitions) != 1 || transitions[0].To != domain.StageAcompteRecu {
		t.Fatalf("expected move to acompte_recu, got %+v", transitions)
	}
	promotions := effectsOf[domain.PromoteOpportunity](f.exec.applied)
	if len(promotions) != 1 || promotions[0].OpportunityID != *c.OpportunityID {
		t.Fatalf("expected the client's opportunity promoted, got %+v", promotions)
	}
}

func TestLaterPaymentIsInstallment(t *testing.T) {
	f := newFixture()
	c := f.seedOpportunityClient(domain.StageQualifie, domain.PipelineProjetAccepte)
	f.repo.payments[uuid.New()] = repository.Payment{ClientKey: c.Key, Amount: decimal.NewFromInt(1000), Type: domain.PaymentAccompte}

	resp, err := f.svc.CreatePayment(context.Background(), f.admin, c.Key, transport.CreatePaymentRequest{
		Amount: decimal.NewFromInt(5000), Method: "cheque",
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if resp.Type != string(domain.PaymentPaiement) {
		t.Fatalf("expected paiement, got %q", resp.Type)
	}
}

func TestCreatePaymentRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture()
	c := f.seedOpportunityClient(domain.StageQualifie, domain.PipelineProjetAccepte)

	_, err := f.svc.CreatePayment(context.Background(), f.admin, c.Key, transport.CreatePaymentRequest{Amount: decimal.Zero, Method: "espece"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.repo.payments) != 0 {
		t.Fatal("payment must not be stored")
	}
}

func TestFactureRegleeRequiresAcceptedDevis(t *testing.T) {
	f := newFixture()
	c := f.seedOpportunityClient(domain.StageAcompteRecu, domain.PipelineAcompteRecu)
	d, err := f.svc.CreateDevis(context.Background(), f.admin, c.Key, transport.CreateDevisRequest{Title: "Plans", Amount: decimal.NewFromInt(30000)})
	if err != nil {
		t.Fatalf("create devis: %v", err)
	}

	_, err = f.svc.SetFactureReglee(context.Background(), f.admin, c.Key, d.ID, transport.SetFactureRegleeRequest{FactureReglee: true})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRefusingDevisClearsFactureReglee(t *testing.T) {
	f := newFixture()
	c := f.seedOpportunityClient(domain.StageAcompteRecu, domain.PipelineAcompteRecu)
	id := uuid.New()
	f.repo.devis[id] = repository.Devis{ID: id, ClientKey: c.Key, Title: "Plans", Status: domain.DevisAccepte, FactureReglee: true}

	resp, err := f.svc.UpdateDevisStatus(context.Background(), f.admin, c.Key, id, transport.UpdateDevisStatusRequest{Status: "refuse"})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if resp.Status != string(domain.DevisRefuse) || resp.FactureReglee {
		t.Fatalf("unexpected devis: %+v", resp)
	}
	if h := effectsOf[domain.AppendHistorique](f.exec.applied); len(h) != 1 || h[0].Entry.Type != domain.HistoriqueDevis {
		t.Fatalf("expected one devis historique entry, got %+v", h)
	}
}

func TestDevisOfAnotherClientIsNotFound(t *testing.T) {
	f := newFixture()
	c := f.seedOpportunityClient(domain.StageAcompteRecu, domain.PipelineAcompteRecu)
	id := uuid.New()
	f.repo.devis[id] = repository.Devis{ID: id, ClientKey: uuid.NewString(), Status: domain.DevisEnAttente}

	_, err := f.svc.UpdateDevisStatus(context.Background(), f.admin, c.Key, id, transport.UpdateDevisStatusRequest{Status: "accepte"})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDevisUploadRecordsKeyAndDeleteRemovesObject(t *testing.T) {
	f := newFixture()
	c := f.seedOpportunityClient(domain.StageAcompteRecu, domain.PipelineAcompteRecu)
	d, err := f.svc.CreateDevis(context.Background(), f.admin, c.Key, transport.CreateDevisRequest{Title: "Plans", Amount: decimal.NewFromInt(30000)})
	if err != nil {
		t.Fatalf("create devis: %v", err)
	}

	up, err := f.svc.DevisUploadURL(context.Background(), f.admin, c.Key, d.ID, transport.DevisUploadRequest{FileName: "plans.pdf", ContentType: "application/pdf", SizeBytes: 1024})
	if err != nil {
		t.Fatalf("upload url: %v", err)
	}
	if stored := f.repo.devis[d.ID].DocumentKey; stored == nil || *stored != up.FileKey {
		t.Fatalf("document key not recorded: %v", stored)
	}

	if err := f.svc.DeleteDevis(context.Background(), f.admin, c.Key, d.ID); err != nil {
		t.Fatalf("delete devis: %v", err)
	}
	if len(f.docs.deleted) != 1 || f.docs.deleted[0] != up.FileKey {
		t.Fatalf("expected document deleted, got %v", f.docs.deleted)
	}
}

func TestDevisUploadWithoutStorageIsUnavailable(t *testing.T) {
	f := newFixture()
	f.svc.docs = nil
	c := f.seedOpportunityClient(domain.StageAcompteRecu, domain.PipelineAcompteRecu)

	_, err := f.svc.DevisUploadURL(context.Background(), f.admin, c.Key, uuid.New(), transport.DevisUploadRequest{FileName: "a.pdf", ContentType: "application/pdf", SizeBytes: 1})
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestRenderDevisProducesPDF(t *testing.T) {
	f := newFixture()
	c := f.seedOpportunityClient(domain.StageAcompteRecu, domain.PipelineAcompteRecu)
	id := uuid.MustParse("1a2b3c4d-0000-4000-8000-000000000000")
	f.repo.devis[id] = repository.Devis{ID: id, ClientKey: c.Key, Title: "Plans", Amount: decimal.NewFromInt(30000), Status: domain.DevisAccepte}
	payID := uuid.New()
	f.repo.payments[payID] = repository.Payment{ID: payID, ClientKey: c.Key, Amount: decimal.NewFromInt(10000), Method: domain.PaymentMethod("virement"), Type: domain.PaymentType("accompte")}

	doc, err := f.svc.RenderDevis(context.Background(), f.admin, c.Key, id)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if doc.FileName != "Devis-D-1A2B3C4D.pdf" {
		t.Fatalf("unexpected file name %q", doc.FileName)
	}
	if !bytes.HasPrefix(doc.Content, []byte("%PDF")) {
		t.Fatal("content is not a PDF")
	}
}
