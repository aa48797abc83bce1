// Package service holds client listing, stage, devis and payment use cases.
package service

import (
	"context"
	"strings"
	"time"

	"archi_crm_backend/internal/adapters/storage"
	"archi_crm_backend/internal/clients/repository"
	"archi_crm_backend/internal/clients/transport"
	"archi_crm_backend/internal/pipeline/domain"
	"archi_crm_backend/internal/shared/access"
	"archi_crm_backend/platform/apperr"
	"archi_crm_backend/platform/httpkit"
	"archi_crm_backend/platform/logger"
	"archi_crm_backend/platform/phone"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository is what the service needs from client storage.
type Repository interface {
	Resolve(ctx context.Context, key string) (repository.Client, error)
	ListProjects(ctx context.Context, scope access.Scope, search string) ([]repository.Client, error)
	ListOpportunityClients(ctx context.Context, scope access.Scope, search string) ([]repository.Client, error)
	ListContactClients(ctx context.Context, scope access.Scope, search string) ([]repository.Client, error)
	CreateLegacy(ctx context.Context, p repository.CreateLegacyParams) (repository.Client, error)

	ListHistorique(ctx context.Context, clientKey string) ([]repository.HistoriqueEntry, error)
	ListStageHistory(ctx context.Context, clientKey string) ([]repository.StageInterval, error)

	CreateDevis(ctx context.Context, p repository.CreateDevisParams) (repository.Devis, error)
	GetDevis(ctx context.Context, id uuid.UUID) (repository.Devis, error)
	ListDevis(ctx context.Context, clientKey string) ([]repository.Devis, error)
	SaveDevisState(ctx context.Context, id uuid.UUID, s domain.DevisState) (repository.Devis, error)
	SetDevisDocument(ctx context.Context, id uuid.UUID, documentKey *string) (repository.Devis, error)
	DeleteDevis(ctx context.Context, id uuid.UUID) error

	CreatePayment(ctx context.Context, p repository.CreatePaymentParams) (repository.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (repository.Payment, error)
	ListPayments(ctx context.Context, clientKey string) ([]repository.Payment, error)
	CountPayments(ctx context.Context, clientKey string) (int, error)
	DeletePayment(ctx context.Context, id uuid.UUID) error
}

// ContactSource loads the contact side of a client record.
type ContactSource interface {
	GetContactState(ctx context.Context, contactID uuid.UUID) (domain.Contact, error)
	ListOpportunityStates(ctx context.Context, contactID uuid.UUID) ([]domain.Opportunity, error)
}

// EffectApplier executes engine effects.
type EffectApplier interface {
	Apply(ctx context.Context, effects []domain.Effect) error
}

// Retrier retries primary writes on transient failures.
type Retrier interface {
	Do(ctx context.Context, op string, fn func(ctx context.Context) error) error
}

type Service struct {
	repo     Repository
	contacts ContactSource
	exec     EffectApplier
	retrier  Retrier
	docs     storage.DocumentStore
	log      *logger.Logger
	now      func() time.Time
}

// New wires the service. docs may be nil when object storage is disabled.
func New(repo Repository, contacts ContactSource, exec EffectApplier, retrier Retrier, docs storage.DocumentStore, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		contacts: contacts,
		exec:     exec,
		retrier:  retrier,
		docs:     docs,
		log:      log,
		now:      time.Now,
	}
}

func actorOf(id httpkit.Identity) domain.Actor {
	uid := id.UserID()
	name := strings.TrimSpace(id.Name())
	if name == "" {
		name = id.Email()
	}
	return domain.Actor{UserID: &uid, Name: name}
}

func (s *Service) write(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if s.retrier == nil {
		return fn(ctx)
	}
	return s.retrier.Do(ctx, op, fn)
}

// loadClient resolves a key to a client record the caller may see.
func (s *Service) loadClient(ctx context.Context, id httpkit.Identity, key string) (repository.Client, error) {
	client, err := s.repo.Resolve(ctx, strings.TrimSpace(key))
	if err != nil {
		return repository.Client{}, err
	}
	if err := access.FromIdentity(id).Check(client.Owned(), "client"); err != nil {
		return repository.Client{}, err
	}
	return client, nil
}

// listAll merges legacy rows, mirrors, opportunity pseudo-clients and contact
// pseudo-clients in that order and drops duplicates, keeping the first seen.
func (s *Service) listAll(ctx context.Context, id httpkit.Identity, search string) ([]repository.Client, error) {
	scope := access.FromIdentity(id)

	projects, err := s.repo.ListProjects(ctx, scope, search)
	if err != nil {
		return nil, err
	}
	opportunities, err := s.repo.ListOpportunityClients(ctx, scope, search)
	if err != nil {
		return nil, err
	}
	contacts, err := s.repo.ListContactClients(ctx, scope, search)
	if err != nil {
		return nil, err
	}

	merged := make([]repository.Client, 0, len(projects)+len(opportunities)+len(contacts))
	merged = append(merged, projects...)
	merged = append(merged, opportunities...)
	merged = append(merged, contacts...)
	return domain.Dedupe(merged, repository.Client.DedupeKey), nil
}

func (s *Service) List(ctx context.Context, id httpkit.Identity, req transport.ListClientsRequest) (transport.ClientListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	clients, err := s.listAll(ctx, id, req.Search)
	if err != nil {
		return transport.ClientListResponse{}, err
	}

	filtered := clients[:0]
	for _, c := range clients {
		if req.Category != "" && string(domain.Classify(string(c.Stage))) != req.Category {
			continue
		}
		if req.Stage != "" && string(c.Stage) != req.Stage {
			continue
		}
		filtered = append(filtered, c)
	}

	total := len(filtered)
	start := min((req.Page-1)*req.PageSize, total)
	end := min(start+req.PageSize, total)

	items := make([]transport.ClientResponse, 0, end-start)
	for _, c := range filtered[start:end] {
		items = append(items, toClientResponse(c))
	}
	return transport.ClientListResponse{
		Items:      items,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: (total + req.PageSize - 1) / req.PageSize,
	}, nil
}

// Stats counts the visible clients per category.
func (s *Service) Stats(ctx context.Context, id httpkit.Identity) (transport.ClientStatsResponse, error) {
	clients, err := s.listAll(ctx, id, "")
	if err != nil {
		return transport.ClientStatsResponse{}, err
	}

	var out transport.ClientStatsResponse
	for _, c := range clients {
		out.Total++
		switch domain.Classify(string(c.Stage)) {
		case domain.CategoryEnCours:
			out.EnCours++
		case domain.CategoryTermine:
			out.Termine++
		case domain.CategoryExcluded:
			out.Excluded++
		default:
			out.EnAttente++
		}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id httpkit.Identity, key string) (transport.ClientDetailResponse, error) {
	client, err := s.loadClient(ctx, id, key)
	if err != nil {
		return transport.ClientDetailResponse{}, err
	}

	devis, err := s.repo.ListDevis(ctx, client.Key)
	if err != nil {
		return transport.ClientDetailResponse{}, err
	}
	payments, err := s.repo.ListPayments(ctx, client.Key)
	if err != nil {
		return transport.ClientDetailResponse{}, err
	}
	historique, err := s.repo.ListHistorique(ctx, client.Key)
	if err != nil {
		return transport.ClientDetailResponse{}, err
	}
	intervals, err := s.repo.ListStageHistory(ctx, client.Key)
	if err != nil {
		return transport.ClientDetailResponse{}, err
	}

	return transport.ClientDetailResponse{
		ClientResponse: toClientResponse(client),
		Devis:          mapSlice(devis, toDevisResponse),
		Payments:       mapSlice(payments, toPaymentResponse),
		Historique:     mapSlice(historique, toHistoriqueResponse),
		StageHistory:   mapSlice(intervals, toStageIntervalResponse),
		TotalPaid:      totalOf(payments),
	}, nil
}

// CreateLegacy records a client that has no contact behind it.
func (s *Service) CreateLegacy(ctx context.Context, id httpkit.Identity, req transport.CreateClientRequest) (transport.ClientResponse, error) {
	stage := domain.StageQualifie
	if req.Stage != "" {
		var err error
		if stage, err = domain.ParseStage(req.Stage); err != nil {
			return transport.ClientResponse{}, apperr.Validation(err.Error())
		}
	}

	normalized := ""
	if p := strings.TrimSpace(req.Phone); p != "" {
		if !phone.IsValid(p) {
			return transport.ClientResponse{}, apperr.Validation("invalid phone number")
		}
		normalized = phone.NormalizeE164(p)
	}

	var budget decimal.NullDecimal
	if req.Budget != nil {
		if req.Budget.IsNegative() {
			return transport.ClientResponse{}, apperr.Validation("budget must not be negative")
		}
		budget = decimal.NullDecimal{Decimal: *req.Budget, Valid: true}
	}

	architect := strings.TrimSpace(req.Architect)
	if architect == "" && !id.IsPrivileged() {
		architect = id.Name()
	}

	uid := id.UserID()
	params := repository.CreateLegacyParams{
		Key:         uuid.New().String(),
		ContactName: strings.TrimSpace(req.Name),
		Phone:       normalized,
		Email:       strings.TrimSpace(req.Email),
		City:        strings.TrimSpace(req.City),
		Title:       strings.TrimSpace(req.Title),
		Type:        req.Type,
		Budget:      budget,
		Architect:   architect,
		Stage:       stage,
		CreatedBy:   &uid,
	}

	var created repository.Client
	err := s.write(ctx, "create_client", func(ctx context.Context) error {
		var err error
		created, err = s.repo.CreateLegacy(ctx, params)
		return err
	})
	if err != nil {
		return transport.ClientResponse{}, err
	}
	return toClientResponse(created), nil
}

// ChangeStage moves a client to another stage by hand. The architect in
// charge is told when someone else made the move.
func (s *Service) ChangeStage(ctx context.Context, id httpkit.Identity, key string, req transport.ChangeStageRequest) (transport.ClientResponse, error) {
	to, err := domain.ParseStage(req.Stage)
	if err != nil {
		return transport.ClientResponse{}, apperr.Validation(err.Error())
	}

	client, err := s.loadClient(ctx, id, key)
	if err != nil {
		return transport.ClientResponse{}, err
	}

	actor := actorOf(id)
	effects := domain.PlanStageChange(client.Record(), to, actor, s.now())
	if len(effects) == 0 {
		return toClientResponse(client), nil
	}
	if client.Architect != "" && client.Architect != id.Name() {
		effects = append(effects, domain.Notify{
			Recipient: client.Architect,
			Kind:      domain.NotifyStageChanged,
			Title:     "Statut du projet modifié",
			Body:      client.ContactName + " : " + client.Stage.Label() + " → " + to.Label(),
			Payload:   map[string]any{"clientKey": client.Key, "stage": string(to)},
		})
	}

	if err := s.exec.Apply(ctx, effects); err != nil {
		return transport.ClientResponse{}, err
	}
	client.Stage = to
	return toClientResponse(client), nil
}

// billingContext gathers what payment and devis rules need about a client.
func (s *Service) billingContext(ctx context.Context, id httpkit.Identity, client repository.Client) (domain.BillingContext, error) {
	in := domain.BillingContext{
		Client: client.Record(),
		Actor:  actorOf(id),
		Now:    s.now(),
	}

	prior, err := s.repo.CountPayments(ctx, client.Key)
	if err != nil {
		return domain.BillingContext{}, err
	}
	in.PriorPayments = prior

	if client.ContactID == nil || s.contacts == nil {
		return in, nil
	}
	contact, err := s.contacts.GetContactState(ctx, *client.ContactID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return in, nil
		}
		return domain.BillingContext{}, err
	}
	opps, err := s.contacts.ListOpportunityStates(ctx, contact.ID)
	if err != nil {
		return domain.BillingContext{}, err
	}
	in.Contact = &contact
	in.Opportunities = opps
	return in, nil
}

func mapSlice[T, R any](in []T, fn func(T) R) []R {
	out := make([]R, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}
