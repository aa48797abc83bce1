// Package leads provides the leads bounded context: capture, notes and
// conversion into contacts.
package leads

import (
	"archi_crm_backend/internal/events"
	apphttp "archi_crm_backend/internal/http"
	"archi_crm_backend/internal/leads/handler"
	"archi_crm_backend/internal/leads/repository"
	"archi_crm_backend/internal/leads/service"
	"archi_crm_backend/platform/logger"
	"archi_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule wires the leads module. contacts is where conversions land.
func NewModule(pool *pgxpool.Pool, contacts service.ContactStore, exec service.EffectApplier, retrier service.Retrier, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, contacts, exec, retrier, bus, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

func (m *Module) Name() string {
	return "leads"
}

// Service exposes lead use cases for the capture webhook.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes lead storage for the CSV importer.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
}

var _ apphttp.Module = (*Module)(nil)
