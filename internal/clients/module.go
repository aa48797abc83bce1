// Package clients provides the clients, devis and payments bounded context.
package clients

import (
	"archi_crm_backend/internal/adapters/storage"
	"archi_crm_backend/internal/clients/handler"
	"archi_crm_backend/internal/clients/repository"
	"archi_crm_backend/internal/clients/service"
	apphttp "archi_crm_backend/internal/http"
	"archi_crm_backend/platform/logger"
	"archi_crm_backend/platform/validator"
)

// Module is the clients bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule wires the clients module. repo also serves as the pipeline's
// client gateway, so it is built by the caller. docs may be nil.
func NewModule(repo *repository.Repository, contacts service.ContactSource, exec service.EffectApplier, retrier service.Retrier, docs storage.DocumentStore, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repo, contacts, exec, retrier, docs, log)
	return &Module{handler: handler.New(svc, val)}
}

func (m *Module) Name() string {
	return "clients"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/clients"))
}

var _ apphttp.Module = (*Module)(nil)
