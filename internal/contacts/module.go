// Package contacts provides the contacts and opportunities bounded context.
package contacts

import (
	"archi_crm_backend/internal/contacts/handler"
	"archi_crm_backend/internal/contacts/repository"
	"archi_crm_backend/internal/contacts/service"
	"archi_crm_backend/internal/events"
	apphttp "archi_crm_backend/internal/http"
	"archi_crm_backend/platform/logger"
	"archi_crm_backend/platform/validator"
)

// Module is the contacts bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the contacts module. repo is shared with the pipeline
// executor, so it is built by the caller.
func NewModule(repo *repository.Repository, mirrors service.MirrorReader, exec service.EffectApplier, reconciler service.Reconciler, retrier service.Retrier, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repo, mirrors, exec, reconciler, retrier, bus, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

func (m *Module) Name() string {
	return "contacts"
}

// Service exposes the contacts service for other modules.
func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

var _ apphttp.Module = (*Module)(nil)
