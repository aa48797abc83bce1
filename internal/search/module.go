// Package search provides the global search over leads, contacts and clients.
package search

import (
	apphttp "archi_crm_backend/internal/http"
	"archi_crm_backend/internal/search/handler"
	"archi_crm_backend/internal/search/repository"
	"archi_crm_backend/internal/search/service"
	"archi_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	return &Module{handler: handler.New(service.New(repository.New(pool)), val)}
}

func (m *Module) Name() string {
	return "search"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/search"))
}

var _ apphttp.Module = (*Module)(nil)
