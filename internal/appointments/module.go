// Package appointments provides the appointments domain module.
package appointments

import (
	"archi_crm_backend/internal/appointments/handler"
	"archi_crm_backend/internal/appointments/repository"
	"archi_crm_backend/internal/appointments/service"
	"archi_crm_backend/internal/events"
	apphttp "archi_crm_backend/internal/http"
	"archi_crm_backend/platform/logger"
	"archi_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the appointments domain module
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule creates a new appointments module with all dependencies wired.
// reminders may be nil when no queue is configured.
func NewModule(pool *pgxpool.Pool, bus events.Bus, reminders service.ReminderScheduler, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, reminders, log)
	return &Module{
		handler: handler.New(svc, val),
		Service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "appointments"
}

// RegisterRoutes registers the module's routes under /api/v1/appointments
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/appointments"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
