// Package auth provides the authentication bounded context module.
// This file defines the module that encapsulates all auth setup and route registration.
package auth

import (
	"archi_crm_backend/internal/auth/handler"
	"archi_crm_backend/internal/auth/repository"
	"archi_crm_backend/internal/auth/service"
	"archi_crm_backend/internal/auth/validator"
	apphttp "archi_crm_backend/internal/http"
	"archi_crm_backend/platform/config"
	"archi_crm_backend/platform/httpkit"
	"archi_crm_backend/platform/logger"
	platformvalidator "archi_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the auth bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the auth module with all its dependencies.
func NewModule(pool *pgxpool.Pool, cfg config.AuthServiceConfig, val *platformvalidator.Validator, log *logger.Logger) (*Module, error) {
	if err := validator.Register(val); err != nil {
		return nil, err
	}

	repo := repository.New(pool)
	svc := service.New(repo, cfg, log)

	return &Module{
		handler: handler.New(svc, cfg, val),
		service: svc,
		repo:    repo,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "auth"
}

// Repository exposes the user store for adapters in other domains.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts auth routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public auth routes with stricter rate limiting
	authGroup := ctx.V1.Group("/auth")
	authGroup.Use(ctx.AuthRateLimiter.RateLimit())
	m.handler.RegisterRoutes(authGroup)

	ctx.Protected.GET("/auth/me", m.handler.GetMe)
	ctx.Protected.PATCH("/users/me/preferences", m.handler.UpdatePreferences)
	ctx.Protected.GET("/users", m.handler.ListUsers)

	ctx.Admin.POST("/users", m.handler.CreateUser)
	ctx.Admin.PUT("/users/:id/role", httpkit.RequireRole(httpkit.RoleAdmin), m.handler.SetUserRole)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
