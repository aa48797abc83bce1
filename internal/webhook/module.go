package webhook

import (
	apphttp "archi_crm_backend/internal/http"
	"archi_crm_backend/platform/logger"
	"archi_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	repo    *Repository
}

func NewModule(pool *pgxpool.Pool, leads LeadCapturer, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	return &Module{
		handler: NewHandler(NewService(repo, leads, log), val),
		repo:    repo,
	}
}

func (m *Module) Name() string {
	return "webhook"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public form endpoint (API key auth, no JWT)
	forms := ctx.V1.Group("/webhook")
	forms.Use(ctx.AuthRateLimiter.RateLimit(), APIKeyAuth(m.repo))
	forms.POST("/forms", m.handler.HandleFormSubmission)

	keys := ctx.Admin.Group("/webhook/keys")
	keys.POST("", m.handler.HandleCreateAPIKey)
	keys.GET("", m.handler.HandleListAPIKeys)
	keys.DELETE("/:keyId", m.handler.HandleRevokeAPIKey)
}

var _ apphttp.Module = (*Module)(nil)
