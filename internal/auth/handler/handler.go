package handler

import (
	"net/http"
	"time"

	"archi_crm_backend/internal/auth/repository"
	"archi_crm_backend/internal/auth/service"
	"archi_crm_backend/internal/auth/transport"
	"archi_crm_backend/platform/config"
	"archi_crm_backend/platform/httpkit"
	"archi_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	svc *service.Service
	cfg config.AuthServiceConfig
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

func New(svc *service.Service, cfg config.AuthServiceConfig, val *validator.Validator) *Handler {
	return &Handler{svc: svc, cfg: cfg, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/login", h.SignIn)
	rg.POST("/logout", h.SignOut)
}

func (h *Handler) SignIn(c *gin.Context) {
	var req transport.SignInRequest
	if !h.bind(c, &req) {
		return
	}

	accessToken, expiresAt, user, err := h.svc.SignIn(c.Request.Context(), req.Email, req.Password)
	if httpkit.HandleError(c, err) {
		return
	}

	h.setAccessCookie(c, accessToken, time.Until(expiresAt))
	httpkit.OK(c, transport.AuthResponse{AccessToken: accessToken, ExpiresAt: expiresAt, User: toUserResponse(user)})
}

func (h *Handler) SignOut(c *gin.Context) {
	h.setAccessCookie(c, "", -time.Second)
	httpkit.OK(c, gin.H{"message": "signed out"})
}

func (h *Handler) GetMe(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	user, err := h.svc.GetMe(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toUserResponse(user))
}

func (h *Handler) UpdatePreferences(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.UpdatePreferencesRequest
	if !h.bind(c, &req) {
		return
	}

	user, err := h.svc.UpdatePreferences(c.Request.Context(), identity.UserID(), service.PreferencesInput(req))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toUserResponse(user))
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	httpkit.OK(c, gin.H{"items": out})
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req transport.CreateUserRequest
	if !h.bind(c, &req) {
		return
	}

	user, err := h.svc.CreateUser(c.Request.Context(), service.CreateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Role:     req.Role,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, toUserResponse(user))
}

func (h *Handler) SetUserRole(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.SetRoleRequest
	if !h.bind(c, &req) {
		return
	}

	if httpkit.HandleError(c, h.svc.SetUserRole(c.Request.Context(), identity.UserID(), userID, req.Role)) {
		return
	}
	httpkit.OK(c, gin.H{"userId": userID, "role": req.Role})
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}

func (h *Handler) setAccessCookie(c *gin.Context, value string, ttl time.Duration) {
	secure := c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https"
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.GetAuthCookieName(), value, int(ttl/time.Second), "/", "", secure, true)
}

func toUserResponse(u repository.User) transport.UserResponse {
	return transport.UserResponse{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		Role:           u.Role,
		Phone:          u.Phone,
		NotifyWhatsApp: u.NotifyWhatsApp,
		NotifySMS:      u.NotifySMS,
		NotifyEmail:    u.NotifyEmail,
		CreatedAt:      u.CreatedAt,
	}
}
