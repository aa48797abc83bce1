package handler

import (
	"net/http"

	"archi_crm_backend/internal/contacts/service"
	"archi_crm_backend/internal/contacts/transport"
	"archi_crm_backend/platform/httpkit"
	"archi_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/contacts", h.List)
	rg.POST("/contacts", h.Create)
	rg.GET("/contacts/:id", h.Get)
	rg.PATCH("/contacts/:id", h.Update)
	rg.DELETE("/contacts/:id", h.Delete)
	rg.GET("/contacts/:id/timeline", h.ListTimeline)
	rg.GET("/contacts/:id/notes", h.ListNotes)
	rg.POST("/contacts/:id/notes", h.AddNote)
	rg.GET("/contacts/:id/opportunities", h.ListOpportunities)
	rg.POST("/contacts/:id/opportunities", h.CreateOpportunity)

	rg.GET("/opportunities/:id", h.GetOpportunity)
	rg.PATCH("/opportunities/:id", h.UpdateOpportunity)
	rg.DELETE("/opportunities/:id", h.DeleteOpportunity)
}

func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req transport.ListContactsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	result, err := h.svc.List(c.Request.Context(), identity, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Create(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req transport.CreateContactRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.svc.Create(c.Request.Context(), identity, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

func (h *Handler) Get(c *gin.Context) {
	identity, id, ok := h.target(c)
	if !ok {
		return
	}
	result, err := h.svc.Get(c.Request.Context(), identity, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Update(c *gin.Context) {
	identity, id, ok := h.target(c)
	if !ok {
		return
	}
	var req transport.UpdateContactRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.svc.Update(c.Request.Context(), identity, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Delete(c *gin.Context) {
	identity, id, ok := h.target(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.Delete(c.Request.Context(), identity, id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListTimeline(c *gin.Context) {
	identity, id, ok := h.target(c)
	if !ok {
		return
	}
	items, err := h.svc.ListTimeline(c.Request.Context(), identity, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) ListNotes(c *gin.Context) {
	identity, id, ok := h.target(c)
	if !ok {
		return
	}
	items, err := h.svc.ListNotes(c.Request.Context(), identity, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) AddNote(c *gin.Context) {
	identity, id, ok := h.target(c)
	if !ok {
		return
	}
	var req transport.CreateNoteRequest
	if !h.bind(c, &req) {
		return
	}

	note, err := h.svc.AddNote(c.Request.Context(), identity, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, note)
}

func (h *Handler) ListOpportunities(c *gin.Context) {
	identity, id, ok := h.target(c)
	if !ok {
		return
	}
	items, err := h.svc.ListOpportunities(c.Request.Context(), identity, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) CreateOpportunity(c *gin.Context) {
	identity, id, ok := h.target(c)
	if !ok {
		return
	}
	var req transport.CreateOpportunityRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.svc.CreateOpportunity(c.Request.Context(), identity, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

func (h *Handler) GetOpportunity(c *gin.Context) {
	identity, id, ok := h.target(c)
	if !ok {
		return
	}
	result, err := h.svc.GetOpportunity(c.Request.Context(), identity, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) UpdateOpportunity(c *gin.Context) {
	identity, id, ok := h.target(c)
	if !ok {
		return
	}
	var req transport.UpdateOpportunityRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.svc.UpdateOpportunity(c.Request.Context(), identity, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) DeleteOpportunity(c *gin.Context) {
	identity, id, ok := h.target(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.DeleteOpportunity(c.Request.Context(), identity, id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterAdminRoutes mounts maintenance endpoints on the admin group.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/reconcile/:id", h.Reconcile)
}

func (h *Handler) Reconcile(c *gin.Context) {
	identity, id, ok := h.target(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.Reconcile(c.Request.Context(), identity, id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// target resolves the caller and the :id path parameter.
func (h *Handler) target(c *gin.Context) (httpkit.Identity, uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return nil, uuid.Nil, false
	}
	return identity, id, true
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
