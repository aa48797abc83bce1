package handler

import (
	"fmt"
	"net/http"
	"strings"

	"archi_crm_backend/internal/clients/service"
	"archi_crm_backend/internal/clients/transport"
	"archi_crm_backend/platform/httpkit"
	"archi_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	contentTypePDF      = "application/pdf"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/stats", h.Stats)
	rg.GET("/:key", h.Get)
	rg.PATCH("/:key/stage", h.ChangeStage)

	rg.GET("/:key/devis", h.ListDevis)
	rg.POST("/:key/devis", h.CreateDevis)
	rg.PATCH("/:key/devis/:devisId/status", h.UpdateDevisStatus)
	rg.PATCH("/:key/devis/:devisId/facture", h.SetFactureReglee)
	rg.DELETE("/:key/devis/:devisId", h.DeleteDevis)
	rg.POST("/:key/devis/:devisId/document/upload-url", h.DevisUploadURL)
	rg.GET("/:key/devis/:devisId/document", h.DevisDownloadURL)
	rg.GET("/:key/devis/:devisId/pdf", h.DevisPDF)

	rg.GET("/:key/payments", h.ListPayments)
	rg.POST("/:key/payments", h.CreatePayment)
	rg.DELETE("/:key/payments/:paymentId", h.DeletePayment)
}

func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req transport.ListClientsRequest
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

func (h *Handler) Stats(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	result, err := h.svc.Stats(c.Request.Context(), identity)
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
	var req transport.CreateClientRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.svc.CreateLegacy(c.Request.Context(), identity, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

func (h *Handler) Get(c *gin.Context) {
	identity, key, ok := h.target(c)
	if !ok {
		return
	}
	result, err := h.svc.Get(c.Request.Context(), identity, key)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) ChangeStage(c *gin.Context) {
	identity, key, ok := h.target(c)
	if !ok {
		return
	}
	var req transport.ChangeStageRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.svc.ChangeStage(c.Request.Context(), identity, key, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) ListDevis(c *gin.Context) {
	identity, key, ok := h.target(c)
	if !ok {
		return
	}
	items, err := h.svc.ListDevis(c.Request.Context(), identity, key)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) CreateDevis(c *gin.Context) {
	identity, key, ok := h.target(c)
	if !ok {
		return
	}
	var req transport.CreateDevisRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.svc.CreateDevis(c.Request.Context(), identity, key, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

func (h *Handler) UpdateDevisStatus(c *gin.Context) {
	identity, key, devisID, ok := h.child(c, "devisId")
	if !ok {
		return
	}
	var req transport.UpdateDevisStatusRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.svc.UpdateDevisStatus(c.Request.Context(), identity, key, devisID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) SetFactureReglee(c *gin.Context) {
	identity, key, devisID, ok := h.child(c, "devisId")
	if !ok {
		return
	}
	var req transport.SetFactureRegleeRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.svc.SetFactureReglee(c.Request.Context(), identity, key, devisID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) DeleteDevis(c *gin.Context) {
	identity, key, devisID, ok := h.child(c, "devisId")
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.DeleteDevis(c.Request.Context(), identity, key, devisID)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DevisUploadURL(c *gin.Context) {
	identity, key, devisID, ok := h.child(c, "devisId")
	if !ok {
		return
	}
	var req transport.DevisUploadRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.svc.DevisUploadURL(c.Request.Context(), identity, key, devisID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) DevisPDF(c *gin.Context) {
	identity, key, devisID, ok := h.child(c, "devisId")
	if !ok {
		return
	}
	doc, err := h.svc.RenderDevis(c.Request.Context(), identity, key, devisID)
	if httpkit.HandleError(c, err) {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, doc.FileName))
	c.Data(http.StatusOK, contentTypePDF, doc.Content)
}

func (h *Handler) DevisDownloadURL(c *gin.Context) {
	identity, key, devisID, ok := h.child(c, "devisId")
	if !ok {
		return
	}
	result, err := h.svc.DevisDownloadURL(c.Request.Context(), identity, key, devisID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) ListPayments(c *gin.Context) {
	identity, key, ok := h.target(c)
	if !ok {
		return
	}
	items, err := h.svc.ListPayments(c.Request.Context(), identity, key)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) CreatePayment(c *gin.Context) {
	identity, key, ok := h.target(c)
	if !ok {
		return
	}
	var req transport.CreatePaymentRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.svc.CreatePayment(c.Request.Context(), identity, key, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

func (h *Handler) DeletePayment(c *gin.Context) {
	identity, key, paymentID, ok := h.child(c, "paymentId")
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.DeletePayment(c.Request.Context(), identity, key, paymentID)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// target resolves the caller and the :key path parameter. Client keys are
// either a uuid or two uuids joined by a dash, so they are not parsed here.
func (h *Handler) target(c *gin.Context) (httpkit.Identity, string, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return nil, "", false
	}
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return nil, "", false
	}
	return identity, key, true
}

// child resolves the client key plus a uuid path parameter under it.
func (h *Handler) child(c *gin.Context, param string) (httpkit.Identity, string, uuid.UUID, bool) {
	identity, key, ok := h.target(c)
	if !ok {
		return nil, "", uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return nil, "", uuid.Nil, false
	}
	return identity, key, id, true
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
