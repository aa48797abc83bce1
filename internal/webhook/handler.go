package webhook

import (
	"encoding/json"
	"net/http"
	"strings"

	"archi_crm_backend/platform/httpkit"
	"archi_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	maxFormMemory       = 1 << 20
)

type Handler struct {
	svc *Service
	val *validator.Validator
}

func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// HandleFormSubmission accepts urlencoded, multipart or flat JSON bodies.
// POST /api/v1/webhook/forms
func (h *Handler) HandleFormSubmission(c *gin.Context) {
	fields, ok := parseFields(c)
	if !ok {
		httpkit.Error(c, http.StatusBadRequest, "no form data received", nil)
		return
	}

	keyID, _ := c.Get(contextKeyID)
	sub := Submission{Fields: fields, SourceDomain: c.GetString(contextOrigin)}
	if id, ok := keyID.(uuid.UUID); ok {
		sub.APIKeyID = id
	}

	resp, err := h.svc.ProcessSubmission(c.Request.Context(), sub)
	if httpkit.HandleError(c, err) {
		return
	}
	if resp.IsDuplicate {
		httpkit.OK(c, resp)
		return
	}
	httpkit.Created(c, resp)
}

// POST /api/v1/admin/webhook/keys
func (h *Handler) HandleCreateAPIKey(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	resp, err := h.svc.CreateKey(c.Request.Context(), identity, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, resp)
}

// GET /api/v1/admin/webhook/keys
func (h *Handler) HandleListAPIKeys(c *gin.Context) {
	keys, err := h.svc.ListKeys(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, keys)
}

// DELETE /api/v1/admin/webhook/keys/:keyId
func (h *Handler) HandleRevokeAPIKey(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("keyId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid key ID", nil)
		return
	}
	if httpkit.HandleError(c, h.svc.RevokeKey(c.Request.Context(), keyID)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func parseFields(c *gin.Context) (map[string]string, bool) {
	fields := make(map[string]string)

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var raw map[string]any
		if err := json.NewDecoder(c.Request.Body).Decode(&raw); err != nil {
			return nil, false
		}
		for k, v := range raw {
			if s, ok := v.(string); ok {
				fields[k] = s
			}
		}
		return fields, len(fields) > 0
	}

	if err := c.Request.ParseMultipartForm(maxFormMemory); err != nil {
		if err := c.Request.ParseForm(); err != nil {
			return nil, false
		}
	}
	for k, values := range c.Request.PostForm {
		if len(values) > 0 {
			fields[k] = values[0]
		}
	}
	return fields, len(fields) > 0
}
