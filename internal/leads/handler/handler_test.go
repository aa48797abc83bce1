package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"archi_crm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestTargetRejectsMalformedID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/leads/nope", nil)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	c.Set(httpkit.ContextUserIDKey, uuid.New())

	if _, _, ok := target(c); ok {
		t.Fatal("expected malformed id to be rejected")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestTargetRequiresIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/leads/x", nil)
	c.Params = gin.Params{{Key: "id", Value: uuid.NewString()}}

	if _, _, ok := target(c); ok {
		t.Fatal("expected unauthenticated request to be rejected")
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
