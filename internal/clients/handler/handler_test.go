package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"archi_crm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func testContext(params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/clients", nil)
	c.Params = params
	return c, w
}

func TestTargetAcceptsCompositeKey(t *testing.T) {
	key := uuid.NewString() + "-" + uuid.NewString()
	c, _ := testContext(gin.Params{{Key: "key", Value: key}})
	c.Set(httpkit.ContextUserIDKey, uuid.New())

	_, got, ok := (&Handler{}).target(c)
	if !ok || got != key {
		t.Fatalf("expected key %q, got %q (%v)", key, got, ok)
	}
}

func TestChildRejectsMalformedDevisID(t *testing.T) {
	c, w := testContext(gin.Params{{Key: "key", Value: uuid.NewString()}, {Key: "devisId", Value: "nope"}})
	c.Set(httpkit.ContextUserIDKey, uuid.New())

	if _, _, _, ok := (&Handler{}).child(c, "devisId"); ok {
		t.Fatal("expected malformed devis id to be rejected")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestTargetRequiresIdentity(t *testing.T) {
	c, w := testContext(gin.Params{{Key: "key", Value: uuid.NewString()}})

	if _, _, ok := (&Handler{}).target(c); ok {
		t.Fatal("expected unauthenticated request to be rejected")
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
