package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type staticKeys map[string]APIKey

func (s staticKeys) GetByHash(_ context.Context, hash string) (APIKey, error) {
	k, ok := s[hash]
	if !ok {
		return APIKey{}, ErrAPIKeyNotFound
	}
	return k, nil
}

func TestIsDomainAllowed(t *testing.T) {
	cases := []struct {
		origin  string
		allowed []string
		want    bool
	}{
		{"https://www.studio-archi.ma", []string{"www.studio-archi.ma"}, true},
		{"https://blog.studio-archi.ma/page", []string{"*.studio-archi.ma"}, true},
		{"https://studio-archi.ma", []string{"*.studio-archi.ma"}, true},
		{"https://evil.com", []string{"*.studio-archi.ma"}, false},
		{"https://anything.io", []string{"*"}, true},
		{"", []string{"*"}, false},
	}
	for _, tc := range cases {
		if got := isDomainAllowed(tc.origin, tc.allowed); got != tc.want {
			t.Errorf("isDomainAllowed(%q, %v) = %v, want %v", tc.origin, tc.allowed, got, tc.want)
		}
	}
}

func TestAPIKeyAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	plaintext, hash, _, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	keys := staticKeys{hash: {ID: uuid.New(), AllowedDomains: []string{"studio-archi.ma"}}}

	r := gin.New()
	r.POST("/forms", APIKeyAuth(keys), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(contextOrigin))
	})

	send := func(key, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/forms", nil)
		if key != "" {
			req.Header.Set(apiKeyHeader, key)
		}
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := send("", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("missing key: got %d", w.Code)
	}
	if w := send("whk_wrong", "https://studio-archi.ma"); w.Code != http.StatusUnauthorized {
		t.Errorf("unknown key: got %d", w.Code)
	}
	if w := send(plaintext, "https://other.ma"); w.Code != http.StatusForbidden {
		t.Errorf("foreign origin: got %d", w.Code)
	}
	w := send(plaintext, "https://studio-archi.ma")
	if w.Code != http.StatusOK || w.Body.String() != "studio-archi.ma" {
		t.Errorf("allowed origin: got %d %q", w.Code, w.Body.String())
	}
}
